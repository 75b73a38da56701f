//go:build !windows

package linuxmon

import "testing"

func TestContainsValidKeyLine(t *testing.T) {
	cases := map[string]bool{
		"[LinkKey]\nKey=0123456789ABCDEF0123456789ABCDEF\n": true,
		"[LinkKey]\nKey=0123\n":                             false,
		"[General]\nName=foo\n":                             false,
		"":                                                  false,
	}
	for content, want := range cases {
		if got := containsValidKeyLine(content); got != want {
			t.Errorf("containsValidKeyLine(%q) = %v, want %v", content, got, want)
		}
	}
}
