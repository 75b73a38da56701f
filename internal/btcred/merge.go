package btcred

// MergeDevice combines base and overlay, with overlay winning for each
// top-level optional field it populates and base persisting where overlay
// is silent. LE is merged field-by-field the same way. The MAC address is
// taken from base.
func MergeDevice(base, overlay Device) Device {
	merged := Device{MacAddress: base.MacAddress}

	if overlay.Classic != nil {
		c := *overlay.Classic
		merged.Classic = &c
	} else if base.Classic != nil {
		c := *base.Classic
		merged.Classic = &c
	}

	merged.LE = mergeLE(base.LE, overlay.LE)
	return merged
}

func mergeLE(base, overlay *LEKeys) *LEKeys {
	if base == nil && overlay == nil {
		return nil
	}

	var b, o LEKeys
	if base != nil {
		b = *base
	}
	if overlay != nil {
		o = *overlay
	}

	out := LEKeys{
		LTK:           preferPtr(b.LTK, o.LTK),
		PeripheralLTK: preferPtr(b.PeripheralLTK, o.PeripheralLTK),
		IRK:           preferPtr(b.IRK, o.IRK),
		AddressType:   preferPtr(b.AddressType, o.AddressType),
	}
	out.CSRKLocal = MergeCSRK(b.CSRKLocal, o.CSRKLocal)
	out.CSRKRemote = MergeCSRK(b.CSRKRemote, o.CSRKRemote)

	if out.IsEmpty() {
		return nil
	}
	return &out
}

// preferPtr returns overlay when non-nil, else base. Used for every LE
// field except CSRK, which has its own merge rule.
func preferPtr[T any](base, overlay *T) *T {
	if overlay != nil {
		v := *overlay
		return &v
	}
	if base != nil {
		v := *base
		return &v
	}
	return nil
}

// MergeCSRK implements the CSRK merge rule: when both sides carry the same
// key, the counter is the MAX of the two (preventing signature-counter
// rollback/replay) and authenticated is OR'd; when the keys differ, the
// overlay is treated as the newer source and wins outright; when only one
// side is present, that side is taken as-is.
func MergeCSRK(base, overlay *CSRK) *CSRK {
	switch {
	case base == nil && overlay == nil:
		return nil
	case base == nil:
		v := *overlay
		return &v
	case overlay == nil:
		v := *base
		return &v
	case base.Key == overlay.Key:
		counter := base.Counter
		if overlay.Counter > counter {
			counter = overlay.Counter
		}
		return &CSRK{
			Key:           base.Key,
			Counter:       counter,
			Authenticated: base.Authenticated || overlay.Authenticated,
		}
	default:
		v := *overlay
		return &v
	}
}

// DevicesEqual reports structural equality of the Classic and LE fields of
// x and y — used to decide whether a write is actually needed.
func DevicesEqual(x, y Device) bool {
	return classicEqual(x.Classic, y.Classic) && leEqual(x.LE, y.LE)
}

func classicEqual(a, b *ClassicKeys) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func leEqual(a, b *LEKeys) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() == b.IsEmpty()
	}
	return ltkEqual(a.LTK, b.LTK) &&
		ltkEqual(a.PeripheralLTK, b.PeripheralLTK) &&
		strPtrEqual(a.IRK, b.IRK) &&
		strPtrEqual(a.AddressType, b.AddressType) &&
		csrkEqual(a.CSRKLocal, b.CSRKLocal) &&
		csrkEqual(a.CSRKRemote, b.CSRKRemote)
}

func ltkEqual(a, b *LongTermKey) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Key == b.Key &&
		u8PtrEqual(a.Authenticated, b.Authenticated) &&
		u8PtrEqual(a.EncSize, b.EncSize) &&
		u16PtrEqual(a.EDiv, b.EDiv) &&
		u64PtrEqual(a.Rand, b.Rand)
}

func csrkEqual(a, b *CSRK) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u8PtrEqual(a, b *uint8) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u16PtrEqual(a, b *uint16) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func u64PtrEqual(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
