package permission

// Mask64 is a set of up to 63 permission bits plus the root bit.
type Mask64 uint64

const rootBit = 63

// Has reports whether bit is set, or whether the mask carries the root bit.
func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	if m&(1<<rootBit) != 0 {
		return true
	}
	return m&(1<<bit) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= 1 << bit
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= 1 << bit
}

// Root reports whether the root bit is set.
func (m Mask64) Root() bool {
	return m&(1<<rootBit) != 0
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
