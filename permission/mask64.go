package permission

// Mask64 is a 64-bit permission set indexed by registry bit.
type Mask64 uint64

func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return (m & (1 << bit)) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= (1 << bit)
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= (1 << bit)
}

// Union returns the bitwise OR of m and other.
func (m Mask64) Union(other Mask64) Mask64 {
	return m | other
}

// Contains reports whether every bit of other is set in m.
func (m Mask64) Contains(other Mask64) bool {
	return m&other == other
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
