package lapdm

// Seq is a LAPDm sequence number, always kept in the range [0,7]. All
// arithmetic on V(S), V(A), V(R), N(S) and N(R) goes through this type so
// the mod-8 wraparound lives in exactly one place (3GPP TS 04.06 §3.4.2).
type Seq uint8

// Incr returns the next sequence number after s.
func (s Seq) Incr() Seq {
	return Seq((uint8(s) + 1) & 7)
}

// Add returns s+n mod 8.
func (s Seq) Add(n uint8) Seq {
	return Seq((uint8(s) + n) & 7)
}

// Sub returns s-n mod 8.
func (s Seq) Sub(n uint8) Seq {
	return Seq((uint8(s) - n) & 7)
}

// Distance returns the number of increments needed to go from s to other,
// cyclically, i.e. (other-s) mod 8.
func (s Seq) Distance(other Seq) uint8 {
	return (uint8(other) - uint8(s)) & 7
}

// InWindow reports whether s lies in the half-open cyclic window
// [base, base+size).
func (s Seq) InWindow(base Seq, size uint8) bool {
	return base.Distance(s) < size
}
