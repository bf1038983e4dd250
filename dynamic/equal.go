package dynamic

// Equal returns true if the given two dynamic messages are equal. Two
// messages are equal when they have the same message type, the same set of
// populated fields with equal values, and the same unknown fields in the
// same order.
//
// Scalar values are compared exactly; floating point values by their bit
// patterns. Fields without presence that hold their zero value are never
// stored, so they cannot cause two otherwise equal messages to differ.
func Equal(a, b *Message) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.md != b.md {
		return false
	}
	for _, fd := range a.md.Fields() {
		va, oka := a.present(fd)
		vb, okb := b.present(fd)
		if oka != okb {
			return false
		}
		if oka && !va.Equal(vb) {
			return false
		}
	}
	if len(a.unknown) != len(b.unknown) {
		return false
	}
	for i := range a.unknown {
		if !a.unknown[i].equal(b.unknown[i]) {
			return false
		}
	}
	return true
}
