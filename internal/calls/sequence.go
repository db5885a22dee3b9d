package calls

// MaxSequence bounds accepted sequence numbers. The missing set materializes
// every gap below the highest observed sequence, so a single absurd sequence
// would make each later read iterate that whole range.
const MaxSequence = 1 << 20

// MissingSequences computes the derived gap view over a call's received
// sequence numbers: every i in [0, highest) that was never observed. The set
// is recomputed on demand rather than maintained incrementally because
// packets arrive out of order and a call's packet set is bounded, so an O(n)
// pass at read or completion time is cheap.
//
// A highest of 0 (only sequence 0 seen) or -1 (no packets yet) yields nil.
func MissingSequences(received []int64, highest int64) []int64 {
	if highest <= 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(received))
	for _, seq := range received {
		seen[seq] = struct{}{}
	}
	var missing []int64
	for i := int64(0); i < highest; i++ {
		if _, ok := seen[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
