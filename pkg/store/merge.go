package store

// Merger combines two values of the same kind. Merge leaves both operands
// untouched and returns the receiver's content followed by other's; MergeMut
// appends other's content to the receiver. Neither fails nor inspects the
// content being combined.
type Merger[T any] interface {
	Merge(other T) T
	MergeMut(other T)
}

// MergeAll folds rest into first, left to right, without mutating any operand.
func MergeAll[T Merger[T]](first T, rest ...T) T {
	out := first
	for _, r := range rest {
		out = out.Merge(r)
	}
	return out
}

var (
	_ Merger[*Database] = (*Database)(nil)
	_ Merger[*Resolver] = (*Resolver)(nil)
)
