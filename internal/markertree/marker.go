package markertree

// Kind discriminates marker payloads. The tree itself is agnostic to the
// kind; only callers interpret it.
type Kind int

const (
	// KindPosition marks a cursor, selection endpoint or overlay range.
	KindPosition Kind = iota

	// KindLine marks one logical line [line_start, line_end), newline
	// included except for the final line. Carries a line number.
	KindLine
)

// Affinity decides which side of an insertion a marker boundary sticks to
// when the insertion lands exactly on it.
type Affinity int

const (
	// AffinityBefore keeps the boundary on the byte before the insertion.
	AffinityBefore Affinity = iota

	// AffinityAfter moves the boundary past the inserted bytes.
	AffinityAfter
)

// MarkerID identifies a marker within one tree. IDs are monotonic and
// never reused; zero is never a valid ID.
type MarkerID uint64

// Marker is the resolved view of a tracked interval [Start, End).
// Line is meaningful only for KindLine.
type Marker struct {
	ID       MarkerID
	Kind     Kind
	Affinity Affinity
	Start    int64
	End      int64
	Line     int64
}

// IsPoint reports whether the marker is zero-width.
func (m Marker) IsPoint() bool {
	return m.Start == m.End
}
