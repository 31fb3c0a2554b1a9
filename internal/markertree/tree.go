package markertree

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/kobzarvs/bigtext/internal/logger"
)

// node coordinates are local: the real position of a marker is its stored
// Start/End plus the pendingBytes of the node and of every ancestor.
// pendingLines shifts the Line field of KindLine markers the same way.
// maxEnd is the subtree's maximum End in the node's own frame.
type node struct {
	m Marker

	pendingBytes int64
	pendingLines int64
	maxEnd       int64

	left, right, parent *node
	prio                uint64
}

// Tree is a treap over all markers of one buffer, ordered by
// (start, affinity, id). Single-writer: mutated only on the editing loop.
type Tree struct {
	root   *node
	byID   map[MarkerID]*node
	lines  []MarkerID // KindLine markers ordered by line number
	nextID MarkerID
	strict bool
	rng    *rand.Rand
}

// New creates an empty tree. strict makes invariant violations fatal
// instead of logged-and-skipped.
func New(strict bool) *Tree {
	return &Tree{
		byID:   make(map[MarkerID]*node),
		strict: strict,
		rng:    rand.New(rand.NewSource(0x6d6b74)),
	}
}

// Len returns the number of markers in the tree.
func (t *Tree) Len() int {
	return len(t.byID)
}

// Add inserts a marker for [start, end) and returns its ID. A KindLine
// marker overlapping an existing one is an internal consistency failure:
// it means line invalidation missed a span.
func (t *Tree) Add(start, end int64, kind Kind, aff Affinity, line int64) (MarkerID, error) {
	if start < 0 || end < start {
		return 0, ErrInvalidInterval
	}
	if kind == KindLine && start < end {
		if over := t.queryKind(start, end, KindLine); len(over) > 0 {
			if t.strict {
				panic(fmt.Sprintf("markertree: line marker [%d,%d) overlaps line %d [%d,%d)",
					start, end, over[0].Line, over[0].Start, over[0].End))
			}
			logger.Warn("overlapping line markers, skipping insert",
				"start", start, "end", end, "existing", over[0].ID)
			return 0, ErrInvariantViolation
		}
	}

	t.nextID++
	nn := &node{
		m:      Marker{ID: t.nextID, Kind: kind, Affinity: aff, Start: start, End: end, Line: line},
		maxEnd: end,
		prio:   t.rng.Uint64(),
	}
	t.insertNode(nn)
	t.byID[nn.m.ID] = nn
	if kind == KindLine {
		i := sort.Search(len(t.lines), func(i int) bool {
			m, _ := t.Resolve(t.lines[i])
			return m.Line >= line
		})
		t.lines = append(t.lines, 0)
		copy(t.lines[i+1:], t.lines[i:])
		t.lines[i] = nn.m.ID
	}
	return nn.m.ID, nil
}

// Remove deletes a marker by ID.
func (t *Tree) Remove(id MarkerID) error {
	n, ok := t.byID[id]
	if !ok {
		return ErrUnknownMarker
	}
	delete(t.byID, id)
	if n.m.Kind == KindLine {
		for i, lid := range t.lines {
			if lid == id {
				t.lines = append(t.lines[:i], t.lines[i+1:]...)
				break
			}
		}
	}

	// Rotate the node down to a leaf, then detach.
	for n.left != nil || n.right != nil {
		n.pushDown()
		c := n.right
		if n.right == nil || (n.left != nil && n.left.prio > n.right.prio) {
			c = n.left
		}
		t.rotateUp(c)
	}
	p := n.parent
	if p == nil {
		t.root = nil
	} else {
		if p.left == n {
			p.left = nil
		} else {
			p.right = nil
		}
		for x := p; x != nil; x = x.parent {
			x.pull()
		}
	}
	n.parent = nil
	return nil
}

// Resolve returns the marker with pending deltas folded in. The tree is
// not modified; the walk sums pendings up the ancestor path.
func (t *Tree) Resolve(id MarkerID) (Marker, error) {
	n, ok := t.byID[id]
	if !ok {
		return Marker{}, ErrUnknownMarker
	}
	var db, dl int64
	for x := n; x != nil; x = x.parent {
		db += x.pendingBytes
		dl += x.pendingLines
	}
	m := n.m
	m.Start += db
	m.End += db
	if m.Kind == KindLine {
		m.Line += dl
	}
	return m, nil
}

// QueryRange returns all markers overlapping [a, b), including zero-width
// markers sitting inside the range. Pending deltas along the visited paths
// are pushed down lazily.
func (t *Tree) QueryRange(a, b int64) []Marker {
	var out []Marker
	t.collect(t.root, a, b, KindPosition, true, &out)
	return out
}

// QueryAt returns all markers overlapping or anchored at a single offset.
func (t *Tree) QueryAt(p int64) []Marker {
	return t.QueryRange(p, p+1)
}

// QueryLine returns the LineMarker carrying the given line number, or
// ErrLineNotCached when that line has no marker yet.
func (t *Tree) QueryLine(line int64) (Marker, error) {
	i := sort.Search(len(t.lines), func(i int) bool {
		m, _ := t.Resolve(t.lines[i])
		return m.Line >= line
	})
	if i < len(t.lines) {
		if m, err := t.Resolve(t.lines[i]); err == nil && m.Line == line {
			return m, nil
		}
	}
	return Marker{}, ErrLineNotCached
}

// InvalidateLines removes every LineMarker overlapping [a, b) plus one
// marker on each side, returning the removed markers in line order. A
// marker an edit collapsed to zero width at a counts as overlapping,
// same as in QueryRange: it is stale and must not survive the rescan.
func (t *Tree) InvalidateLines(a, b int64) []Marker {
	lo := sort.Search(len(t.lines), func(i int) bool {
		m, _ := t.Resolve(t.lines[i])
		return m.End > a || (m.IsPoint() && m.Start >= a)
	})
	hi := sort.Search(len(t.lines), func(i int) bool {
		m, _ := t.Resolve(t.lines[i])
		return m.Start >= b
	})
	if lo > 0 {
		lo--
	}
	if hi < len(t.lines) {
		hi++
	}
	if lo >= hi {
		return nil
	}

	removed := make([]Marker, 0, hi-lo)
	ids := append([]MarkerID(nil), t.lines[lo:hi]...)
	for _, id := range ids {
		m, err := t.Resolve(id)
		if err != nil {
			continue
		}
		removed = append(removed, m)
		_ = t.Remove(id)
	}
	return removed
}

// internal machinery

func less(a, b *Marker) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	// Before sorts ahead of After so an insertion at a shared offset keeps
	// the tree ordered: Before markers stay put, After markers move right.
	if a.Affinity != b.Affinity {
		return a.Affinity == AffinityBefore
	}
	return a.ID < b.ID
}

func (n *node) pushDown() {
	if n.pendingBytes == 0 && n.pendingLines == 0 {
		return
	}
	n.m.Start += n.pendingBytes
	n.m.End += n.pendingBytes
	n.maxEnd += n.pendingBytes
	if n.m.Kind == KindLine {
		n.m.Line += n.pendingLines
	}
	if n.left != nil {
		n.left.pendingBytes += n.pendingBytes
		n.left.pendingLines += n.pendingLines
	}
	if n.right != nil {
		n.right.pendingBytes += n.pendingBytes
		n.right.pendingLines += n.pendingLines
	}
	n.pendingBytes = 0
	n.pendingLines = 0
}

// subMax returns a child subtree's maximum End in the parent's frame.
func subMax(c *node) int64 {
	if c == nil {
		return -1 << 62
	}
	return c.maxEnd + c.pendingBytes
}

func (n *node) pull() {
	max := n.m.End
	if v := subMax(n.left); v > max {
		max = v
	}
	if v := subMax(n.right); v > max {
		max = v
	}
	n.maxEnd = max
}

func (t *Tree) insertNode(nn *node) {
	if t.root == nil {
		t.root = nn
		return
	}
	cur := t.root
	for {
		cur.pushDown()
		if less(&nn.m, &cur.m) {
			if cur.left == nil {
				cur.left = nn
				nn.parent = cur
				break
			}
			cur = cur.left
		} else {
			if cur.right == nil {
				cur.right = nn
				nn.parent = cur
				break
			}
			cur = cur.right
		}
	}
	for x := nn.parent; x != nil; x = x.parent {
		x.pull()
	}
	for nn.parent != nil && nn.prio > nn.parent.prio {
		t.rotateUp(nn)
	}
}

// rotateUp lifts x above its parent, preserving in-order positions.
// Both nodes are cleaned first so subtree pendings stay attached to the
// subtrees they describe.
func (t *Tree) rotateUp(x *node) {
	p := x.parent
	g := p.parent
	p.pushDown()
	x.pushDown()

	if x == p.left {
		p.left = x.right
		if p.left != nil {
			p.left.parent = p
		}
		x.right = p
	} else {
		p.right = x.left
		if p.right != nil {
			p.right.parent = p
		}
		x.left = p
	}
	p.parent = x
	x.parent = g
	if g == nil {
		t.root = x
	} else if g.left == p {
		g.left = x
	} else {
		g.right = x
	}
	p.pull()
	x.pull()
}

// collect walks in order, pruning subtrees that cannot overlap [a, b).
// kindOnly filters when all is false.
func (t *Tree) collect(n *node, a, b int64, kind Kind, all bool, out *[]Marker) {
	if n == nil || subMax(n) < a {
		return
	}
	n.pushDown()
	t.collect(n.left, a, b, kind, all, out)
	if n.m.Start < b {
		hit := n.m.End > a || (n.m.IsPoint() && n.m.Start >= a)
		if hit && (all || n.m.Kind == kind) {
			*out = append(*out, n.m)
		}
		t.collect(n.right, a, b, kind, all, out)
	}
}

func (t *Tree) queryKind(a, b int64, kind Kind) []Marker {
	var out []Marker
	t.collect(t.root, a, b, kind, false, &out)
	return out
}
