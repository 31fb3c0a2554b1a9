package markertree

// AdjustForEdit shifts every marker for one buffer edit at offset.
// byteDelta is positive for an insertion of byteDelta bytes and negative
// for a deletion of -byteDelta bytes starting at offset. lineDelta is the
// change in newline count, applied to the line numbers of KindLine
// markers past the edit. Cost is O(log n + affected): untouched subtrees
// receive a single pending delta instead of per-node updates.
func (t *Tree) AdjustForEdit(offset, byteDelta, lineDelta int64) {
	switch {
	case byteDelta > 0:
		t.adjustInsert(t.root, offset, byteDelta, lineDelta)
	case byteDelta < 0:
		t.adjustDelete(t.root, offset, offset-byteDelta, -byteDelta, -lineDelta)
	}
}

// adjustInsert handles an insertion of delta bytes at offset.
// Markers starting past offset shift whole; markers starting exactly at
// offset shift per affinity; markers straddling offset grow.
func (t *Tree) adjustInsert(n *node, offset, delta, lines int64) {
	if n == nil {
		return
	}
	n.pushDown()
	switch {
	case n.m.Start > offset:
		n.m.Start += delta
		n.m.End += delta
		if n.m.Kind == KindLine {
			n.m.Line += lines
		}
		// Everything to the right starts even later: one pending delta
		// covers the whole subtree.
		if n.right != nil {
			n.right.pendingBytes += delta
			n.right.pendingLines += lines
		}
		t.adjustInsert(n.left, offset, delta, lines)

	case n.m.Start == offset:
		if n.m.Affinity == AffinityAfter {
			n.m.Start += delta
			n.m.End += delta
			if n.m.Kind == KindLine {
				n.m.Line += lines
			}
		} else if n.m.End > offset {
			n.m.End += delta
		}
		// Equal starts may sit on both sides.
		t.adjustInsert(n.left, offset, delta, lines)
		t.adjustInsert(n.right, offset, delta, lines)

	default: // n.m.Start < offset
		if n.m.End > offset || (n.m.End == offset && n.m.Affinity == AffinityAfter) {
			n.m.End += delta
		}
		// Left subtree starts even earlier; only ends can cross offset.
		if subMax(n.left) >= offset {
			t.adjustEnds(n.left, offset, delta)
		}
		t.adjustInsert(n.right, offset, delta, lines)
	}
	n.pull()
}

// adjustEnds grows the ends crossing offset in a subtree whose starts are
// all below offset.
func (t *Tree) adjustEnds(n *node, offset, delta int64) {
	if n == nil || subMax(n) < offset {
		return
	}
	n.pushDown()
	if n.m.End > offset || (n.m.End == offset && n.m.Affinity == AffinityAfter) {
		n.m.End += delta
	}
	t.adjustEnds(n.left, offset, delta)
	t.adjustEnds(n.right, offset, delta)
	n.pull()
}

// adjustDelete handles a deletion of [offset, cut) where cut-offset = del.
// Boundaries past the range shift back by del; boundaries inside clamp to
// offset, so a fully covered marker collapses to a zero-width marker at
// the deletion start rather than vanishing.
func (t *Tree) adjustDelete(n *node, offset, cut, del, lines int64) {
	if n == nil || subMax(n) <= offset {
		return
	}
	n.pushDown()
	if n.m.Start >= cut {
		n.m.Start -= del
		n.m.End -= del
		if n.m.Kind == KindLine {
			n.m.Line -= lines
		}
		if n.right != nil {
			n.right.pendingBytes -= del
			n.right.pendingLines -= lines
		}
		t.adjustDelete(n.left, offset, cut, del, lines)
	} else {
		if n.m.Start > offset {
			n.m.Start = offset
		}
		if n.m.End >= cut {
			n.m.End -= del
		} else if n.m.End > offset {
			n.m.End = offset
		}
		t.adjustDelete(n.left, offset, cut, del, lines)
		t.adjustDelete(n.right, offset, cut, del, lines)
	}
	n.pull()
}
