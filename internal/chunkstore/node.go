package chunkstore

// node is one vertex of the persistent chunk tree. Leaves hold a chunk;
// internal nodes aggregate byte length and newline count of their subtree,
// which gives O(log n) translation between a global byte offset and a
// (chunk, local offset) pair. Nodes are immutable: every edit builds new
// nodes along one root-to-leaf path and shares the rest.
type node struct {
	chunk *Chunk // leaf payload, nil for internal nodes

	left, right *node

	height   int
	bytes    int64
	newlines int64
}

func leaf(c *Chunk) *node {
	return &node{chunk: c, height: 1, bytes: c.Len(), newlines: c.Newlines()}
}

func internal(l, r *node) *node {
	h := l.height
	if r.height > h {
		h = r.height
	}
	return &node{
		left:     l,
		right:    r,
		height:   h + 1,
		bytes:    l.bytes + r.bytes,
		newlines: l.newlines + r.newlines,
	}
}

// concat joins two subtrees, rebalancing so the result's height stays
// logarithmic. Undersized adjacent leaves are merged opportunistically;
// the tree tolerates some fragmentation to bound rebuild cost.
func concat(l, r *node, target int) *node {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}

	if l.chunk != nil && r.chunk != nil && l.bytes+r.bytes <= int64(target) {
		merged := make([]byte, 0, l.bytes+r.bytes)
		merged = append(merged, l.chunk.data...)
		merged = append(merged, r.chunk.data...)
		return leaf(newChunk(merged))
	}

	switch {
	case l.height > r.height+1:
		// Descend the right spine of the taller side.
		return rebalance(l.left, concat(l.right, r, target))
	case r.height > l.height+1:
		return rebalance(concat(l, r.left, target), r.right)
	default:
		return internal(l, r)
	}
}

// rebalance builds an internal node, rotating once when the two sides'
// heights drifted apart during concat.
func rebalance(l, r *node) *node {
	if l.height > r.height+1 && l.left != nil {
		if l.left.height >= l.right.height {
			return internal(l.left, internal(l.right, r))
		}
		return internal(internal(l.left, l.right.left), internal(l.right.right, r))
	}
	if r.height > l.height+1 && r.left != nil {
		if r.right.height >= r.left.height {
			return internal(internal(l, r.left), r.right)
		}
		return internal(internal(l, r.left.left), internal(r.left.right, r.right))
	}
	return internal(l, r)
}

// split divides a subtree at a byte offset. Both returned trees share all
// nodes not on the split path. offset must be within [0, n.bytes].
func split(n *node, offset int64, target int) (*node, *node) {
	if n == nil {
		return nil, nil
	}
	if offset <= 0 {
		return nil, n
	}
	if offset >= n.bytes {
		return n, nil
	}

	if n.chunk != nil {
		l := newChunk(n.chunk.data[:offset])
		r := newChunk(n.chunk.data[offset:])
		return leaf(l), leaf(r)
	}

	if offset <= n.left.bytes {
		sl, sr := split(n.left, offset, target)
		return sl, concat(sr, n.right, target)
	}
	sl, sr := split(n.right, offset-n.left.bytes, target)
	return concat(n.left, sl, target), sr
}

// buildTree assembles a balanced tree from a chunk run.
func buildTree(chunks []*Chunk) *node {
	switch len(chunks) {
	case 0:
		return nil
	case 1:
		return leaf(chunks[0])
	}
	mid := len(chunks) / 2
	return internal(buildTree(chunks[:mid]), buildTree(chunks[mid:]))
}

// locate descends to the chunk containing offset and returns it together
// with the chunk's starting offset in the buffer. offset must be within
// [0, n.bytes); callers handle the end-of-buffer case.
func locate(n *node, offset int64) (*Chunk, int64) {
	start := int64(0)
	for n.chunk == nil {
		if offset < n.left.bytes {
			n = n.left
		} else {
			offset -= n.left.bytes
			start += n.left.bytes
			n = n.right
		}
	}
	return n.chunk, start
}

// sliceInto appends the bytes of [from, to) to dst, walking only the
// subtrees overlapping the range.
func sliceInto(dst []byte, n *node, from, to int64) []byte {
	if n == nil || from >= to || to <= 0 || from >= n.bytes {
		return dst
	}
	if from < 0 {
		from = 0
	}
	if to > n.bytes {
		to = n.bytes
	}

	if n.chunk != nil {
		return append(dst, n.chunk.data[from:to]...)
	}

	dst = sliceInto(dst, n.left, from, to)
	return sliceInto(dst, n.right, from-n.left.bytes, to-n.left.bytes)
}

// newlinesBefore counts '\n' bytes in [0, offset).
func newlinesBefore(n *node, offset int64) int64 {
	var count int64
	for n != nil && offset > 0 {
		if offset >= n.bytes {
			return count + n.newlines
		}
		if n.chunk != nil {
			return count + countNewlines(n.chunk.data[:offset])
		}
		if offset <= n.left.bytes {
			n = n.left
		} else {
			count += n.left.newlines
			offset -= n.left.bytes
			n = n.right
		}
	}
	return count
}
