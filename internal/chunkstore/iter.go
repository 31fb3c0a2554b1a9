package chunkstore

// ChunkIterator walks chunks in buffer order starting from the chunk that
// contains a given offset. Sequential readers (line scans, streaming
// search) use it to avoid repeated root-to-leaf descents.
type ChunkIterator struct {
	stack []*node
	start int64 // buffer offset of the chunk Next will return
}

// Chunks returns an iterator positioned at the chunk containing from.
// from past the end yields an exhausted iterator.
func (sn *Snapshot) Chunks(from int64) *ChunkIterator {
	it := &ChunkIterator{}
	if sn.root == nil || from >= sn.root.bytes {
		return it
	}
	if from < 0 {
		from = 0
	}

	n := sn.root
	pos := int64(0)
	for n.chunk == nil {
		if from-pos < n.left.bytes {
			it.stack = append(it.stack, n.right)
			n = n.left
		} else {
			pos += n.left.bytes
			n = n.right
		}
	}
	it.stack = append(it.stack, n)
	it.start = pos
	return it
}

// Next returns the next chunk and the buffer offset of its first byte.
// ok is false once the walk is exhausted.
func (it *ChunkIterator) Next() (c *Chunk, start int64, ok bool) {
	for len(it.stack) > 0 {
		n := it.stack[len(it.stack)-1]
		it.stack = it.stack[:len(it.stack)-1]
		if n.chunk == nil {
			it.stack = append(it.stack, n.right, n.left)
			continue
		}
		start = it.start
		it.start += n.bytes
		return n.chunk, start, true
	}
	return nil, 0, false
}
