package chunkstore

// DefaultChunkTarget is the preferred chunk size in bytes. 4KB trades
// rebuild cost against tree depth well for clustered small edits.
const DefaultChunkTarget = 4096

// Chunk is an immutable run of buffer bytes plus its newline count.
// Chunks are never mutated after creation, only referenced or replaced.
type Chunk struct {
	data     []byte
	newlines int64
}

func newChunk(data []byte) *Chunk {
	return &Chunk{data: data, newlines: countNewlines(data)}
}

// Len returns the byte length of the chunk.
func (c *Chunk) Len() int64 {
	return int64(len(c.data))
}

// Newlines returns the number of '\n' bytes in the chunk.
func (c *Chunk) Newlines() int64 {
	return c.newlines
}

// Bytes returns the chunk's content. The slice is shared with the chunk
// and must not be modified.
func (c *Chunk) Bytes() []byte {
	return c.data
}

func countNewlines(data []byte) int64 {
	var n int64
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

// splitChunks cuts data into chunks near the target size. Cut points land
// on UTF-8 boundaries and prefer a position just after a newline, which
// keeps most lines inside a single chunk.
func splitChunks(data []byte, target int) []*Chunk {
	if len(data) == 0 {
		return nil
	}
	if target <= 0 {
		target = DefaultChunkTarget
	}

	var chunks []*Chunk
	for len(data) > 0 {
		if int64(len(data)) <= int64(target)+int64(target)/2 {
			chunks = append(chunks, newChunk(data))
			break
		}
		cut := findCut(data, target)
		chunks = append(chunks, newChunk(data[:cut]))
		data = data[cut:]
	}
	return chunks
}

// findCut picks a split position near target: after a nearby newline when
// one exists, otherwise the closest UTF-8 boundary.
func findCut(data []byte, target int) int {
	window := target / 16
	hi := target + window
	if hi > len(data) {
		hi = len(data)
	}
	lo := target - window
	if lo < 1 {
		lo = 1
	}

	for i := target; i < hi; i++ {
		if data[i-1] == '\n' {
			return i
		}
	}
	for i := target; i >= lo; i-- {
		if data[i-1] == '\n' {
			return i
		}
	}

	// No newline nearby, fall back to the nearest UTF-8 boundary.
	cut := target
	for cut < len(data) && isContinuation(data[cut]) {
		cut++
	}
	if cut >= len(data) {
		cut = target
		for cut > 0 && isContinuation(data[cut]) {
			cut--
		}
	}
	if cut == 0 {
		cut = len(data)
	}
	return cut
}

// isContinuation reports whether b is a UTF-8 continuation byte.
func isContinuation(b byte) bool {
	return b&0xC0 == 0x80
}
