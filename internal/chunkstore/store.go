package chunkstore

// VersionID identifies one immutable state of a store. Every successful
// edit produces the next version.
type VersionID uint64

// Store owns the chunk tree of one buffer. It is mutated only on the main
// editing loop, one edit at a time; there is no locking because there is
// no concurrent writer. Snapshots taken before an edit stay valid and may
// be read from background tasks.
type Store struct {
	root    *node
	target  int
	version VersionID
}

// Snapshot is a read-only view of the store at one version. Taking one is
// O(1): old roots are immutable, so the snapshot is just the root pointer.
// The snapshot keeps its subtrees alive for as long as it is referenced.
type Snapshot struct {
	root    *node
	version VersionID
}

// New builds a store from raw bytes. target is the preferred chunk size;
// 0 selects DefaultChunkTarget.
func New(initial []byte, target int) *Store {
	if target <= 0 {
		target = DefaultChunkTarget
	}
	owned := make([]byte, len(initial))
	copy(owned, initial)
	return &Store{
		root:   buildTree(splitChunks(owned, target)),
		target: target,
	}
}

// ByteLength returns the total byte length of the buffer.
func (s *Store) ByteLength() int64 {
	if s.root == nil {
		return 0
	}
	return s.root.bytes
}

// LineCount returns the number of logical lines: newline count plus one.
func (s *Store) LineCount() int64 {
	if s.root == nil {
		return 1
	}
	return s.root.newlines + 1
}

// Version returns the current version ID.
func (s *Store) Version() VersionID {
	return s.version
}

// Snapshot returns a handle to the current immutable state.
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{root: s.root, version: s.version}
}

// Insert places data at a byte offset and returns the new version.
// Fails with ErrOutOfBounds when offset exceeds the buffer length and
// with ErrInvalidBoundary when offset falls inside a UTF-8 sequence.
func (s *Store) Insert(offset int64, data []byte) (VersionID, error) {
	length := s.ByteLength()
	if offset < 0 || offset > length {
		return s.version, ErrOutOfBounds
	}
	if offset < length {
		if b, _ := s.byteAt(offset); isContinuation(b) {
			return s.version, ErrInvalidBoundary
		}
	}
	if len(data) == 0 {
		return s.version, nil
	}

	// Copy so the store never aliases caller-owned memory.
	owned := make([]byte, len(data))
	copy(owned, data)

	left, right := split(s.root, offset, s.target)
	mid := buildTree(splitChunks(owned, s.target))
	s.root = concat(concat(left, mid, s.target), right, s.target)
	s.version++
	return s.version, nil
}

// Delete removes the byte range [start, end) and returns the new version.
// An empty range is a no-op. Fails with ErrOutOfBounds when the range
// extends past the buffer or start exceeds end.
func (s *Store) Delete(start, end int64) (VersionID, error) {
	length := s.ByteLength()
	if start < 0 || start > end || end > length {
		return s.version, ErrOutOfBounds
	}
	if start == end {
		return s.version, nil
	}

	left, rest := split(s.root, start, s.target)
	_, right := split(rest, end-start, s.target)
	s.root = concat(left, right, s.target)
	s.version++
	return s.version, nil
}

// Slice returns a copy of the bytes in [start, end), walking only the
// subtrees overlapping the range. The range is clamped to the buffer.
func (s *Store) Slice(start, end int64) []byte {
	return s.Snapshot().Slice(start, end)
}

// OffsetToChunk returns the chunk containing offset and the offset of the
// chunk's first byte. Fails with ErrOutOfBounds for offset >= length.
func (s *Store) OffsetToChunk(offset int64) (*Chunk, int64, error) {
	return s.Snapshot().OffsetToChunk(offset)
}

// NewlinesBefore counts '\n' bytes in [0, offset).
func (s *Store) NewlinesBefore(offset int64) int64 {
	return newlinesBefore(s.root, offset)
}

func (s *Store) byteAt(offset int64) (byte, bool) {
	if s.root == nil || offset < 0 || offset >= s.root.bytes {
		return 0, false
	}
	c, start := locate(s.root, offset)
	return c.data[offset-start], true
}

// Snapshot accessors mirror the store's read operations.

func (sn *Snapshot) ByteLength() int64 {
	if sn.root == nil {
		return 0
	}
	return sn.root.bytes
}

func (sn *Snapshot) LineCount() int64 {
	if sn.root == nil {
		return 1
	}
	return sn.root.newlines + 1
}

func (sn *Snapshot) Version() VersionID {
	return sn.version
}

func (sn *Snapshot) Slice(start, end int64) []byte {
	if sn.root == nil || start >= end {
		return nil
	}
	n := end - start
	if max := sn.root.bytes - start; n > max {
		n = max
	}
	if n <= 0 {
		return nil
	}
	return sliceInto(make([]byte, 0, n), sn.root, start, end)
}

func (sn *Snapshot) OffsetToChunk(offset int64) (*Chunk, int64, error) {
	if sn.root == nil || offset < 0 || offset >= sn.root.bytes {
		return nil, 0, ErrOutOfBounds
	}
	c, start := locate(sn.root, offset)
	return c, start, nil
}

func (sn *Snapshot) NewlinesBefore(offset int64) int64 {
	return newlinesBefore(sn.root, offset)
}
