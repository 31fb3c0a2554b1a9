package buffer

import (
	"bytes"

	"github.com/kobzarvs/bigtext/internal/chunkstore"
)

// searchWindow is the slice size FindNext streams through the buffer.
const searchWindow = 64 * 1024

// FindNext returns the offset of the first occurrence of pattern at or
// after from, wrapping around to the start of the buffer when nothing is
// found past from. It reads a snapshot in bounded windows and never
// materializes the whole file, so it is safe to call from a background
// task against a retained snapshot.
func (b *Buffer) FindNext(pattern []byte, from int64) (int64, bool) {
	return FindNext(b.store.Snapshot(), pattern, from)
}

// FindNext is the snapshot form of Buffer.FindNext.
func FindNext(sn *chunkstore.Snapshot, pattern []byte, from int64) (int64, bool) {
	if len(pattern) == 0 {
		return -1, false
	}
	length := sn.ByteLength()
	if from < 0 {
		from = 0
	}
	if off, ok := findIn(sn, pattern, from, length); ok {
		return off, true
	}
	if from > 0 {
		// Wrap: cover matches straddling the original start point.
		limit := from + int64(len(pattern)) - 1
		if limit > length {
			limit = length
		}
		return findIn(sn, pattern, 0, limit)
	}
	return -1, false
}

// ReplaceRange substitutes [start, end) with repl. The delete and the
// insert land on the undo log separately.
func (b *Buffer) ReplaceRange(start, end int64, repl []byte) (chunkstore.VersionID, error) {
	v, err := b.Delete(start, end)
	if err != nil {
		return v, err
	}
	if len(repl) == 0 {
		return v, nil
	}
	return b.Insert(start, repl)
}

// ReplaceNext replaces the first match of pattern at or after from,
// wrapping like FindNext, and returns the match offset.
func (b *Buffer) ReplaceNext(pattern, repl []byte, from int64) (int64, bool, error) {
	off, ok := b.FindNext(pattern, from)
	if !ok {
		return -1, false, nil
	}
	if _, err := b.ReplaceRange(off, off+int64(len(pattern)), repl); err != nil {
		return off, false, err
	}
	return off, true, nil
}

// ReplaceAll replaces every match of pattern front to back and returns
// the number of replacements. Matches are found against a fresh snapshot
// after each edit, so repl may contain the pattern without looping.
func (b *Buffer) ReplaceAll(pattern, repl []byte) (int64, error) {
	if len(pattern) == 0 {
		return 0, nil
	}
	var n int64
	pos := int64(0)
	for {
		sn := b.store.Snapshot()
		off, ok := findIn(sn, pattern, pos, sn.ByteLength())
		if !ok {
			return n, nil
		}
		if _, err := b.ReplaceRange(off, off+int64(len(pattern)), repl); err != nil {
			return n, err
		}
		n++
		pos = off + int64(len(repl))
	}
}

func findIn(sn *chunkstore.Snapshot, pattern []byte, lo, hi int64) (int64, bool) {
	overlap := int64(len(pattern) - 1)
	window := int64(searchWindow)
	if window <= overlap {
		window = overlap + searchWindow
	}
	for pos := lo; pos < hi; {
		end := pos + window
		if end > hi {
			end = hi
		}
		buf := sn.Slice(pos, end)
		if i := bytes.Index(buf, pattern); i >= 0 {
			return pos + int64(i), true
		}
		if end == hi {
			break
		}
		pos = end - overlap
	}
	return -1, false
}
