// Package buffer ties the storage core of one open file together: chunked
// content, the marker tree, the line anchor index and the edit log. All
// mutation goes through Insert/Delete on the main editing loop; background
// tasks only ever read snapshots.
package buffer

import (
	"bytes"

	"github.com/kobzarvs/bigtext/internal/chunkstore"
	"github.com/kobzarvs/bigtext/internal/config"
	"github.com/kobzarvs/bigtext/internal/lineindex"
	"github.com/kobzarvs/bigtext/internal/logger"
	"github.com/kobzarvs/bigtext/internal/markertree"
)

// anchorStride is the line interval between eagerly seeded anchors for
// files below the huge-file threshold.
const anchorStride = 1024

type Buffer struct {
	store   *chunkstore.Store
	markers *markertree.Tree
	lines   *lineindex.Index
	ending  LineEnding

	undo []editOp
	redo []editOp
}

// New builds a buffer from raw bytes. Files under the huge-file threshold
// get exact line anchors seeded up front; larger files start with only
// anchor 0 and scan lazily as the user navigates.
func New(data []byte, cfg config.Config) *Buffer {
	st := chunkstore.New(data, cfg.Store.ChunkTargetSize)
	b := &Buffer{
		store:   st,
		markers: markertree.New(cfg.Debug),
		lines: lineindex.New(st,
			int(cfg.LineIndex.EstimateLineLength),
			cfg.LineIndex.ScanCapLines,
			int(cfg.LineIndex.ScanCapBytes)),
		ending: DetectLineEnding(data),
	}
	if int64(len(data)) <= cfg.Store.HugeFileThreshold {
		b.seedAnchors()
	}
	return b
}

func (b *Buffer) ByteLength() int64 {
	return b.store.ByteLength()
}

func (b *Buffer) LineCount() int64 {
	return b.store.LineCount()
}

func (b *Buffer) Version() chunkstore.VersionID {
	return b.store.Version()
}

// Snapshot returns an immutable view for background readers (search,
// highlighting). It stays valid across any number of further edits.
func (b *Buffer) Snapshot() *chunkstore.Snapshot {
	return b.store.Snapshot()
}

func (b *Buffer) Slice(start, end int64) []byte {
	return b.store.Slice(start, end)
}

// LineEnding reports the ending style detected at open, kept for
// save-time fidelity.
func (b *Buffer) LineEnding() LineEnding {
	return b.ending
}

// Insert places data at a byte offset, shifting all markers and anchors,
// and records the inverse operation for undo.
func (b *Buffer) Insert(offset int64, data []byte) (chunkstore.VersionID, error) {
	v, inv, err := b.applyInsert(offset, data)
	if err != nil || len(data) == 0 {
		return v, err
	}
	b.undo = append(b.undo, inv)
	b.redo = b.redo[:0]
	return v, nil
}

// Delete removes [start, end), shifting all markers and anchors, and
// records the inverse operation for undo.
func (b *Buffer) Delete(start, end int64) (chunkstore.VersionID, error) {
	v, inv, err := b.applyDelete(start, end)
	if err != nil || start == end {
		return v, err
	}
	b.undo = append(b.undo, inv)
	b.redo = b.redo[:0]
	return v, nil
}

// AddMarker tracks [start, end) through subsequent edits. Line markers
// pick up the line number of their start offset.
func (b *Buffer) AddMarker(start, end int64, kind markertree.Kind, aff markertree.Affinity) (markertree.MarkerID, error) {
	if end > b.store.ByteLength() {
		return 0, chunkstore.ErrOutOfBounds
	}
	var line int64
	if kind == markertree.KindLine {
		line, _ = b.lines.ByteToLine(start)
	}
	return b.markers.Add(start, end, kind, aff, line)
}

func (b *Buffer) RemoveMarker(id markertree.MarkerID) error {
	return b.markers.Remove(id)
}

// ResolveMarker returns a marker's current interval with every pending
// edit delta applied.
func (b *Buffer) ResolveMarker(id markertree.MarkerID) (markertree.Marker, error) {
	return b.markers.Resolve(id)
}

// MarkersIn returns all markers overlapping [a, b).
func (b *Buffer) MarkersIn(a, bEnd int64) []markertree.Marker {
	return b.markers.QueryRange(a, bEnd)
}

// LineToByte returns the byte offset of the start of line n. Cached line
// markers answer exactly; otherwise the anchor index estimates and the
// confidence tag tells the caller how much to trust the number.
func (b *Buffer) LineToByte(n int64) (int64, lineindex.Confidence) {
	if m, err := b.markers.QueryLine(n); err == nil {
		return m.Start, lineindex.Exact
	}
	return b.lines.LineToByte(n)
}

// ByteToLine returns the line number containing a byte offset.
func (b *Buffer) ByteToLine(off int64) (int64, lineindex.Confidence) {
	return b.lines.ByteToLine(off)
}

// edits

// editOp replays through the same insert/delete path as user edits.
// data non-nil: insert data at offset. data nil: delete length bytes.
type editOp struct {
	offset int64
	data   []byte
	length int64
}

// Undo reverts the most recent edit by replaying its inverse.
func (b *Buffer) Undo() (chunkstore.VersionID, error) {
	if len(b.undo) == 0 {
		return b.store.Version(), ErrNothingToUndo
	}
	op := b.undo[len(b.undo)-1]
	b.undo = b.undo[:len(b.undo)-1]
	v, inv, err := b.applyOp(op)
	if err != nil {
		return v, err
	}
	b.redo = append(b.redo, inv)
	return v, nil
}

// Redo reapplies the most recently undone edit.
func (b *Buffer) Redo() (chunkstore.VersionID, error) {
	if len(b.redo) == 0 {
		return b.store.Version(), ErrNothingToRedo
	}
	op := b.redo[len(b.redo)-1]
	b.redo = b.redo[:len(b.redo)-1]
	v, inv, err := b.applyOp(op)
	if err != nil {
		return v, err
	}
	b.undo = append(b.undo, inv)
	return v, nil
}

func (b *Buffer) CanUndo() bool { return len(b.undo) > 0 }
func (b *Buffer) CanRedo() bool { return len(b.redo) > 0 }

func (b *Buffer) applyOp(op editOp) (chunkstore.VersionID, editOp, error) {
	if op.data != nil {
		return b.applyInsert(op.offset, op.data)
	}
	return b.applyDelete(op.offset, op.offset+op.length)
}

func (b *Buffer) applyInsert(offset int64, data []byte) (chunkstore.VersionID, editOp, error) {
	v, err := b.store.Insert(offset, data)
	if err != nil || len(data) == 0 {
		return v, editOp{}, err
	}
	nl := int64(bytes.Count(data, []byte{'\n'}))
	b.markers.AdjustForEdit(offset, int64(len(data)), nl)
	b.lines.AdjustForEdit(offset, int64(len(data)), nl)
	if nl > 0 {
		b.rescanLines(offset, offset+int64(len(data)))
	}
	return v, editOp{offset: offset, length: int64(len(data))}, nil
}

func (b *Buffer) applyDelete(start, end int64) (chunkstore.VersionID, editOp, error) {
	removed := b.store.Slice(start, end)
	v, err := b.store.Delete(start, end)
	if err != nil || start == end {
		return v, editOp{}, err
	}
	nl := int64(bytes.Count(removed, []byte{'\n'}))
	b.markers.AdjustForEdit(start, start-end, -nl)
	b.lines.AdjustForEdit(start, start-end, -nl)
	if nl > 0 {
		b.rescanLines(start, start+1)
	}
	return v, editOp{offset: start, data: removed}, nil
}

// seedAnchors registers an exact anchor every anchorStride lines.
func (b *Buffer) seedAnchors() {
	it := b.store.Snapshot().Chunks(0)
	var line int64
	next := int64(anchorStride)
	for {
		c, start, ok := it.Next()
		if !ok {
			return
		}
		for i, ch := range c.Bytes() {
			if ch != '\n' {
				continue
			}
			line++
			if line == next {
				b.lines.RegisterExact(start+int64(i)+1, line)
				next += anchorStride
			}
		}
	}
}

// rescanLines repairs the line marker cache after an edit that changed
// newline content in [lo, hi): every cached line overlapping the span
// plus one neighbor on each side is invalidated and recounted from the
// nearest surviving line start.
func (b *Buffer) rescanLines(lo, hi int64) {
	removed := b.markers.InvalidateLines(lo, hi)
	if len(removed) == 0 {
		return
	}
	first := removed[0]
	startByte, line := b.snapLineStart(first.Start, first.Line)
	stop := removed[len(removed)-1].End
	if hi > stop {
		stop = hi
	}

	it := b.Lines(startByte)
	for {
		s, e, ok := it.Next()
		if !ok {
			return
		}
		if _, err := b.markers.Add(s, e, markertree.KindLine, markertree.AffinityBefore, line); err != nil {
			logger.Warn("line rescan aborted", "start", s, "end", e, "err", err)
			return
		}
		line++
		if e >= stop {
			return
		}
	}
}

// snapLineStart verifies that pos starts a line, walking back to the
// previous newline when an edit left a clamped marker mid-line.
func (b *Buffer) snapLineStart(pos, claimed int64) (int64, int64) {
	if pos <= 0 {
		return 0, 0
	}
	if prev := b.store.Slice(pos-1, pos); len(prev) == 1 && prev[0] == '\n' {
		return pos, claimed
	}
	from := pos - 16*1024
	if from < 0 {
		from = 0
	}
	buf := b.store.Slice(from, pos)
	i := bytes.LastIndexByte(buf, '\n')
	if i < 0 {
		if from == 0 {
			return 0, 0
		}
		return pos, claimed
	}
	start := from + int64(i) + 1
	line, _ := b.lines.ByteToLine(start)
	return start, line
}
