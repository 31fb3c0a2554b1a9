// Package lineindex answers "byte offset of line N" and "line containing
// byte B" for buffers too large to scan eagerly. It keeps a sparse forest
// of byte/line anchors rooted at exact scans and estimates between them
// using the observed average line length, never scanning more than a
// bounded window per query.
package lineindex

import (
	"sort"

	"github.com/kobzarvs/bigtext/internal/logger"
)

// Confidence states how an anchor's line number was derived. An anchor
// only ever moves toward Exact, never away from it.
type Confidence int

const (
	// Exact means the line number was counted from line 0 or another
	// Exact anchor. Authoritative.
	Exact Confidence = iota

	// Estimated means the line number was computed from the average line
	// length. May be off; self-corrects as the user navigates.
	Estimated

	// Relative means the line number was counted exactly from a parent
	// anchor that is itself not Exact. Refining the parent shifts this
	// anchor by the same correction.
	Relative
)

func (c Confidence) String() string {
	switch c {
	case Exact:
		return "exact"
	case Estimated:
		return "estimated"
	case Relative:
		return "relative"
	}
	return "unknown"
}

// AnchorID identifies an anchor within one index. Zero is never valid.
type AnchorID uint64

// Anchor is one byte/line correspondence point. Parent is set only for
// Relative confidence.
type Anchor struct {
	ID         AnchorID
	Byte       int64
	Line       int64
	Confidence Confidence
	Parent     AnchorID
}

// Content is the buffer text the index scans. *chunkstore.Store and
// *chunkstore.Snapshot both satisfy it.
type Content interface {
	ByteLength() int64
	Slice(start, end int64) []byte
}

const (
	defaultAvgLineLength = 100
	defaultScanCapLines  = 100
	defaultScanCapBytes  = 10 * 1024
)

// Index is the per-buffer anchor set. Like the rest of the core it is
// mutated only on the main editing loop.
type Index struct {
	content Content
	anchors []*Anchor // ordered by byte offset; anchors[0] is byte 0, line 0
	byID    map[AnchorID]*Anchor
	nextID  AnchorID

	capLines int64
	capBytes int64

	seedAvg float64
	// Totals over all exact scans, used to refine the average estimate.
	scannedBytes    int64
	scannedNewlines int64
}

// New creates an index over content with an anchor at byte 0. Zero values
// select the defaults (average 100 bytes/line, scan cap 100 lines/10KB).
func New(content Content, avgLineLength, scanCapLines, scanCapBytes int) *Index {
	if avgLineLength <= 0 {
		avgLineLength = defaultAvgLineLength
	}
	if scanCapLines <= 0 {
		scanCapLines = defaultScanCapLines
	}
	if scanCapBytes <= 0 {
		scanCapBytes = defaultScanCapBytes
	}
	x := &Index{
		content:  content,
		byID:     make(map[AnchorID]*Anchor),
		capLines: int64(scanCapLines),
		capBytes: int64(scanCapBytes),
		seedAvg:  float64(avgLineLength),
	}
	x.register(0, 0, Exact, 0)
	return x
}

// AnchorCount returns the number of anchors held.
func (x *Index) AnchorCount() int {
	return len(x.anchors)
}

// Anchor returns a copy of an anchor by ID.
func (x *Index) Anchor(id AnchorID) (Anchor, bool) {
	a, ok := x.byID[id]
	if !ok {
		return Anchor{}, false
	}
	return *a, true
}

// LineToByte returns the byte offset of the start of line n together with
// the confidence of the answer. Within scan range of an anchor the answer
// is counted exactly; beyond it the offset is estimated from the average
// line length and snapped to the nearest line start.
func (x *Index) LineToByte(n int64) (int64, Confidence) {
	if n <= 0 {
		return 0, Exact
	}
	a := x.nearestByLine(n)
	if a.Line == n {
		return a.Byte, a.Confidence
	}

	// n > a.Line by construction of nearestByLine.
	if off, ok := x.scanToLine(a, n); ok {
		conf := Exact
		parent := AnchorID(0)
		if a.Confidence != Exact {
			conf = Relative
			parent = a.ID
		}
		x.register(off, n, conf, parent)
		return off, conf
	}

	// Too far for an exact count: jump by estimate and snap to the
	// nearest line start.
	target := a.Byte + int64(float64(n-a.Line)*x.avg())
	length := x.content.ByteLength()
	if target > length {
		target = length
	}
	off, ok := x.snapToLineStart(target)
	if !ok {
		// No newline within the window, e.g. one enormous line. The raw
		// estimate is the best answer available.
		logger.Debug("line estimate did not snap to a newline", "line", n, "target", target)
		return target, Estimated
	}
	x.register(off, n, Estimated, 0)
	return off, Estimated
}

// ByteToLine returns the line number containing byte b with its
// confidence.
func (x *Index) ByteToLine(b int64) (int64, Confidence) {
	if b <= 0 {
		return 0, Exact
	}
	if length := x.content.ByteLength(); b > length {
		b = length
	}
	a := x.nearestByByte(b)

	if line, ok := x.countLines(a, b); ok {
		conf := Exact
		parent := AnchorID(0)
		if a.Confidence != Exact {
			conf = Relative
			parent = a.ID
		}
		if start, snapped := x.lineStartBefore(b); snapped {
			x.register(start, line, conf, parent)
		}
		return line, conf
	}

	line := a.Line + int64(float64(b-a.Byte)/x.avg())
	return line, Estimated
}

// RegisterExact records a known byte/line correspondence, e.g. from an
// eager scan at open. An existing anchor at the same offset is refined.
func (x *Index) RegisterExact(byteOff, line int64) {
	x.register(byteOff, line, Exact, 0)
}

// Refine marks an anchor Exact at the given line and shifts every
// descendant that counted its line from this anchor by the same
// correction. Confidence never regresses; refining an Exact anchor to a
// different line is a caller bug and is ignored.
func (x *Index) Refine(id AnchorID, exactLine int64) {
	a, ok := x.byID[id]
	if !ok {
		return
	}
	if a.Confidence == Exact {
		if a.Line != exactLine {
			logger.Warn("refine disagrees with exact anchor", "anchor", id, "line", a.Line, "claimed", exactLine)
		}
		return
	}
	delta := exactLine - a.Line
	a.Line = exactLine
	a.Confidence = Exact
	a.Parent = 0
	if delta != 0 {
		x.shiftChildren(id, delta)
	}
}

// AdjustForEdit keeps anchors aligned after a buffer edit. Anchors past
// the edit shift by the byte and line deltas; anchors inside a deleted
// range are dropped. An anchor sitting exactly at the deletion's end
// lands on the deletion point, which is a line start only when the byte
// before it is a newline; otherwise the anchor is dropped too. Callers
// adjust after the content has changed, so the check reads post-edit
// bytes.
func (x *Index) AdjustForEdit(offset, byteDelta, lineDelta int64) {
	if byteDelta < 0 {
		cut := offset - byteDelta
		kept := x.anchors[:0]
		for _, a := range x.anchors {
			drop := a.Byte > offset && a.Byte < cut
			if !drop && a.Byte == cut {
				drop = !x.lineStartAt(offset)
			}
			if drop {
				delete(x.byID, a.ID)
				continue
			}
			kept = append(kept, a)
		}
		x.anchors = kept
	}
	for _, a := range x.anchors {
		if a.Byte > offset {
			a.Byte += byteDelta
			a.Line += lineDelta
		}
	}
}

// internal helpers

func (x *Index) avg() float64 {
	// Prefer observed data once enough lines have been counted.
	if x.scannedNewlines >= 64 {
		return float64(x.scannedBytes) / float64(x.scannedNewlines)
	}
	return x.seedAvg
}

// nearestByLine returns the last anchor with Line <= n. anchors[0] is
// line 0, so one always exists for n >= 0.
func (x *Index) nearestByLine(n int64) *Anchor {
	i := sort.Search(len(x.anchors), func(i int) bool { return x.anchors[i].Line > n })
	return x.anchors[i-1]
}

// nearestByByte returns the last anchor with Byte <= b.
func (x *Index) nearestByByte(b int64) *Anchor {
	i := sort.Search(len(x.anchors), func(i int) bool { return x.anchors[i].Byte > b })
	return x.anchors[i-1]
}

// withinBudget reports whether a scan may continue. The cap is
// max(capLines, capBytes): the scan stops only once both are exceeded.
func (x *Index) withinBudget(scanned, newlines int64) bool {
	return scanned <= x.capBytes || newlines <= x.capLines
}

// scanToLine counts newlines forward from anchor a until line n, in
// bounded steps. Returns the byte offset of the start of line n, or false
// when the budget runs out or the buffer ends first.
func (x *Index) scanToLine(a *Anchor, n int64) (int64, bool) {
	length := x.content.ByteLength()
	pos, line := a.Byte, a.Line
	for pos < length {
		if !x.withinBudget(pos-a.Byte, line-a.Line) {
			return 0, false
		}
		end := pos + 4096
		if end > length {
			end = length
		}
		buf := x.content.Slice(pos, end)
		for i, c := range buf {
			if c != '\n' {
				continue
			}
			line++
			if line == n {
				x.recordScan(pos+int64(i)+1-a.Byte, line-a.Line)
				return pos + int64(i) + 1, true
			}
		}
		pos = end
	}
	return 0, false
}

// countLines counts newlines in [a.Byte, b) and returns the line number
// of b, or false when the distance exceeds the budget.
func (x *Index) countLines(a *Anchor, b int64) (int64, bool) {
	pos, line := a.Byte, a.Line
	for pos < b {
		if !x.withinBudget(pos-a.Byte, line-a.Line) {
			return 0, false
		}
		end := pos + 4096
		if end > b {
			end = b
		}
		buf := x.content.Slice(pos, end)
		for _, c := range buf {
			if c == '\n' {
				line++
			}
		}
		pos = end
	}
	if !x.withinBudget(b-a.Byte, line-a.Line) {
		return 0, false
	}
	x.recordScan(b-a.Byte, line-a.Line)
	return line, true
}

// snapToLineStart finds the nearest line start at or before target,
// looking back at most capBytes.
func (x *Index) snapToLineStart(target int64) (int64, bool) {
	if target <= 0 {
		return 0, true
	}
	from := target - x.capBytes
	if from < 0 {
		from = 0
	}
	buf := x.content.Slice(from, target)
	for i := len(buf) - 1; i >= 0; i-- {
		if buf[i] == '\n' {
			return from + int64(i) + 1, true
		}
	}
	if from == 0 {
		return 0, true
	}
	return 0, false
}

// lineStartBefore finds the start of the line containing b, bounded the
// same way as snapToLineStart.
func (x *Index) lineStartBefore(b int64) (int64, bool) {
	return x.snapToLineStart(b)
}

// lineStartAt reports whether offset begins a line in the current
// content.
func (x *Index) lineStartAt(offset int64) bool {
	if offset <= 0 {
		return true
	}
	prev := x.content.Slice(offset-1, offset)
	return len(prev) == 1 && prev[0] == '\n'
}

func (x *Index) recordScan(bytes, newlines int64) {
	x.scannedBytes += bytes
	x.scannedNewlines += newlines
}

// register inserts an anchor, or refines the existing one at the same
// byte offset. Anchors that would break the byte/line ordering of their
// neighbors are discarded: a wrong estimate is recoverable, a broken
// ordering is not.
func (x *Index) register(byteOff, line int64, conf Confidence, parent AnchorID) AnchorID {
	i := sort.Search(len(x.anchors), func(i int) bool { return x.anchors[i].Byte >= byteOff })
	if i < len(x.anchors) && x.anchors[i].Byte == byteOff {
		a := x.anchors[i]
		if conf == Exact && a.Confidence != Exact {
			x.Refine(a.ID, line)
		}
		return a.ID
	}
	if i > 0 && x.anchors[i-1].Line > line {
		logger.Debug("discarding out-of-order anchor", "byte", byteOff, "line", line)
		return 0
	}
	if i < len(x.anchors) && x.anchors[i].Line < line {
		logger.Debug("discarding out-of-order anchor", "byte", byteOff, "line", line)
		return 0
	}

	x.nextID++
	a := &Anchor{ID: x.nextID, Byte: byteOff, Line: line, Confidence: conf, Parent: parent}
	x.anchors = append(x.anchors, nil)
	copy(x.anchors[i+1:], x.anchors[i:])
	x.anchors[i] = a
	x.byID[a.ID] = a
	return a.ID
}

func (x *Index) shiftChildren(parent AnchorID, delta int64) {
	for _, a := range x.anchors {
		if a.Confidence == Relative && a.Parent == parent {
			a.Line += delta
			x.shiftChildren(a.ID, delta)
		}
	}
}
