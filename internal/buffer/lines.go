package buffer

import (
	"bytes"

	"github.com/kobzarvs/bigtext/internal/chunkstore"
	"github.com/kobzarvs/bigtext/internal/lineindex"
	"github.com/kobzarvs/bigtext/internal/markertree"
)

// LineEnding is the ending style detected when the buffer was opened.
type LineEnding int

const (
	EndingLF LineEnding = iota
	EndingCRLF
)

func (e LineEnding) String() string {
	if e == EndingCRLF {
		return "CRLF"
	}
	return "LF"
}

// Sequence returns the bytes this ending writes at end of line.
func (e LineEnding) Sequence() []byte {
	if e == EndingCRLF {
		return []byte("\r\n")
	}
	return []byte("\n")
}

// DetectLineEnding inspects the first 4KB of data. A "\r\n" pair means
// CRLF; everything else, including an empty probe, means LF.
func DetectLineEnding(data []byte) LineEnding {
	probe := data
	if len(probe) > 4096 {
		probe = probe[:4096]
	}
	if i := bytes.IndexByte(probe, '\n'); i > 0 && probe[i-1] == '\r' {
		return EndingCRLF
	}
	return EndingLF
}

// LineIterator walks logical lines forward over one snapshot. Each line
// is [start, end) with the newline included, except the final line.
type LineIterator struct {
	it     *chunkstore.ChunkIterator
	chunk  []byte
	base   int64
	idx    int
	pos    int64
	length int64
	done   bool
}

// Lines iterates lines of the current content starting at from, which
// must be a line start.
func (b *Buffer) Lines(from int64) *LineIterator {
	sn := b.store.Snapshot()
	return &LineIterator{it: sn.Chunks(from), pos: from, length: sn.ByteLength()}
}

// Next returns the byte range of the next line.
func (it *LineIterator) Next() (start, end int64, ok bool) {
	if it.done || it.pos >= it.length {
		return 0, 0, false
	}
	start = it.pos
	for {
		if it.idx >= len(it.chunk) {
			c, base, more := it.it.Next()
			if !more {
				// Final line without a trailing newline.
				it.done = true
				it.pos = it.length
				return start, it.length, true
			}
			it.chunk = c.Bytes()
			it.base = base
			it.idx = 0
			if base < it.pos {
				it.idx = int(it.pos - base)
			}
		}
		rel := bytes.IndexByte(it.chunk[it.idx:], '\n')
		if rel < 0 {
			it.idx = len(it.chunk)
			continue
		}
		it.idx += rel + 1
		it.pos = it.base + int64(it.idx)
		return start, it.pos, true
	}
}

// CacheLines eagerly registers line markers for count lines starting at
// startLine, typically the visible window plus some slack. Existing
// markers in the window are replaced. An estimated start offset would
// seed markers the cache later reports as exact, so nothing is cached
// until the start is known exactly.
func (b *Buffer) CacheLines(startLine, count int64) {
	if count <= 0 {
		return
	}
	off, conf := b.LineToByte(startLine)
	if conf != lineindex.Exact {
		return
	}
	it := b.Lines(off)

	type span struct{ s, e int64 }
	spans := make([]span, 0, count)
	for i := int64(0); i < count; i++ {
		s, e, ok := it.Next()
		if !ok {
			break
		}
		spans = append(spans, span{s, e})
	}
	if len(spans) == 0 {
		return
	}

	b.markers.InvalidateLines(off, spans[len(spans)-1].e)
	for i, sp := range spans {
		if _, err := b.markers.Add(sp.s, sp.e, markertree.KindLine, markertree.AffinityBefore, startLine+int64(i)); err != nil {
			return
		}
	}
}
