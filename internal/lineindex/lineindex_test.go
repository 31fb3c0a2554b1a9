package lineindex

import (
	"strings"
	"testing"

	"github.com/kobzarvs/bigtext/internal/chunkstore"
)

func newIndex(t *testing.T, text string) (*Index, *chunkstore.Store) {
	t.Helper()
	s := chunkstore.New([]byte(text), 0)
	return New(s, 0, 0, 0), s
}

func TestByteToLineSmallBuffer(t *testing.T) {
	x, _ := newIndex(t, "a\nb\nc")
	cases := []struct {
		b    int64
		want int64
	}{
		{0, 0}, {1, 0}, {2, 1}, {3, 1}, {4, 2},
	}
	for _, tc := range cases {
		line, conf := x.ByteToLine(tc.b)
		if line != tc.want {
			t.Fatalf("ByteToLine(%d) = %d, want %d", tc.b, line, tc.want)
		}
		if conf != Exact {
			t.Fatalf("ByteToLine(%d) confidence = %v, want exact", tc.b, conf)
		}
	}
}

func TestLineToByteSmallBuffer(t *testing.T) {
	x, _ := newIndex(t, "a\nb\nc")
	off, conf := x.LineToByte(1)
	if off != 2 || conf != Exact {
		t.Fatalf("LineToByte(1) = %d (%v), want 2 (exact)", off, conf)
	}
	off, conf = x.LineToByte(2)
	if off != 4 || conf != Exact {
		t.Fatalf("LineToByte(2) = %d (%v), want 4 (exact)", off, conf)
	}
}

func TestLineByteInverse(t *testing.T) {
	text := strings.Repeat("some line of text\n", 50)
	x, _ := newIndex(t, text)
	for n := int64(0); n < 50; n++ {
		off, conf := x.LineToByte(n)
		if conf != Exact {
			t.Fatalf("LineToByte(%d) confidence = %v, want exact", n, conf)
		}
		line, conf := x.ByteToLine(off)
		if conf != Exact {
			t.Fatalf("ByteToLine(%d) confidence = %v, want exact", off, conf)
		}
		if line != n {
			t.Fatalf("round trip of line %d gave %d", n, line)
		}
	}
}

func TestFarLineIsEstimated(t *testing.T) {
	// 20k lines of 20 bytes each, caps tightened so line 15000 is far
	// beyond exact scanning range.
	line := strings.Repeat("x", 19) + "\n"
	text := strings.Repeat(line, 20000)
	s := chunkstore.New([]byte(text), 0)
	x := New(s, 20, 100, 10*1024)

	off, conf := x.LineToByte(15000)
	if conf != Estimated {
		t.Fatalf("confidence = %v, want estimated", conf)
	}
	// Average matches reality here, so the estimate should land on the
	// right line start after snapping.
	if off != 15000*20 {
		t.Fatalf("LineToByte(15000) = %d, want %d", off, 15000*20)
	}
	if off%20 != 0 {
		t.Fatalf("estimate %d not on a line start", off)
	}
}

func TestEstimateRegistersAnchor(t *testing.T) {
	line := strings.Repeat("y", 99) + "\n"
	text := strings.Repeat(line, 5000)
	s := chunkstore.New([]byte(text), 0)
	x := New(s, 100, 100, 10*1024)

	before := x.AnchorCount()
	if _, conf := x.LineToByte(4000); conf != Estimated {
		t.Fatalf("confidence = %v, want estimated", conf)
	}
	if x.AnchorCount() != before+1 {
		t.Fatalf("anchor count = %d, want %d", x.AnchorCount(), before+1)
	}

	// A second query near the registered anchor resolves relative to it.
	if _, conf := x.ByteToLine(4000*100 + 50); conf == Estimated {
		t.Fatalf("query next to a fresh anchor should not re-estimate")
	}
}

func TestBoundedScan(t *testing.T) {
	// A counting wrapper proves queries never read more than the cap
	// plus one probe block.
	line := strings.Repeat("z", 49) + "\n"
	s := chunkstore.New([]byte(strings.Repeat(line, 100000)), 0)
	c := &countingContent{inner: s}
	x := New(c, 50, 100, 10*1024)

	c.read = 0
	x.LineToByte(90000)
	if c.read > 64*1024 {
		t.Fatalf("LineToByte scanned %d bytes, cap is 10KB/100 lines", c.read)
	}

	c.read = 0
	x.ByteToLine(4_000_000)
	if c.read > 64*1024 {
		t.Fatalf("ByteToLine scanned %d bytes, cap is 10KB/100 lines", c.read)
	}
}

type countingContent struct {
	inner *chunkstore.Store
	read  int64
}

func (c *countingContent) ByteLength() int64 {
	return c.inner.ByteLength()
}

func (c *countingContent) Slice(start, end int64) []byte {
	b := c.inner.Slice(start, end)
	c.read += int64(len(b))
	return b
}

func TestRefinePropagatesToChildren(t *testing.T) {
	x, _ := newIndex(t, strings.Repeat("abc\n", 10))

	parent := x.register(12, 5, Estimated, 0) // actually line 3, estimate is off by 2
	child := x.register(20, 7, Relative, parent)

	x.Refine(parent, 3)

	a, ok := x.Anchor(parent)
	if !ok || a.Confidence != Exact || a.Line != 3 {
		t.Fatalf("parent = %+v, want exact line 3", a)
	}
	ch, ok := x.Anchor(child)
	if !ok || ch.Line != 5 {
		t.Fatalf("child line = %d, want 5 after correction", ch.Line)
	}
	if ch.Confidence != Relative {
		t.Fatalf("child confidence = %v, want still relative", ch.Confidence)
	}
}

func TestConfidenceNeverRegresses(t *testing.T) {
	x, _ := newIndex(t, strings.Repeat("abc\n", 10))
	id := x.register(8, 2, Exact, 0)

	x.Refine(id, 4) // wrong claim against an exact anchor is ignored

	a, _ := x.Anchor(id)
	if a.Confidence != Exact || a.Line != 2 {
		t.Fatalf("anchor = %+v, want unchanged exact line 2", a)
	}
}

func TestAdjustForEditShiftsAnchors(t *testing.T) {
	x, _ := newIndex(t, "aaa\nbbb\nccc\n")
	id := x.register(8, 2, Exact, 0)

	// Insert "x\n" at offset 2: two bytes, one newline.
	x.AdjustForEdit(2, 2, 1)

	a, _ := x.Anchor(id)
	if a.Byte != 10 || a.Line != 3 {
		t.Fatalf("anchor = byte %d line %d, want byte 10 line 3", a.Byte, a.Line)
	}
}

func TestAdjustForEditDropsMidlineBoundaryAnchor(t *testing.T) {
	s := chunkstore.New([]byte("aaa\nbbb\nccc\nddd\n"), 0)
	x := New(s, 0, 0, 0)
	x.RegisterExact(8, 2)

	// Delete [5, 8): the cut lands mid-line, so the anchor at the old
	// start of line 2 must not survive at byte 5.
	if _, err := s.Delete(5, 8); err != nil {
		t.Fatalf("delete: %v", err)
	}
	x.AdjustForEdit(5, -3, -1)

	off, conf := x.LineToByte(1)
	if off != 4 || conf != Exact {
		t.Fatalf("LineToByte(1) = %d (%v), want 4 (exact)", off, conf)
	}
}

func TestAdjustForEditKeepsBoundaryLineStart(t *testing.T) {
	s := chunkstore.New([]byte("aaa\nbbb\nccc\nddd\n"), 0)
	x := New(s, 0, 0, 0)
	id := x.register(8, 2, Exact, 0)

	// Delete the whole of line 1: byte 8 moves to 4, still a line start.
	if _, err := s.Delete(4, 8); err != nil {
		t.Fatalf("delete: %v", err)
	}
	x.AdjustForEdit(4, -4, -1)

	a, ok := x.Anchor(id)
	if !ok || a.Byte != 4 || a.Line != 1 {
		t.Fatalf("anchor = %+v, want byte 4 line 1", a)
	}
	if a.Confidence != Exact {
		t.Fatalf("confidence = %v, want exact", a.Confidence)
	}
}

func TestAdjustForEditDropsDeletedAnchors(t *testing.T) {
	x, _ := newIndex(t, "aaa\nbbb\nccc\nddd\n")
	inside := x.register(6, 1, Exact, 0)
	after := x.register(12, 3, Exact, 0)

	// Delete [4, 8): one line removed.
	x.AdjustForEdit(4, -4, -1)

	if _, ok := x.Anchor(inside); ok {
		t.Fatalf("anchor inside deleted range should be dropped")
	}
	a, ok := x.Anchor(after)
	if !ok || a.Byte != 8 || a.Line != 2 {
		t.Fatalf("anchor = %+v, want byte 8 line 2", a)
	}
}
