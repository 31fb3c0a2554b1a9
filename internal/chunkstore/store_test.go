package chunkstore

import (
	"bytes"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func content(s *Store) string {
	return string(s.Slice(0, s.ByteLength()))
}

func TestEmptyInsert(t *testing.T) {
	s := New(nil, 0)
	if s.ByteLength() != 0 {
		t.Fatalf("length = %d, want 0", s.ByteLength())
	}
	if s.LineCount() != 1 {
		t.Fatalf("line count = %d, want 1", s.LineCount())
	}
	if _, err := s.Insert(0, []byte("hello")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := content(s); got != "hello" {
		t.Fatalf("content = %q, want %q", got, "hello")
	}
	if s.ByteLength() != 5 {
		t.Fatalf("length = %d, want 5", s.ByteLength())
	}
	if s.LineCount() != 1 {
		t.Fatalf("line count = %d, want 1", s.LineCount())
	}
}

func TestInsertMiddle(t *testing.T) {
	s := New([]byte("hello world"), 0)
	if _, err := s.Insert(5, []byte(" beautiful")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := content(s); got != "hello beautiful world" {
		t.Fatalf("content = %q", got)
	}
}

func TestInsertNewlineUpdatesLineCount(t *testing.T) {
	s := New([]byte("ab"), 0)
	if s.LineCount() != 1 {
		t.Fatalf("line count = %d, want 1", s.LineCount())
	}
	if _, err := s.Insert(1, []byte("\n")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got := content(s); got != "a\nb" {
		t.Fatalf("content = %q, want %q", got, "a\nb")
	}
	if s.LineCount() != 2 {
		t.Fatalf("line count = %d, want 2", s.LineCount())
	}
}

func TestInsertOutOfBounds(t *testing.T) {
	s := New([]byte("abc"), 0)
	if _, err := s.Insert(4, []byte("x")); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
	if _, err := s.Insert(-1, []byte("x")); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestInsertInsideRuneRejected(t *testing.T) {
	s := New([]byte("aéb"), 0) // é is two bytes at offsets 1-2
	if _, err := s.Insert(2, []byte("x")); !errors.Is(err, ErrInvalidBoundary) {
		t.Fatalf("err = %v, want ErrInvalidBoundary", err)
	}
	// Offsets on boundaries are fine.
	if _, err := s.Insert(1, []byte("x")); err != nil {
		t.Fatalf("boundary insert: %v", err)
	}
	if _, err := s.Insert(s.ByteLength(), []byte("x")); err != nil {
		t.Fatalf("end insert: %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := New([]byte("hello world"), 0)
	if _, err := s.Delete(5, 11); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := content(s); got != "hello" {
		t.Fatalf("content = %q, want %q", got, "hello")
	}
}

func TestDeleteEmptyRangeIsNoop(t *testing.T) {
	s := New([]byte("abc"), 0)
	v := s.Version()
	got, err := s.Delete(1, 1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got != v {
		t.Fatalf("version = %d, want unchanged %d", got, v)
	}
}

func TestDeleteOutOfBounds(t *testing.T) {
	s := New([]byte("abc"), 0)
	if _, err := s.Delete(0, 4); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
	if _, err := s.Delete(2, 1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestInsertDeleteRoundTrip(t *testing.T) {
	before := "line one\nline two\nline three\n"
	s := New([]byte(before), 0)
	lines := s.LineCount()

	text := "inserted\ntext"
	if _, err := s.Insert(9, []byte(text)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Delete(9, 9+int64(len(text))); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := content(s); got != before {
		t.Fatalf("content = %q, want %q", got, before)
	}
	if s.LineCount() != lines {
		t.Fatalf("line count = %d, want %d", s.LineCount(), lines)
	}
}

func TestSliceWindow(t *testing.T) {
	s := New([]byte("hello world"), 0)
	if got := string(s.Slice(6, 11)); got != "world" {
		t.Fatalf("slice = %q, want %q", got, "world")
	}
	if got := s.Slice(5, 5); got != nil {
		t.Fatalf("empty slice = %q, want nil", got)
	}
	// Clamped at the end rather than failing: reads are forgiving.
	if got := string(s.Slice(6, 100)); got != "world" {
		t.Fatalf("clamped slice = %q, want %q", got, "world")
	}
}

func TestSnapshotSurvivesEdits(t *testing.T) {
	s := New([]byte("original content"), 0)
	snap := s.Snapshot()

	if _, err := s.Delete(0, 8); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Insert(0, []byte("fresh")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if got := string(snap.Slice(0, snap.ByteLength())); got != "original content" {
		t.Fatalf("snapshot content = %q, want original", got)
	}
	if snap.Version() == s.Version() {
		t.Fatalf("snapshot version should differ after edits")
	}
}

func TestOffsetToChunk(t *testing.T) {
	// Force multiple chunks with a small target.
	data := strings.Repeat("0123456789\n", 200)
	s := New([]byte(data), 64)

	for _, off := range []int64{0, 63, 64, 1000, int64(len(data)) - 1} {
		c, start, err := s.OffsetToChunk(off)
		if err != nil {
			t.Fatalf("OffsetToChunk(%d): %v", off, err)
		}
		local := off - start
		if local < 0 || local >= c.Len() {
			t.Fatalf("offset %d: local %d outside chunk of len %d", off, local, c.Len())
		}
		if c.Bytes()[local] != data[off] {
			t.Fatalf("offset %d: byte %q, want %q", off, c.Bytes()[local], data[off])
		}
	}

	if _, _, err := s.OffsetToChunk(int64(len(data))); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestChunkIteratorCoversBuffer(t *testing.T) {
	data := strings.Repeat("abcdefgh\n", 500)
	s := New([]byte(data), 64)

	it := s.Snapshot().Chunks(0)
	var rebuilt []byte
	next := int64(0)
	for {
		c, start, ok := it.Next()
		if !ok {
			break
		}
		if start != next {
			t.Fatalf("chunk start = %d, want %d", start, next)
		}
		rebuilt = append(rebuilt, c.Bytes()...)
		next += c.Len()
	}
	if string(rebuilt) != data {
		t.Fatalf("iterator rebuilt %d bytes, want %d", len(rebuilt), len(data))
	}
}

func TestChunkIteratorFromMiddle(t *testing.T) {
	data := strings.Repeat("x", 1000)
	s := New([]byte(data), 64)

	it := s.Snapshot().Chunks(500)
	c, start, ok := it.Next()
	if !ok {
		t.Fatalf("iterator exhausted")
	}
	if start > 500 || start+c.Len() <= 500 {
		t.Fatalf("first chunk [%d,%d) does not contain 500", start, start+c.Len())
	}
}

func TestNewlinesBefore(t *testing.T) {
	s := New([]byte("a\nb\nc"), 0)
	cases := []struct {
		off  int64
		want int64
	}{
		{0, 0}, {1, 0}, {2, 1}, {3, 1}, {4, 2}, {5, 2},
	}
	for _, tc := range cases {
		if got := s.NewlinesBefore(tc.off); got != tc.want {
			t.Fatalf("NewlinesBefore(%d) = %d, want %d", tc.off, got, tc.want)
		}
	}
}

func TestRandomEditsMatchReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ref := []byte("seed text\nwith lines\n")
	s := New(append([]byte(nil), ref...), 32)

	for i := 0; i < 500; i++ {
		if rng.Intn(2) == 0 || len(ref) == 0 {
			off := rng.Intn(len(ref) + 1)
			text := []byte(strings.Repeat("ab\n", rng.Intn(4)+1))
			if _, err := s.Insert(int64(off), text); err != nil {
				t.Fatalf("step %d insert(%d): %v", i, off, err)
			}
			ref = append(ref[:off], append(append([]byte(nil), text...), ref[off:]...)...)
		} else {
			a := rng.Intn(len(ref) + 1)
			b := rng.Intn(len(ref) + 1)
			if a > b {
				a, b = b, a
			}
			if _, err := s.Delete(int64(a), int64(b)); err != nil {
				t.Fatalf("step %d delete(%d,%d): %v", i, a, b, err)
			}
			ref = append(ref[:a], ref[b:]...)
		}

		if got := s.Slice(0, s.ByteLength()); !bytes.Equal(got, ref) {
			t.Fatalf("step %d: content diverged (%d vs %d bytes)", i, len(got), len(ref))
		}
		wantLines := int64(bytes.Count(ref, []byte("\n"))) + 1
		if s.LineCount() != wantLines {
			t.Fatalf("step %d: line count = %d, want %d", i, s.LineCount(), wantLines)
		}
	}
}
