package buffer

import (
	"bufio"
	"io"
	"os"
)

// SaveTo streams the current content to w chunk by chunk, never
// materializing the whole buffer.
func (b *Buffer) SaveTo(w io.Writer) error {
	it := b.store.Snapshot().Chunks(0)
	for {
		c, _, ok := it.Next()
		if !ok {
			return nil
		}
		if _, err := w.Write(c.Bytes()); err != nil {
			return err
		}
	}
}

// Save writes the buffer to path, replacing the file's content.
func (b *Buffer) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := b.SaveTo(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
