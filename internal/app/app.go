// Package app is the terminal shell around the storage core: a viewer
// and light editor that renders through the buffer's line queries and
// performs every mutation through the Buffer facade on this loop.
package app

import (
	"fmt"
	"os"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/bigtext/internal/buffer"
	"github.com/kobzarvs/bigtext/internal/config"
	"github.com/kobzarvs/bigtext/internal/highlight"
	"github.com/kobzarvs/bigtext/internal/lineindex"
	"github.com/kobzarvs/bigtext/internal/logger"
	"github.com/kobzarvs/bigtext/internal/markertree"
)

// maxOverlays caps how many highlight spans become overlay markers for
// one viewport.
const maxOverlays = 2000

// App is the top-level runtime for bigtext.
type App struct {
	args []string
}

func New(args []string) *App {
	return &App{args: args}
}

func (a *App) Run() error {
	runtime.LockOSThread()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Debug); err != nil {
		return err
	}
	defer logger.Close()

	var data []byte
	path := ""
	if len(a.args) > 0 {
		path = a.args[0]
		data, err = os.ReadFile(path)
		if err != nil {
			return err
		}
	}

	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	eng := highlight.New()
	if err := eng.Start(); err != nil {
		return err
	}
	defer eng.Stop()

	stopTick := make(chan struct{})
	defer close(stopTick)
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopTick:
				return
			case <-ticker.C:
				_ = s.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	v := &viewer{
		cfg:      cfg,
		scr:      s,
		eng:      eng,
		path:     path,
		lang:     highlight.DetectLanguage(path),
		buf:      buffer.New(data, cfg),
		overlays: make(map[markertree.MarkerID]string),
	}
	v.cursor, err = v.buf.AddMarker(0, 0, markertree.KindPosition, markertree.AffinityAfter)
	if err != nil {
		return err
	}
	logger.Info("opened", "path", path, "bytes", v.buf.ByteLength(), "ending", v.buf.LineEnding().String())

	v.requestHighlight()
	v.render()
	for !v.quit {
		ev := s.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			v.handleKey(ev)
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
		}
		v.drainHighlights()
		v.render()
	}
	return nil
}

type viewer struct {
	cfg  config.Config
	scr  tcell.Screen
	eng  *highlight.Engine
	buf  *buffer.Buffer
	path string
	lang string

	cursor  markertree.MarkerID
	topLine int64

	overlays map[markertree.MarkerID]string
	status   string

	prompt     bool
	promptText []rune
	lastQuery  []byte

	quit bool
}

func (v *viewer) cursorPos() int64 {
	m, err := v.buf.ResolveMarker(v.cursor)
	if err != nil {
		return 0
	}
	return m.Start
}

func (v *viewer) setCursor(pos int64) {
	if pos < 0 {
		pos = 0
	}
	if max := v.buf.ByteLength(); pos > max {
		pos = max
	}
	_ = v.buf.RemoveMarker(v.cursor)
	id, err := v.buf.AddMarker(pos, pos, markertree.KindPosition, markertree.AffinityAfter)
	if err != nil {
		logger.Error("cursor marker lost", "pos", pos, "err", err)
		return
	}
	v.cursor = id
}

// handleKey processes one key event on the main loop.
func (v *viewer) handleKey(ev *tcell.EventKey) {
	if v.prompt {
		v.handlePromptKey(ev)
		return
	}
	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyEscape:
		v.quit = true
	case tcell.KeyCtrlZ:
		if _, err := v.buf.Undo(); err != nil {
			v.status = err.Error()
		} else {
			v.status = "undo"
			v.afterEdit()
		}
	case tcell.KeyCtrlY:
		if _, err := v.buf.Redo(); err != nil {
			v.status = err.Error()
		} else {
			v.status = "redo"
			v.afterEdit()
		}
	case tcell.KeyCtrlS:
		v.save()
	case tcell.KeyCtrlF:
		v.prompt = true
		v.promptText = v.promptText[:0]
	case tcell.KeyCtrlN:
		v.findNext()
	case tcell.KeyLeft:
		v.setCursor(v.prevRune(v.cursorPos()))
	case tcell.KeyRight:
		v.setCursor(v.nextRune(v.cursorPos()))
	case tcell.KeyUp:
		v.moveVertically(-1)
	case tcell.KeyDown:
		v.moveVertically(1)
	case tcell.KeyPgUp:
		_, h := v.scr.Size()
		v.moveVertically(-int64(h - 2))
	case tcell.KeyPgDn:
		_, h := v.scr.Size()
		v.moveVertically(int64(h - 2))
	case tcell.KeyHome:
		line, _ := v.buf.ByteToLine(v.cursorPos())
		start, _ := v.buf.LineToByte(line)
		v.setCursor(start)
	case tcell.KeyEnd:
		v.setCursor(v.lineEnd(v.cursorPos()))
	case tcell.KeyEnter:
		v.insert(v.buf.LineEnding().Sequence())
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		cur := v.cursorPos()
		if cur > 0 {
			v.deleteRange(v.prevRune(cur), cur)
		}
	case tcell.KeyDelete:
		cur := v.cursorPos()
		if next := v.nextRune(cur); next > cur {
			v.deleteRange(cur, next)
		}
	case tcell.KeyRune:
		var enc [utf8.UTFMax]byte
		n := utf8.EncodeRune(enc[:], ev.Rune())
		v.insert(enc[:n])
	}
	v.scrollToCursor()
}

func (v *viewer) handlePromptKey(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		v.prompt = false
	case tcell.KeyEnter:
		v.prompt = false
		v.lastQuery = []byte(string(v.promptText))
		v.findNext()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(v.promptText) > 0 {
			v.promptText = v.promptText[:len(v.promptText)-1]
		}
	case tcell.KeyRune:
		v.promptText = append(v.promptText, ev.Rune())
	}
}

func (v *viewer) insert(data []byte) {
	if _, err := v.buf.Insert(v.cursorPos(), data); err != nil {
		v.status = err.Error()
		return
	}
	// The cursor marker has after-affinity, it moved past the insert.
	v.afterEdit()
}

func (v *viewer) deleteRange(a, b int64) {
	if _, err := v.buf.Delete(a, b); err != nil {
		v.status = err.Error()
		return
	}
	v.afterEdit()
}

func (v *viewer) afterEdit() {
	v.clearOverlays()
	v.requestHighlight()
}

func (v *viewer) save() {
	if v.path == "" {
		v.status = "no file name"
		return
	}
	if err := v.buf.Save(v.path); err != nil {
		v.status = err.Error()
		return
	}
	v.status = "saved"
	logger.Info("saved", "path", v.path, "bytes", v.buf.ByteLength())
}

func (v *viewer) findNext() {
	if len(v.lastQuery) == 0 {
		v.status = "no search pattern"
		return
	}
	off, ok := v.buf.FindNext(v.lastQuery, v.cursorPos()+1)
	if !ok {
		v.status = fmt.Sprintf("not found: %s", v.lastQuery)
		return
	}
	v.setCursor(off)
	v.status = ""
	v.scrollToCursor()
}

// prevRune returns the offset of the rune before pos.
func (v *viewer) prevRune(pos int64) int64 {
	if pos <= 0 {
		return 0
	}
	from := pos - utf8.UTFMax
	if from < 0 {
		from = 0
	}
	data := v.buf.Slice(from, pos)
	i := len(data) - 1
	for i > 0 && data[i]&0xC0 == 0x80 {
		i--
	}
	return from + int64(i)
}

// nextRune returns the offset of the rune after pos.
func (v *viewer) nextRune(pos int64) int64 {
	length := v.buf.ByteLength()
	if pos >= length {
		return length
	}
	data := v.buf.Slice(pos, pos+utf8.UTFMax)
	_, size := utf8.DecodeRune(data)
	return pos + int64(size)
}

// lineEnd returns the offset just before the newline of pos's line, or
// the buffer end on the final line.
func (v *viewer) lineEnd(pos int64) int64 {
	line, _ := v.buf.ByteToLine(pos)
	start, _ := v.buf.LineToByte(line)
	s, e, ok := v.buf.Lines(start).Next()
	if !ok {
		return pos
	}
	if e > s && v.buf.Slice(e-1, e)[0] == '\n' {
		e--
		if e > s && v.buf.Slice(e-1, e)[0] == '\r' {
			e--
		}
	}
	return e
}

func (v *viewer) moveVertically(delta int64) {
	cur := v.cursorPos()
	line, _ := v.buf.ByteToLine(cur)
	start, _ := v.buf.LineToByte(line)
	col := cur - start

	target := line + delta
	if target < 0 {
		target = 0
	}
	if max := v.buf.LineCount() - 1; target > max {
		target = max
	}
	ts, _ := v.buf.LineToByte(target)
	s, e, ok := v.buf.Lines(ts).Next()
	if !ok {
		v.setCursor(ts)
		return
	}
	width := e - s
	if width > 0 && v.buf.Slice(e-1, e)[0] == '\n' {
		width--
	}
	if col > width {
		col = width
	}
	v.setCursor(ts + col)
}

func (v *viewer) scrollToCursor() {
	_, h := v.scr.Size()
	view := int64(h - 2)
	if view < 1 {
		view = 1
	}
	line, _ := v.buf.ByteToLine(v.cursorPos())
	moved := false
	if line < v.topLine {
		v.topLine = line
		moved = true
	}
	if line >= v.topLine+view {
		v.topLine = line - view + 1
		moved = true
	}
	if moved {
		v.requestHighlight()
	}
}

// requestHighlight submits the current viewport to the background engine.
func (v *viewer) requestHighlight() {
	if v.lang == "" {
		return
	}
	_, h := v.scr.Size()
	from, _ := v.buf.LineToByte(v.topLine)
	to := from + int64(h)*256
	if max := v.buf.ByteLength(); to > max {
		to = max
	}
	v.eng.Submit(highlight.Request{
		Snapshot: v.buf.Snapshot(),
		Lang:     v.lang,
		From:     from,
		To:       to,
	})
}

// drainHighlights applies pending engine events: background results only
// ever reach the buffer here, on the main loop.
func (v *viewer) drainHighlights() {
	for {
		select {
		case ev := <-v.eng.Events():
			if ev.Version != v.buf.Version() {
				continue // stale parse, a newer request is in flight
			}
			v.clearOverlays()
			for i, sp := range ev.Spans {
				if i >= maxOverlays {
					break
				}
				end := sp.End
				if max := v.buf.ByteLength(); end > max {
					end = max
				}
				id, err := v.buf.AddMarker(sp.Start, end, markertree.KindPosition, markertree.AffinityBefore)
				if err != nil {
					continue
				}
				v.overlays[id] = sp.Kind
			}
		default:
			return
		}
	}
}

func (v *viewer) clearOverlays() {
	for id := range v.overlays {
		_ = v.buf.RemoveMarker(id)
		delete(v.overlays, id)
	}
}

// rendering

func (v *viewer) render() {
	w, h := v.scr.Size()
	if w == 0 || h == 0 {
		return
	}
	base := styleFor(v.cfg.Theme.Foreground, v.cfg.Theme.Background)
	v.scr.Fill(' ', base)

	view := h - 1
	startByte, conf := v.buf.LineToByte(v.topLine)
	approx := conf != lineindex.Exact
	if !approx {
		v.buf.CacheLines(v.topLine, int64(view))
	}

	gutter := 0
	if v.cfg.Viewer.LineNumbers != "off" {
		gutter = len(fmt.Sprintf("%d", v.buf.LineCount())) + 2
	}
	numStyle := styleFor(v.cfg.Theme.LineNumberForeground, v.cfg.Theme.Background)
	estStyle := styleFor(v.cfg.Theme.EstimateForeground, v.cfg.Theme.Background)

	it := v.buf.Lines(startByte)
	for row := 0; row < view; row++ {
		s, e, ok := it.Next()
		if !ok {
			break
		}
		if gutter > 0 {
			lineNo := v.topLine + int64(row)
			num := fmt.Sprintf("%*d ", gutter-1, lineNo+1)
			ns := numStyle
			if approx {
				num = fmt.Sprintf("~%*d ", gutter-2, lineNo+1)
				ns = estStyle
			}
			for i, r := range num {
				v.scr.SetContent(i, row, r, nil, ns)
			}
		}
		v.renderLine(row, gutter, w, s, e, base)
	}
	v.renderStatus(w, h, base)
	v.scr.ShowCursor(v.cursorScreenPos(gutter, view))
	v.scr.Show()
}

func (v *viewer) renderLine(row, gutter, w int, s, e int64, base tcell.Style) {
	text := v.buf.Slice(s, e)
	spans := v.overlaySpans(s, e)

	col := gutter
	off := s
	for len(text) > 0 && col < w {
		r, size := utf8.DecodeRune(text)
		text = text[size:]
		if r == '\n' || r == '\r' {
			off += int64(size)
			continue
		}
		style := base
		for _, sp := range spans {
			if off >= sp.start && off < sp.end {
				style = sp.style
				break
			}
		}
		if r == '\t' {
			col += v.cfg.Viewer.TabWidth - (col-gutter)%v.cfg.Viewer.TabWidth
			off += int64(size)
			continue
		}
		v.scr.SetContent(col, row, r, nil, style)
		col++
		off += int64(size)
	}
}

type overlaySpan struct {
	start, end int64
	style      tcell.Style
}

func (v *viewer) overlaySpans(a, b int64) []overlaySpan {
	var out []overlaySpan
	for _, m := range v.buf.MarkersIn(a, b) {
		kind, ok := v.overlays[m.ID]
		if !ok {
			continue
		}
		out = append(out, overlaySpan{start: m.Start, end: m.End, style: v.styleForKind(kind)})
	}
	return out
}

func (v *viewer) styleForKind(kind string) tcell.Style {
	th := v.cfg.Theme
	switch kind {
	case "keyword", "type", "function":
		return styleFor(th.OverlayForeground, th.Background)
	case "string", "number", "constant":
		return styleFor(th.EstimateForeground, th.Background)
	case "comment":
		return styleFor(th.LineNumberForeground, th.Background)
	}
	return styleFor(th.Foreground, th.Background)
}

func (v *viewer) renderStatus(w, h int, base tcell.Style) {
	st := styleFor(v.cfg.Theme.StatuslineForeground, v.cfg.Theme.StatuslineBackground)
	cur := v.cursorPos()
	line, conf := v.buf.ByteToLine(cur)
	mark := ""
	if conf != lineindex.Exact {
		mark = "~"
	}

	var text string
	if v.prompt {
		text = "find: " + string(v.promptText)
	} else {
		name := v.path
		if name == "" {
			name = "[no file]"
		}
		text = fmt.Sprintf(" %s  %s%d/%d  %s  v%d  %s",
			name, mark, line+1, v.buf.LineCount(), v.buf.LineEnding(), v.buf.Version(), v.status)
	}
	for i := 0; i < w; i++ {
		r := ' '
		if i < len([]rune(text)) {
			r = []rune(text)[i]
		}
		v.scr.SetContent(i, h-1, r, nil, st)
	}
}

func (v *viewer) cursorScreenPos(gutter, view int) (int, int) {
	cur := v.cursorPos()
	line, _ := v.buf.ByteToLine(cur)
	if line < v.topLine || line >= v.topLine+int64(view) {
		return -1, -1
	}
	start, _ := v.buf.LineToByte(line)
	col := 0
	for _, r := range string(v.buf.Slice(start, cur)) {
		if r == '\t' {
			col += v.cfg.Viewer.TabWidth - col%v.cfg.Viewer.TabWidth
			continue
		}
		col++
	}
	return gutter + col, int(line - v.topLine)
}

func styleFor(fg, bg string) tcell.Style {
	return tcell.StyleDefault.
		Foreground(tcell.GetColor(fg)).
		Background(tcell.GetColor(bg))
}
