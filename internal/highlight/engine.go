// Package highlight runs tree-sitter parsing off the main editing loop.
// The app submits an immutable buffer snapshot; the engine parses it on a
// background goroutine and emits byte-offset spans on its event channel.
// The main loop drains the channel and registers the spans as overlay
// markers, so the buffer itself is never touched from this side.
package highlight

import (
	"context"
	"path/filepath"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/yaml"

	"github.com/kobzarvs/bigtext/internal/chunkstore"
	"github.com/kobzarvs/bigtext/internal/logger"
)

// parseCap bounds how much of a huge buffer is handed to the parser.
// Highlighting past it degrades to plain text.
const parseCap = 4 << 20

// Span is one highlighted byte range of the parsed snapshot.
type Span struct {
	Start int64
	End   int64
	Kind  string
}

// Event carries the spans produced for one snapshot version.
type Event struct {
	Version chunkstore.VersionID
	Spans   []Span
}

// Request asks for highlights of [From, To) in a snapshot.
type Request struct {
	Snapshot *chunkstore.Snapshot
	Lang     string
	From, To int64
}

type Engine struct {
	parsers map[string]*sitter.Parser
	queries map[string]*sitter.Query
	reqCh   chan Request
	events  chan Event
	stopCh  chan struct{}
	mu      sync.RWMutex
}

func New() *Engine {
	return &Engine{
		parsers: make(map[string]*sitter.Parser),
		queries: make(map[string]*sitter.Query),
		reqCh:   make(chan Request, 8),
		events:  make(chan Event, 16),
		stopCh:  make(chan struct{}),
	}
}

// DetectLanguage maps a file name to a supported language, or "".
func DetectLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	case ".sh", ".bash":
		return "bash"
	}
	return ""
}

func (e *Engine) Start() error {
	languages := []struct {
		name  string
		lang  *sitter.Language
		query string
	}{
		{"go", golang.GetLanguage(), goHighlightQuery},
		{"toml", toml.GetLanguage(), tomlHighlightQuery},
		{"yaml", yaml.GetLanguage(), yamlHighlightQuery},
		{"bash", bash.GetLanguage(), bashHighlightQuery},
	}
	for _, l := range languages {
		p := sitter.NewParser()
		p.SetLanguage(l.lang)
		e.parsers[l.name] = p

		query, err := sitter.NewQuery([]byte(l.query), l.lang)
		if err != nil {
			logger.Warn("highlight query failed to compile", "lang", l.name, "err", err)
			continue
		}
		e.queries[l.name] = query
	}

	go e.loop()
	return nil
}

func (e *Engine) Stop() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
}

func (e *Engine) Events() <-chan Event {
	return e.events
}

// Submit enqueues a request without blocking; a full queue drops the
// request, the next viewport change resubmits anyway.
func (e *Engine) Submit(req Request) {
	select {
	case e.reqCh <- req:
	default:
	}
}

func (e *Engine) loop() {
	for {
		select {
		case <-e.stopCh:
			return
		case req := <-e.reqCh:
			spans, ok := e.highlight(req)
			if !ok {
				continue
			}
			select {
			case e.events <- Event{Version: req.Snapshot.Version(), Spans: spans}:
			case <-e.stopCh:
				return
			}
		}
	}
}

func (e *Engine) highlight(req Request) ([]Span, bool) {
	e.mu.RLock()
	parser := e.parsers[req.Lang]
	query := e.queries[req.Lang]
	e.mu.RUnlock()
	if parser == nil || query == nil {
		return nil, false
	}

	length := req.Snapshot.ByteLength()
	if length > parseCap {
		length = parseCap
	}
	if req.From >= length {
		return nil, false
	}
	source := req.Snapshot.Slice(0, length)

	e.mu.Lock()
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	e.mu.Unlock()
	if err != nil || tree == nil {
		return nil, false
	}
	defer tree.Close()

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, tree.RootNode())

	var spans []Span
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		match = cursor.FilterPredicates(match, source)
		if match == nil {
			continue
		}
		for _, capture := range match.Captures {
			start := int64(capture.Node.StartByte())
			end := int64(capture.Node.EndByte())
			if end <= req.From || start >= req.To {
				continue
			}
			spans = append(spans, Span{
				Start: start,
				End:   end,
				Kind:  query.CaptureNameForId(capture.Index),
			})
		}
	}
	return spans, true
}

const goHighlightQuery = `
((comment) @comment)
((interpreted_string_literal) @string)
((raw_string_literal) @string)
((rune_literal) @string)
((int_literal) @number)
((float_literal) @number)
[
  "break" "case" "chan" "const" "continue" "default" "defer" "else"
  "fallthrough" "for" "func" "go" "goto" "if" "import" "interface"
  "map" "package" "range" "return" "select" "struct" "switch"
  "type" "var"
] @keyword
((nil) @constant)
((true) @constant)
((false) @constant)
((type_identifier) @type)
((function_declaration name: (identifier) @function))
((method_declaration name: (field_identifier) @function))
((call_expression function: (identifier) @function))
`

const tomlHighlightQuery = `
((comment) @comment)
((string) @string)
((integer) @number)
((float) @number)
((boolean) @constant)
((bare_key) @field)
((quoted_key) @field)
((table (bare_key) @type))
`

const yamlHighlightQuery = `
((comment) @comment)
((string_scalar) @string)
((double_quote_scalar) @string)
((single_quote_scalar) @string)
((integer_scalar) @number)
((float_scalar) @number)
((null_scalar) @constant)
((boolean_scalar) @constant)
((block_mapping_pair key: (_) @field))
`

const bashHighlightQuery = `
((comment) @comment)
((string) @string)
((raw_string) @string)
((number) @number)
((variable_name) @variable)
((command_name) @function)
[
  "if" "then" "else" "elif" "fi" "case" "esac" "for" "while" "until"
  "do" "done" "in" "function" "return" "exit" "break" "continue"
] @keyword
`
