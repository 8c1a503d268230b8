// Package server implements the Rill language server.
package server

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/rill/compiler"
	"github.com/chazu/rill/stdlib"
	"github.com/chazu/rill/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "rill-lsp"

var log = commonlog.GetLogger("rill.server")

// LanguageServer compiles open documents and reports compile faults as
// diagnostics. It also offers completion, hover and go-to-definition from
// the last successful compile of each document.
type LanguageServer struct {
	worker  *Worker
	natives *vm.Natives

	mu   sync.Mutex
	docs map[protocol.DocumentUri]*document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

type document struct {
	version  protocol.Integer
	text     string
	analysis *analysis // nil until the document compiles once
}

// analysis is what a successful compile tells us about a document.
type analysis struct {
	functions   map[string]uint8 // name -> argc
	globals     []string
	definitions map[string]compiler.Position
}

// NewLanguageServer creates a language server resolving natives against
// the standard library. Output from print is discarded; documents are
// compiled, never run.
func NewLanguageServer(version string) *LanguageServer {
	natives := vm.NewNatives()
	stdlib.Register(natives, io.Discard)

	s := &LanguageServer{
		worker:  NewWorker(),
		natives: natives,
		docs:    make(map[protocol.DocumentUri]*document),
		version: version,
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run serves LSP on stdio. Blocks until the client disconnects.
func (s *LanguageServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LanguageServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "Rill LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LanguageServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LanguageServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LanguageServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LanguageServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Version, params.TextDocument.Text)
	return nil
}

func (s *LanguageServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With full sync the last change carries the whole text.
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
		s.update(ctx, params.TextDocument.URI, params.TextDocument.Version, whole.Text)
	}
	return nil
}

func (s *LanguageServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update recompiles a document and publishes its diagnostics. A failed
// compile keeps the previous analysis so completion still has names to
// offer while the user is typing. Handlers may finish out of order, so a
// result older than the stored version is dropped, and diagnostics are
// published under the lock to keep them in version order.
func (s *LanguageServer) update(ctx *glsp.Context, uri protocol.DocumentUri, version protocol.Integer, text string) {
	a, err := s.analyze(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		doc = &document{}
		s.docs[uri] = doc
	} else if version < doc.version {
		log.Debugf("dropping stale analysis of %s: version %d < %d", uri, version, doc.version)
		return
	}
	doc.version = version
	doc.text = text
	if err == nil {
		doc.analysis = a
	}

	published := protocol.UInteger(0)
	if version > 0 {
		published = protocol.UInteger(version)
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     &published,
		Diagnostics: diagnostics(text, err),
	})
}

// analyze compiles text with a fresh compiler on the worker goroutine.
func (s *LanguageServer) analyze(text string) (*analysis, error) {
	value, err := s.worker.Do(func() (interface{}, error) {
		c := compiler.New(s.natives)
		if err := c.Compile(0, strings.NewReader(text)); err != nil {
			return nil, err
		}
		return newAnalysis(c), nil
	})
	if err != nil {
		log.Debugf("analysis failed: %s", err)
		return nil, err
	}
	return value.(*analysis), nil
}

func newAnalysis(c *compiler.Compiler) *analysis {
	a := &analysis{
		functions:   make(map[string]uint8),
		globals:     append([]string(nil), c.Globals()...),
		definitions: make(map[string]compiler.Position),
	}
	code := c.Chunk().Code()
	for name, addr := range c.Functions() {
		a.functions[name] = code[addr]
	}
	for _, name := range a.globals {
		if pos, ok := c.Definition(name); ok {
			a.definitions[name] = pos
		}
	}
	for name := range a.functions {
		if pos, ok := c.Definition(name); ok {
			a.definitions[name] = pos
		}
	}
	return a
}

// snapshot returns a document's text and last analysis.
func (s *LanguageServer) snapshot(uri protocol.DocumentUri) (string, *analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return "", nil, false
	}
	return doc.text, doc.analysis, true
}

// --- Diagnostics ---

// diagnostics converts a compile result into the list to publish. A nil
// error clears the document's diagnostics.
func diagnostics(text string, err error) []protocol.Diagnostic {
	if err == nil {
		return []protocol.Diagnostic{}
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	d := protocol.Diagnostic{
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}
	if cerr, ok := compiler.AsError(err); ok {
		d.Range = rangeOf(text, cerr.Pos.Start, cerr.Pos.End)
	}
	return []protocol.Diagnostic{d}
}

// --- Language features ---

func (s *LanguageServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, a, ok := s.snapshot(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.complete(a, extractPrefix(text, params.Position)), nil
}

func (s *LanguageServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, a, ok := s.snapshot(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return s.hover(a, extractWord(text, params.Position)), nil
}

func (s *LanguageServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, a, ok := s.snapshot(uri)
	if !ok || a == nil {
		return nil, nil
	}
	pos, ok := a.definitions[extractWord(text, params.Position)]
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{URI: uri, Range: rangeOf(text, pos.Start, pos.End)}}, nil
}

// complete lists keywords, natives, functions and globals starting with
// prefix. a may be nil.
func (s *LanguageServer) complete(a *analysis, prefix string) []protocol.CompletionItem {
	items := []protocol.CompletionItem{}
	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if !strings.HasPrefix(label, prefix) {
			return
		}
		item := protocol.CompletionItem{Label: label, Kind: &kind}
		if detail != "" {
			item.Detail = &detail
		}
		items = append(items, item)
	}

	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "")
	}
	for _, name := range s.natives.Names() {
		idx, _ := s.natives.Lookup(name)
		nat, _ := s.natives.At(idx)
		add(name, protocol.CompletionItemKindFunction, fmt.Sprintf("native, %s", arguments(nat.Argc)))
	}
	if a != nil {
		names := make([]string, 0, len(a.functions))
		for name := range a.functions {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			add(name, protocol.CompletionItemKindFunction, fmt.Sprintf("fn, %s", arguments(a.functions[name])))
		}
		for _, name := range a.globals {
			if _, shadowed := a.functions[name]; !shadowed {
				add(name, protocol.CompletionItemKindVariable, "global")
			}
		}
	}
	return items
}

// hover describes word, resolving it the way the compiler resolves
// identifiers: functions, then globals, then natives.
func (s *LanguageServer) hover(a *analysis, word string) *protocol.Hover {
	if word == "" {
		return nil
	}
	var value string
	if a != nil {
		if argc, ok := a.functions[word]; ok {
			value = fmt.Sprintf("**%s**: function, %s", word, arguments(argc))
		} else {
			for _, g := range a.globals {
				if g == word {
					value = fmt.Sprintf("**%s**: global", word)
					break
				}
			}
		}
	}
	if value == "" {
		if idx, ok := s.natives.Lookup(word); ok {
			nat, _ := s.natives.At(idx)
			value = fmt.Sprintf("**%s**: native function, %s", word, arguments(nat.Argc))
		}
	}
	if value == "" {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

func arguments(n uint8) string {
	if n == 1 {
		return "1 argument"
	}
	return fmt.Sprintf("%d arguments", n)
}

// --- Position conversion ---

// positionAt converts a byte offset into an LSP position. Characters are
// counted in UTF-16 code units.
func positionAt(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	line := strings.Count(text[:offset], "\n")
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	return protocol.Position{
		Line:      protocol.UInteger(line),
		Character: protocol.UInteger(utf16Len(text[start:offset])),
	}
}

func rangeOf(text string, start, end int) protocol.Range {
	return protocol.Range{Start: positionAt(text, start), End: positionAt(text, end)}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// byteColumn converts a UTF-16 character offset within line to a byte
// offset, clamped to the line length.
func byteColumn(line string, character protocol.UInteger) int {
	units := 0
	for i, r := range line {
		if units >= int(character) {
			return i
		}
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
	}
	return len(line)
}

// --- Text extraction helpers ---

func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := strings.TrimSuffix(lines[pos.Line], "\r")
	return line, byteColumn(line, pos.Character), true
}

func isIdentifierRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// extractPrefix returns the identifier fragment before the cursor.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isIdentifierRune(r) {
			break
		}
		start -= size
	}
	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isIdentifierRune(r) {
			break
		}
		start -= size
	}
	end := col
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isIdentifierRune(r) {
			break
		}
		end += size
	}
	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
