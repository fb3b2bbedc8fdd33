// Package lsp serves a session over the Language Server Protocol.
package lsp

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"autocomplete/internal/core/session"
	"autocomplete/internal/shared/util"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "autocomplete"

// Edits arriving faster than prewarmRate only update the overlay. The last
// edit of a burst is parsed trailingRefresh after it lands.
const (
	prewarmRate     = 4
	prewarmBurst    = 1
	prewarmTTL      = 5 * time.Minute
	trailingRefresh = time.Second / prewarmRate
)

type document struct {
	path    string
	text    []byte
	version protocol.Integer
}

type Server struct {
	session *session.Session
	handler protocol.Handler
	server  *server.Server
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	throttle *util.LimiterRegistry
	wg       sync.WaitGroup

	mu      sync.Mutex
	docs    map[protocol.DocumentUri]*document
	pending map[protocol.DocumentUri]*time.Timer
	closed  bool
}

func NewServer(sess *session.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		session:  sess,
		logger:   logger.With("component", "lsp"),
		ctx:      ctx,
		cancel:   cancel,
		throttle: util.NewLimiterRegistry(prewarmRate, prewarmBurst, prewarmTTL),
		docs:     make(map[protocol.DocumentUri]*document),
		pending:  make(map[protocol.DocumentUri]*time.Timer),
	}

	s.handler = protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		SetTrace:                        s.setTrace,
		TextDocumentDidOpen:             s.textDocumentDidOpen,
		TextDocumentDidChange:           s.textDocumentDidChange,
		TextDocumentDidSave:             s.textDocumentDidSave,
		TextDocumentDidClose:            s.textDocumentDidClose,
		TextDocumentCompletion:          s.textDocumentCompletion,
		WorkspaceDidChangeConfiguration: s.workspaceDidChangeConfiguration,
	}
	s.server = server.NewServer(&s.handler, lsName, false)
	return s
}

func (s *Server) RunStdio() error {
	return s.server.RunStdio()
}

// Close stops background parsing and waits for it to finish.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	for uri, t := range s.pending {
		t.Stop()
		delete(s.pending, uri)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.throttle.Stop()
}

func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindIncremental),
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(false)},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{".", ">", ":"},
	}

	version := s.session.Version()
	if params.ClientInfo != nil {
		s.logger.Info("client connected", "client", params.ClientInfo.Name)
	}
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	s.Close()
	return nil
}

func (s *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		s.logger.Warn("ignoring document", "uri", params.TextDocument.URI, "error", err)
		return nil
	}
	text := []byte(params.TextDocument.Text)

	s.mu.Lock()
	s.docs[params.TextDocument.URI] = &document{path: path, text: text, version: params.TextDocument.Version}
	s.mu.Unlock()

	s.session.SetOverlay(path, text)
	s.refresh(ctx, params.TextDocument.URI, path)
	return nil
}

func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			doc.text = []byte(c.Text)
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				doc.text = []byte(c.Text)
				continue
			}
			doc.text = applyEdit(doc.text, *c.Range, c.Text)
		}
	}
	doc.version = params.TextDocument.Version
	path, text := doc.path, append([]byte(nil), doc.text...)
	s.mu.Unlock()

	s.session.SetOverlay(path, text)
	if s.throttle.Get(string(uri)).Allow(1) {
		s.refresh(ctx, uri, path)
	} else {
		s.refreshLater(ctx, uri, path)
	}
	return nil
}

func (s *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI
	path, err := uriToPath(uri)
	if err != nil {
		return nil
	}
	// The saved bytes are on disk now; the next edit installs a new overlay.
	s.session.ClearOverlay(path)
	s.publish(ctx, uri, path)
	return nil
}

func (s *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	path, err := uriToPath(uri)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	delete(s.docs, uri)
	if t := s.pending[uri]; t != nil {
		t.Stop()
		delete(s.pending, uri)
	}
	s.mu.Unlock()
	s.throttle.Forget(string(uri))

	s.session.ClearOverlay(path)
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	path, err := uriToPath(uri)
	if err != nil {
		return nil, nil
	}

	text, ok := s.text(uri)
	if !ok {
		text, err = os.ReadFile(path)
		if err != nil {
			text = nil
		}
	}
	line, column := toEngine(text, params.Position)

	candidates := s.session.Complete(s.ctx, path, line, column)
	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        completionItems(candidates),
	}, nil
}

type settings struct {
	Arguments *[]string `json:"arguments"`
}

func (s *Server) workspaceDidChangeConfiguration(ctx *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	raw, err := json.Marshal(params.Settings)
	if err != nil {
		return nil
	}
	var wrapped struct {
		Autocomplete *settings `json:"autocomplete"`
	}
	var cfg settings
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Autocomplete != nil {
		cfg = *wrapped.Autocomplete
	} else if err := json.Unmarshal(raw, &cfg); err != nil {
		s.logger.Warn("ignoring configuration", "error", err)
		return nil
	}
	if cfg.Arguments == nil {
		return nil
	}

	s.session.SetArguments(*cfg.Arguments)
	s.logger.Info("arguments replaced", "count", len(*cfg.Arguments))
	for uri, path := range s.openDocuments() {
		s.refresh(ctx, uri, path)
	}
	return nil
}

// refresh parses path in the background and publishes its diagnostics.
// It supersedes any trailing refresh scheduled for uri.
func (s *Server) refresh(ctx *glsp.Context, uri protocol.DocumentUri, path string) {
	s.mu.Lock()
	if _, open := s.docs[uri]; s.closed || !open {
		s.mu.Unlock()
		return
	}
	if t := s.pending[uri]; t != nil {
		t.Stop()
		delete(s.pending, uri)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.session.Prewarm(s.ctx, path); err != nil {
			return
		}
		s.publish(ctx, uri, path)
	}()
}

// refreshLater (re)arms the trailing refresh of uri.
func (s *Server) refreshLater(ctx *glsp.Context, uri protocol.DocumentUri, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t := s.pending[uri]; t != nil {
		t.Stop()
	}
	s.pending[uri] = time.AfterFunc(trailingRefresh, func() {
		s.refresh(ctx, uri, path)
	})
}

func (s *Server) publish(ctx *glsp.Context, uri protocol.DocumentUri, path string) {
	diags := s.session.Diagnose(s.ctx, path)
	text, ok := s.text(uri)
	if !ok {
		text, _ = os.ReadFile(path)
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: toProtocolDiagnostics(path, text, diags),
	})
}

func (s *Server) text(uri protocol.DocumentUri) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil, false
	}
	return doc.text, true
}

func (s *Server) openDocuments() map[protocol.DocumentUri]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[protocol.DocumentUri]string, len(s.docs))
	for uri, doc := range s.docs {
		out[uri] = doc.path
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
