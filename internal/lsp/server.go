package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"twig-cs-formatter/internal/pipeline"

	"github.com/rs/zerolog/log"
)

// FormatCommand is the command id that formats the active document.
const FormatCommand = "twig-cs-formatter.formatDocument"

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

type document struct {
	text       string
	languageID string
	version    int
}

// Server handles stdio JSON-RPC for the formatter.
type Server struct {
	in       *bufio.Reader
	out      *bufio.Writer
	sendMu   sync.Mutex
	provider *pipeline.Provider

	mu                sync.Mutex
	docs              map[string]*document
	lastTouched       string
	workspaceRoot     string
	shutdownRequested bool
	nextID            int
}

// NewServer constructs a server formatting documents with formatter.
func NewServer(in io.Reader, out io.Writer, formatter pipeline.DocumentFormatter) *Server {
	s := &Server{
		in:   bufio.NewReader(in),
		out:  bufio.NewWriter(out),
		docs: make(map[string]*document),
	}
	s.provider = pipeline.NewProvider(formatter, s)
	return s
}

// Run serves requests until the client exits or the input ends.
func (s *Server) Run(ctx context.Context) error {
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Warn().Err(err).Msg("Failed to parse message")
			continue
		}
		// Responses to our own requests carry no method.
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(ctx, &msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		s.mu.Lock()
		s.shutdownRequested = true
		s.mu.Unlock()
		return s.sendResponse(msg.ID, nil)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/formatting":
		return s.handleFormatting(ctx, msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(ctx, msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := workspaceRoot(params)
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()

	log.Info().Str("root", root).Msg("Language server initialized")

	return s.sendResponse(msg.ID, initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync:           textDocumentSyncOptions{OpenClose: true, Change: 2},
			DocumentFormattingProvider: true,
			ExecuteCommandProvider:     executeCommandOptions{Commands: []string{FormatCommand}},
		},
		ServerInfo: serverInfo{Name: "twig-cs-formatter"},
	})
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed didOpen notification")
		return nil
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	s.docs[uri] = &document{
		text:       params.TextDocument.Text,
		languageID: params.TextDocument.LanguageID,
		version:    params.TextDocument.Version,
	}
	s.lastTouched = uri
	s.mu.Unlock()
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed didChange notification")
		return nil
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil
	}
	doc.text = applyChanges(doc.text, params.ContentChanges)
	doc.version = params.TextDocument.Version
	s.lastTouched = uri
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		log.Warn().Err(err).Msg("Ignoring malformed didClose notification")
		return nil
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.docs, uri)
	if s.lastTouched == uri {
		s.lastTouched = ""
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) handleFormatting(ctx context.Context, msg *rpcMessage) error {
	var params documentFormattingParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return s.sendResponse(msg.ID, []pipeline.TextEdit{})
	}
	return s.sendResponse(msg.ID, s.provider.Edits(ctx, doc))
}

func (s *Server) handleExecuteCommand(ctx context.Context, msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	if params.Command != FormatCommand {
		return s.sendError(msg.ID, codeInvalidParams, "unknown command "+params.Command)
	}

	uri := ""
	if len(params.Arguments) > 0 {
		_ = json.Unmarshal(params.Arguments[0], &uri)
	}
	if uri == "" {
		s.mu.Lock()
		uri = s.lastTouched
		s.mu.Unlock()
	}

	doc, ok := s.document(uri)
	if !ok || doc.LanguageID != pipeline.LanguageID {
		return s.sendResponse(msg.ID, nil)
	}

	edits := s.provider.Edits(ctx, doc)
	if len(edits) > 0 {
		if err := s.sendRequest("workspace/applyEdit", applyWorkspaceEditParams{
			Label: "Format Twig",
			Edit:  workspaceEdit{Changes: map[string][]pipeline.TextEdit{uri: edits}},
		}); err != nil {
			return err
		}
	}
	return s.sendResponse(msg.ID, nil)
}

// document snapshots an open document, falling back to the file on disk.
func (s *Server) document(uri string) (pipeline.Document, bool) {
	s.mu.Lock()
	root := s.workspaceRoot
	doc, open := s.docs[uri]
	var d pipeline.Document
	if open {
		d = pipeline.Document{Text: doc.text, LanguageID: doc.languageID}
	}
	s.mu.Unlock()

	path, onDisk := filePath(uri)
	if !open {
		if !onDisk {
			return pipeline.Document{}, false
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("uri", uri).Msg("Document not available")
			return pipeline.Document{}, false
		}
		d = pipeline.Document{Text: string(data), LanguageID: pipeline.LanguageID}
	}
	if isUntitled(uri) {
		log.Debug().Str("uri", uri).Str("root", root).Msg("Formatting untitled buffer with workspace config")
	}
	d.Path = path
	d.WorkspaceRoot = root
	return d, true
}

// NotifyError implements pipeline.Notifier via window/showMessage.
func (s *Server) NotifyError(message string) {
	if err := s.sendNotification("window/showMessage", showMessageParams{
		Type:    messageTypeError,
		Message: message,
	}); err != nil {
		log.Error().Err(err).Msg("Failed to show message")
	}
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   rpcError{Code: code, Message: message},
	})
}

func (s *Server) sendNotification(method string, params any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func (s *Server) sendRequest(method string, params any) error {
	s.mu.Lock()
	s.nextID++
	id := json.RawMessage(strconv.Itoa(s.nextID))
	s.mu.Unlock()
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}
