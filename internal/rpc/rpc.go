// Package rpc implements the line-framed JSON-RPC 2.0 lifecycle facade
// over stdio: a five-state lifecycle enum guarding method dispatch,
// directly adapted from this codebase's MCP stdio server read/dispatch
// loop, generalized from a fixed two-state initialized/shutdown pair to
// an explicit State enum.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wenkaifan0720/code-context-sub001/internal/semerr"
)

// State is one stage of the lifecycle state machine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateShuttingDown  State = "shutting_down"
	StateTerminated    State = "terminated"
)

const (
	codeParseError     = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// request is one line of the wire protocol.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// response is one line written back; Error and Result are mutually
// exclusive per the JSON-RPC 2.0 spec.
type response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handlers supplies the domain behavior behind each method; Server only
// owns protocol framing and lifecycle gating.
type Handlers struct {
	// Initialize sets up Binding/Registry/Indexer/Store for rootPath and
	// languageID. On error the Server falls back to Uninitialized.
	Initialize func(ctx context.Context, rootPath, languageID string) (InitializeResult, error)
	// SQL runs a read-only query. Only called while Ready.
	SQL func(ctx context.Context, query string, parameters []any, format string) (SQLResult, error)
	// Status reports the current lifecycle snapshot. Called in any state.
	Status func() StatusResult
	// DidChangeFile forwards path to the Watcher's Refresh. Only called while Ready.
	DidChangeFile func(path string)
	// LoadDependencies loads external dependency indexes. Only called while Ready.
	LoadDependencies func(ctx context.Context, progress func(string)) error
	// Shutdown releases watcher, store, and cache handles.
	Shutdown func()
}

// InitializeResult is the result.* payload for a successful initialize.
type InitializeResult struct {
	ProjectName string `json:"project_name"`
	FileCount   int    `json:"file_count"`
	SymbolCount int    `json:"symbol_count"`
}

// SQLResult is the result.* payload for a successful sql call.
type SQLResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text,omitempty"`
	JSON    any    `json:"json,omitempty"`
}

// StatusResult is the result.* payload for status.
type StatusResult struct {
	Initialized bool   `json:"initialized"`
	LanguageID  string `json:"language_id,omitempty"`
	FileCount   int    `json:"file_count,omitempty"`
	SymbolCount int    `json:"symbol_count,omitempty"`
}

// Server is the JSON-RPC lifecycle facade: one goroutine reads line-framed
// requests from r and writes line-framed responses to w, guarded by the
// state machine and a single write mutex (the same single-writer-mutex
// shape used elsewhere in this codebase's stdio protocol servers).
type Server struct {
	reader   *bufio.Reader
	writer   io.Writer
	writeMu  sync.Mutex
	handlers Handlers

	mu    sync.Mutex
	state State

	sessionID string
}

// NewServer wires handlers to a Server reading requests from r and
// writing responses to w.
func NewServer(r io.Reader, w io.Writer, handlers Handlers) *Server {
	return &Server{
		reader:    bufio.NewReader(r),
		writer:    w,
		handlers:  handlers,
		state:     StateUninitialized,
		sessionID: uuid.NewString(),
	}
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// Serve reads and dispatches requests until EOF, ctx is done, or the
// client calls shutdown and the lifecycle reaches Terminated.
func (s *Server) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return semerr.Protocol("read request line", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.writeResponse(response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error: " + err.Error()}})
			continue
		}

		resp := s.dispatch(ctx, req)
		if req.ID == nil {
			continue // notification: no response written
		}
		if err := s.writeResponse(resp); err != nil {
			return err
		}

		if s.State() == StateTerminated {
			return nil
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(ctx, req)
	case "sql":
		return s.handleSQL(ctx, req)
	case "status":
		return s.handleStatus(req)
	case "file/didChange":
		return s.handleDidChangeFile(req)
	case "loadDependencies":
		return s.handleLoadDependencies(ctx, req)
	case "shutdown":
		return s.handleShutdown(req)
	default:
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}}
	}
}

type initializeParams struct {
	RootPath   string `json:"root_path"`
	LanguageID string `json:"language_id"`
}

func (s *Server) handleInitialize(ctx context.Context, req request) response {
	if s.State() != StateUninitialized {
		return errorResult(req.ID, "already initialized")
	}
	if err := validateParams("initialize", req.Params); err != nil {
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}}
	}
	var params initializeParams
	if err := unmarshalStrict(req.Params, &params); err != nil {
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}}
	}

	s.setState(StateInitializing)
	result, err := s.handlers.Initialize(ctx, params.RootPath, params.LanguageID)
	if err != nil {
		s.setState(StateUninitialized)
		return successResult(req.ID, map[string]any{"success": false, "message": err.Error()})
	}
	s.setState(StateReady)
	return successResult(req.ID, map[string]any{
		"success":      true,
		"project_name": result.ProjectName,
		"file_count":   result.FileCount,
		"symbol_count": result.SymbolCount,
	})
}

type sqlParams struct {
	Query      string `json:"query"`
	Parameters []any  `json:"parameters"`
	Format     string `json:"format"`
}

func (s *Server) handleSQL(ctx context.Context, req request) response {
	if s.State() != StateReady {
		return notInitializedResult(req.ID)
	}
	if err := validateParams("sql", req.Params); err != nil {
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}}
	}
	var params sqlParams
	if err := unmarshalStrict(req.Params, &params); err != nil {
		return response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalidParams, Message: "invalid params: " + err.Error()}}
	}
	if params.Format == "" {
		params.Format = "text"
	}
	result, err := s.handlers.SQL(ctx, params.Query, params.Parameters, params.Format)
	if err != nil {
		return successResult(req.ID, map[string]any{"success": false, "message": err.Error()})
	}
	out := map[string]any{"success": true}
	if result.Text != "" {
		out["text"] = result.Text
	}
	if result.JSON != nil {
		out["json"] = result.JSON
	}
	return successResult(req.ID, out)
}

func (s *Server) handleStatus(req request) response {
	st := s.handlers.Status()
	return successResult(req.ID, map[string]any{
		"initialized":  st.Initialized,
		"language_id":  st.LanguageID,
		"file_count":   st.FileCount,
		"symbol_count": st.SymbolCount,
	})
}

type didChangeFileParams struct {
	Path string `json:"path"`
}

func (s *Server) handleDidChangeFile(req request) response {
	if s.State() != StateReady {
		return response{} // notification outside Ready is silently dropped
	}
	var params didChangeFileParams
	if err := unmarshalStrict(req.Params, &params); err != nil {
		return response{}
	}
	s.handlers.DidChangeFile(params.Path)
	return response{}
}

func (s *Server) handleLoadDependencies(ctx context.Context, req request) response {
	if s.State() != StateReady {
		return notInitializedResult(req.ID)
	}
	if err := s.handlers.LoadDependencies(ctx, nil); err != nil {
		return successResult(req.ID, map[string]any{"success": false, "message": err.Error()})
	}
	return successResult(req.ID, map[string]any{"success": true})
}

func (s *Server) handleShutdown(req request) response {
	if s.State() != StateReady {
		return notInitializedResult(req.ID)
	}
	s.setState(StateShuttingDown)
	s.handlers.Shutdown()
	s.setState(StateTerminated)
	return successResult(req.ID, map[string]any{"success": true})
}

func (s *Server) writeResponse(resp response) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	data, err := json.Marshal(resp)
	if err != nil {
		return semerr.Protocol("encode response", err)
	}
	if _, err := fmt.Fprintf(s.writer, "%s\n", data); err != nil {
		return semerr.Protocol("write response", err)
	}
	return nil
}

func successResult(id any, result any) response {
	return response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResult(id any, message string) response {
	return successResult(id, map[string]any{"success": false, "message": message})
}

// notInitializedResult is S6's exact contract: a method-level failure, not
// a protocol error, when a Ready-only method is called outside Ready.
func notInitializedResult(id any) response {
	return successResult(id, map[string]any{"success": false, "error": "not initialized"})
}

func unmarshalStrict(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	return dec.Decode(v)
}
