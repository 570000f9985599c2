// Package semerr defines the engine's error taxonomy (spec §7). Each typed
// error carries one of these kinds and wraps an underlying cause so callers
// can still unwrap to the original failure. Not every error crossing a
// package boundary is typed: some layers return plain wrapped errors.
package semerr

import (
	"errors"
	"fmt"
)

// Kind identifies which taxonomy bucket an error belongs to.
type Kind string

const (
	KindConfig   Kind = "config"
	KindAnalyzer Kind = "analyzer"
	KindCache    Kind = "cache"
	KindWatch    Kind = "watch"
	KindQuery    Kind = "query"
	KindState    Kind = "state"
	KindProtocol Kind = "protocol"
)

// Error is a taxonomy-tagged error with an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Cause: cause}
}

// Config wraps a configuration-layer failure (malformed workspace layout,
// unreadable guardrails file, invalid jsonc).
func Config(msg string, cause error) *Error { return newErr(KindConfig, msg, cause) }

// Analyzer wraps a failure raised by a language binding during discovery or
// analysis of a single file.
func Analyzer(msg string, cause error) *Error { return newErr(KindAnalyzer, msg, cause) }

// Cache wraps a file-cache read/write/lock failure.
func Cache(msg string, cause error) *Error { return newErr(KindCache, msg, cause) }

// Watch wraps a filesystem-watch failure (add-path error, overflow that
// could not be recovered by a rescan).
func Watch(msg string, cause error) *Error { return newErr(KindWatch, msg, cause) }

// Query wraps a rejected or failed SQL query (non-read-only statement,
// syntax error, engine failure).
func Query(msg string, cause error) *Error { return newErr(KindQuery, msg, cause) }

// State wraps a lifecycle-state violation (method called outside its
// allowed state).
func State(msg string, cause error) *Error { return newErr(KindState, msg, cause) }

// Protocol wraps a malformed JSON-RPC request (bad JSON, missing method,
// invalid params shape).
func Protocol(msg string, cause error) *Error { return newErr(KindProtocol, msg, cause) }

// Is reports whether err is a *Error of the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf extracts the Kind of err, if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
