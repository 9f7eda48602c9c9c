// Package dberrors defines the typed error taxonomy shared by every layer of
// the adapter: pool, executor, transaction manager, schema introspector,
// registry/dispatcher and the auth stack all classify failures into one of
// the Kinds below rather than returning bare errors.
package dberrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way §7 of the design groups them, not by
// the specific message.
type Kind string

const (
	KindConnection  Kind = "connection"
	KindQuery       Kind = "query"
	KindTransaction Kind = "transaction"
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not-found"
	KindAuth        Kind = "auth"
	KindDiscovery   Kind = "discovery"
)

// Error is the concrete type every boundary in this module returns. It
// wraps the underlying driver/library error (if any) so errors.Is/As still
// reach it, while giving callers a stable Kind to switch on.
type Error struct {
	Kind    Kind
	Message string
	// SQL is attached for query errors so operators can see what ran;
	// parameter values are never attached here.
	SQL string
	err error
}

func (e *Error) Error() string {
	if e.SQL != "" {
		return fmt.Sprintf("%s: %s (sql: %s)", e.Kind, e.Message, e.SQL)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Option configures an Error at construction time.
type Option func(*Error)

// WithSQL attaches the executed SQL (never parameter values) as context.
func WithSQL(sql string) Option {
	return func(e *Error) { e.SQL = sql }
}

// WithCause records the underlying error for errors.Is/As and logging.
func WithCause(err error) Option {
	return func(e *Error) { e.err = err }
}

// New builds a classified Error.
func New(kind Kind, message string, opts ...Option) *Error {
	e := &Error{Kind: kind, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wrap classifies an existing error under kind, preserving it as the cause.
func Wrap(kind Kind, err error, opts ...Option) *Error {
	e := &Error{Kind: kind, Message: err.Error(), err: err}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// ErrNotConnected is the fixed message every operation on a shut-down pool
// or adapter must return (§8, testable property 1).
var ErrNotConnected = New(KindConnection, "Not connected")
