// Package engineerr is the structured error taxonomy (§7) every request
// boundary in siftd translates its failures into: NotFound, Busy, Stale,
// ParserUnavailable, ParseDiagnostics, ProviderUnavailable, InvalidQuery,
// Storage, Cancelled, Internal.
package engineerr

import "fmt"

// Kind is one of the ten taxonomy members from §7.
type Kind string

const (
	// NotFound indicates a repository, file, or symbol is unknown.
	NotFound Kind = "not_found"
	// Busy indicates the worker pool or queue is saturated; retry with backoff.
	Busy Kind = "busy"
	// Stale indicates the requested generation exceeds the current one; wait and retry.
	Stale Kind = "stale"
	// ParserUnavailable indicates the plugin degraded to lexical mode; the
	// result is best-effort, not an outright failure.
	ParserUnavailable Kind = "parser_unavailable"
	// ParseDiagnostics is non-fatal and carried inside a successful shard,
	// never propagated as a Kind on its own.
	ParseDiagnostics Kind = "parse_diagnostics"
	// ProviderUnavailable indicates an embedding or vector store failure;
	// semantic operations degrade but lexical queries keep working.
	ProviderUnavailable Kind = "provider_unavailable"
	// InvalidQuery indicates a syntactic error in a regex/FTS query, or an
	// option out of range.
	InvalidQuery Kind = "invalid_query"
	// Storage indicates underlying store I/O or a schema mismatch; the
	// affected operation fails, the system remains up.
	Storage Kind = "storage"
	// Cancelled indicates the request was cancelled before completion.
	Cancelled Kind = "cancelled"
	// Internal indicates an invariant violation; logged and surfaced,
	// recoverable at the request boundary.
	Internal Kind = "internal"
)

// Error is the structured error every pkg/api operation returns instead of
// a bare error, carrying the taxonomy Kind plus enough context to log and
// present without re-deriving it from a message string.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "symbol_lookup"
	Message string
	Details map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match two *Error values by Kind, the way callers at a
// request boundary want to branch (engineerr.Is(err, engineerr.NotFound)),
// without caring about Op/Message/Cause equality.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error of the given kind around an existing error, keeping
// it in the Unwrap chain.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Cause: err}
}

// WithDetail attaches a key-value detail and returns the Error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// KindOf extracts the Kind from err, or Internal if err is not an *Error
// (an untranslated error reaching the request boundary is itself an
// invariant violation worth surfacing as Internal rather than hiding).
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return Internal
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the caller should retry the request after
// backoff — true for Busy and Stale, the two kinds §7 explicitly calls
// retry-worthy.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Busy, Stale:
		return true
	default:
		return false
	}
}
