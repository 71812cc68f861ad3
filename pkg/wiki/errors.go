package wiki

import (
	"errors"
	"fmt"

	"github.com/inkstone-dev/inkstone/pkg/blob"
	"github.com/inkstone-dev/inkstone/pkg/retry"
)

// Code is the closed error taxonomy for wiki operations. Store SDK errors
// are classified exactly once at the store-access boundary; everything
// upstream matches on the code only.
type Code string

const (
	// CodeNotFound: the document or attachment does not exist.
	CodeNotFound Code = "not_found"

	// CodeAlreadyExists: create targeted an existing path.
	CodeAlreadyExists Code = "already_exists"

	// CodeEditConflict: document-level optimistic-lock mismatch. Carried
	// by [ConflictError], which holds the concurrently committed state.
	CodeEditConflict Code = "edit_conflict"

	// CodeIndexConflict: the metadata index retry budget was exhausted
	// under contention. Transient; the index self-heals on the next
	// read-modify-write cycle.
	CodeIndexConflict Code = "index_conflict"

	// CodeAccessDenied: the store rejected the caller's credentials.
	CodeAccessDenied Code = "access_denied"

	// CodeInvalidInput: validation failure, raised before any I/O and
	// never retried.
	CodeInvalidInput Code = "invalid_input"

	// CodeNetwork: transient connectivity, timeout, or service
	// unavailability that survived the retry budget.
	CodeNetwork Code = "network"

	// CodeUnknown: fallback wrap for anything unclassified.
	CodeUnknown Code = "unknown"
)

// Error is the typed error returned by all wiki operations except edit
// conflicts (see [ConflictError]).
type Error struct {
	Code Code
	Op   string // operation, e.g. "create", "upload"
	Key  string // document path or attachment id, if applicable
	Err  error  // underlying cause, may be nil for validation errors
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("wiki: %s", e.Op)
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + string(e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ConflictError reports a document-level optimistic-lock mismatch.
// Current is the winner's committed state, handed to the caller for
// merge resolution; the wiki never resolves conflicts itself.
type ConflictError struct {
	Path    string
	Current *Document
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("wiki: update %s: %s: concurrent edit committed first", e.Path, CodeEditConflict)
}

// ErrorCode extracts the taxonomy code from err, or CodeUnknown.
func ErrorCode(err error) Code {
	var we *Error
	if errors.As(err, &we) {
		return we.Code
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return CodeEditConflict
	}
	return CodeUnknown
}

// AsConflict returns the ConflictError in err's chain, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	ok := errors.As(err, &ce)
	return ce, ok
}

// invalid builds a validation error. Raised synchronously before any I/O.
func invalid(op, key, msg string) *Error {
	return &Error{Code: CodeInvalidInput, Op: op, Key: key, Err: errors.New(msg)}
}

// classify translates a store/retry error into the taxonomy. Precondition
// failures are intentionally absent: their meaning depends on the call
// site (create vs update vs index write), so call sites map them first.
func classify(op, key string, err error) *Error {
	code := CodeUnknown
	switch {
	case errors.Is(err, blob.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, blob.ErrAccessDenied):
		code = CodeAccessDenied
	case retry.Retryable(err):
		// Still retryable after the retry layer gave up: transient
		// connectivity that outlived the budget.
		code = CodeNetwork
	}
	return &Error{Code: code, Op: op, Key: key, Err: err}
}
