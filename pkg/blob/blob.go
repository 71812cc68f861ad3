// Package blob defines the versioned object store contract the wiki is
// built on. It abstracts the underlying backend so that callers can swap
// between Amazon S3 (or any S3-compatible store), an in-memory store for
// tests, or future backends without changing application code.
//
// The contract is deliberately primitive: get, conditional put, delete,
// list-by-prefix, head. Every object carries an opaque version token that
// changes on each committed write; conditional puts against that token are
// the only coordination primitive the wiki uses. The backend must provide
// strongly consistent read-after-write for this to be sound.
package blob

import (
	"context"
	"errors"
)

// Sentinel errors. Implementations must return errors matching these via
// errors.Is so callers can classify without backend knowledge.
var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("blob: not found")

	// ErrPreconditionFailed is returned by Put when an IfMatch token no
	// longer matches the object's committed version, or when IfNoneMatch
	// is set and the key already exists.
	ErrPreconditionFailed = errors.New("blob: precondition failed")

	// ErrAccessDenied is returned when the backend rejects the caller's
	// credentials for the operation.
	ErrAccessDenied = errors.New("blob: access denied")
)

// Object is a stored blob together with its backend metadata.
type Object struct {
	// Body is the object content. Head returns a nil Body.
	Body []byte

	// Meta is the user-defined metadata stored alongside the object.
	// Keys are lowercase; values are opaque strings.
	Meta map[string]string

	// ContentType is the MIME type recorded at write time, if any.
	ContentType string

	// Size is the content length in bytes (valid for Head results too).
	Size int64

	// Version is the opaque version token identifying this exact
	// committed state of the object.
	Version string
}

// PutOptions controls conditional-write behavior and object metadata.
// A zero value means an unconditional overwrite with no metadata.
type PutOptions struct {
	// IfMatch, when non-empty, makes the write succeed only if the
	// object's current version token equals this value.
	IfMatch string

	// IfNoneMatch, when true, makes the write succeed only if the key
	// does not exist yet (create-only semantics).
	IfNoneMatch bool

	// ContentType is stored as the object's MIME type.
	ContentType string

	// Meta is user metadata persisted with the object.
	Meta map[string]string
}

// Store is the minimal versioned object store interface.
//
// Keys are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the object at key, including its body, metadata and
	// version token. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (*Object, error)

	// Put writes body to key and returns the new version token.
	// Conditional semantics are controlled by opts; a failed condition
	// returns ErrPreconditionFailed. Pass nil opts for a plain overwrite.
	Put(ctx context.Context, key string, body []byte, opts *PutOptions) (string, error)

	// Delete removes the object at key. Deleting a missing key is not an
	// error (idempotent).
	Delete(ctx context.Context, key string) error

	// List returns all keys starting with prefix, in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Head returns the object's metadata and version token without its
	// body. Returns ErrNotFound if the key does not exist.
	Head(ctx context.Context, key string) (*Object, error)
}
