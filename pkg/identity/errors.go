package identity

import "errors"

// Coarse-grained error kinds for registry loading and mutation. Lower-level
// parser and path-evaluation failures are wrapped into these rather than
// leaked to callers.
var (
	// ErrMalformedDocument indicates the raw bytes are not well-formed XML.
	// The load is aborted and the previous snapshot stays published.
	ErrMalformedDocument = errors.New("identity: malformed registry document")

	// ErrSchemaViolation indicates a well-formed document that does not
	// conform to the schema for its declared version.
	ErrSchemaViolation = errors.New("identity: registry document violates schema")

	// ErrUnsupportedVersion indicates a declared document version with no
	// matching path provider or schema. This is a configuration error, not
	// a data error.
	ErrUnsupportedVersion = errors.New("identity: unsupported registry document version")

	// ErrMissingStoreBacking indicates an attempt to build a read-modify-write
	// registry from a configuration without a file backing.
	ErrMissingStoreBacking = errors.New("identity: registry has no file backing")

	// ErrConcurrentModification indicates a mutation that would violate a
	// structural invariant, typically because the session's view is stale.
	// The caller must reload and retry explicitly.
	ErrConcurrentModification = errors.New("identity: concurrent modification rejected")

	// ErrReadOnly indicates a mutation attempt against a registry scope that
	// cannot create stores.
	ErrReadOnly = errors.New("identity: registry is read-only")

	// ErrNotFound indicates a lookup for a role, user, or group that does
	// not exist in the current snapshot.
	ErrNotFound = errors.New("identity: not found")
)
