// Package xmlreg implements the versioned XML wire format of the identity
// registries.
//
// # Documents
//
// Two document kinds exist, one per registry. A role document carries the
// role definitions, the parent hierarchy, and the role assignments of users
// and groups. A user document carries users, groups, and group memberships.
// Both roots declare a schema version attribute; decoding an unknown version
// fails with identity.ErrUnsupportedVersion so newer documents are never
// silently misread.
//
// # Decoding
//
// Decoding is two-pass: all entities are materialized first, then references
// between them are resolved, so a child may name a parent role defined later
// in the document. Dangling references are skipped with a warning by default;
// Options.Strict turns them into identity.ErrSchemaViolation. Unparseable
// input fails with identity.ErrMalformedDocument.
//
// # Encoding
//
// Encoding is deterministic: elements are emitted sorted by name and
// attribute layout is fixed, so successive serializations of the same
// registry state are byte-identical and diff cleanly under version control.
//
// # Validation
//
// Validate checks a parsed document against a structural schema per kind and
// version: expected root, allowed children, required and optional attributes,
// well-formed enabled flags. It covers the constraints the decoder relies on
// without pulling in a full XSD engine; the shipped .xsd files remain the
// authoritative interchange contract for external tooling.
package xmlreg
