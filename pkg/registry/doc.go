// Package registry implements the XML-backed identity registry: roles with a
// parent hierarchy, users, groups, and their many-to-many relations,
// persisted to versioned XML documents.
//
// # Architecture
//
// Each named registry pair owns a directory with two durable documents,
// conventionally roles.xml and users.xml. The documents are the single source
// of truth; the in-memory maps are a cache rebuilt wholesale on every load
// and published as an atomic snapshot, so readers always see either the old
// or the new registry in full, never a partially rebuilt one.
//
// Two read-only services expose the published snapshots:
//
//   - RoleService: roles, parent links, user/group role assignments
//   - UserGroupService: users, groups, memberships, property index
//
// Mutation goes through store sessions. CreateStore derives a session holding
// a private deep copy of the maps; mutations stage against that copy and
// become durable and visible only when Store serializes the copy back to the
// document and publishes it. Load on a session discards staged changes.
// Sessions opened concurrently from the same service do not see each other's
// staged mutations. Concurrent Store calls against the same registry must be
// serialized by the caller; this package does not implement cross-process
// file locking.
//
// The Watcher detects external edits of the documents (filesystem
// notifications, plus modification-time polling at a configured check
// interval) and triggers coalesced reloads. The RoleCalculator computes a
// user's effective roles across direct assignments, the parent hierarchy,
// and enabled group memberships.
package registry
