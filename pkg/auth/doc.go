// Package auth provides local credential verification for the Axle identity
// registry: password encoders, a password policy, and the brute-force
// prevention guard applied to failed logins.
//
// # Brute-Force Guard
//
// Every failed authentication for a non-whitelisted caller blocks for a
// uniform random delay within a configured range. The number of concurrently
// delayed callers is capped; callers beyond the cap fail immediately with
// ErrTooManyConcurrentAttempts rather than queuing, so the guard cannot be
// turned into a thread-exhaustion vector. Admitted delays always run to
// completion.
//
// # Password Encoders
//
// Encoders are selected by name from registry configuration:
//
//	plain  - reversible, prefix-marked plaintext (fixtures and migration)
//	digest - bcrypt, with a bounded LRU cache of verification results
//	empty  - externally authenticated principals, nothing matches
//
// The stored password attribute of a user is semantically richer than a
// string: an absent password means "no local password" and never matches,
// distinct from an empty one.
package auth
