// Package password implements password hashing and verification with Argon2id.
//
// # Output format
//
// Digests are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Every Hash call draws a fresh random salt, so hashing the same plaintext
// twice produces two different digests. [Hasher.Verify] treats a malformed or
// foreign digest as a mismatch rather than an error, so stored garbage can
// never crash a login path. [Hasher.NeedsUpgrade] supports transparent
// parameter upgrades: when a stored digest was produced with weaker
// parameters the caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy beyond
// the minimum length, lockout counting, and credential storage live with the
// engine and its stores.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive digests.
//   - Import any other authcore package.
//   - Log plaintext passwords or digest parameters.
package password
