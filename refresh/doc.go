// Package refresh implements the Redis-backed store for opaque rotating
// refresh tokens.
//
// # Token format
//
// A token is 32 random bytes encoded base64url without padding. Redis only
// ever sees the SHA-256 digest of those bytes; records are addressed by
// digest, so a store dump cannot be replayed as tokens.
//
// # Rotation
//
// [Store.Rotate] runs a Lua compare-and-swap: it revokes the presented
// record and writes the successor in a single atomic step. Two concurrent
// rotations of the same token serialize inside Redis, so exactly one wins;
// the loser and any later replay of the revoked token report
// [ErrTokenRevoked], which the engine treats as reuse detection.
//
// # Architecture boundaries
//
// This package owns token material and record persistence. Mapping store
// errors onto the public error taxonomy and deciding what reuse detection
// triggers are the engine's job.
package refresh
