// Package token mints and verifies the engine's signed JWTs: short-lived
// access tokens carrying identity claims and single-purpose verify/reset
// tokens carrying a jti nonce for single-use enforcement. Signing material
// is injected; the package never generates keys.
package token
