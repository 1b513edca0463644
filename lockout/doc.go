// Package lockout implements the pure account-lockout state machine.
//
// A [State] travels with the account record; the engine reads it, feeds it
// through [Policy.OnFailure] or [Policy.OnSuccess], and writes the result
// back in one atomic store update. The package itself performs no I/O and
// holds no clock: every decision takes the current instant as an argument,
// which keeps the transitions trivially testable.
//
// # What this package must NOT do
//
//   - Persist anything.
//   - Call time.Now.
//   - Import any other authcore package.
package lockout
