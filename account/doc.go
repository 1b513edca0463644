// Package account holds the identity model and a Redis-backed store for
// accounts and their credentials.
//
// Emails are unique per deployment on their normalized (lowercased,
// trimmed) form, enforced by an index key checked under WATCH. Lockout
// state is part of the account record, so the failure counter and the lock
// timestamp update in the same atomic write as the read that produced
// them.
//
// The engine consumes this store through an interface; deployments with an
// existing user database can substitute their own implementation.
package account
