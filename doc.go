// Package authcore implements the credential and token lifecycle behind a
// login system: argon2id password hashing, JWT access tokens, opaque
// rotating refresh tokens in Redis, failure-based lockout, and single-use
// email verification and password reset tokens.
//
// The entry point is the Engine, assembled with the Builder:
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithNotifier(mailer).
//		Build()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
//
//	result, err := engine.Login(ctx, "user@example.com", "hunter2!")
//
// The engine is transport-agnostic: it exposes Go methods and sentinel
// errors, not HTTP handlers. Error returns are deliberately coarse where
// secrecy matters; see ErrInvalidCredentials and ErrInvalidOrExpiredToken.
//
// Subpackages hold the building blocks and can be used on their own:
// password (argon2id hashing), token (JWT signing), refresh (rotating
// opaque tokens), lockout (the pure lockout policy), and account (the
// Redis account store).
package authcore
