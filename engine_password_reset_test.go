package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestPasswordResetFlow(t *testing.T) {
	engine, notifier := newTestEngine(t, testConfig())
	ctx := context.Background()

	mustRegister(t, engine, "alice@example.com", "original pass")
	session := loginFor(t, engine, "alice@example.com", "original pass")

	if err := engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := notifier.resetToken("alice@example.com")
	if resetToken == "" {
		t.Fatal("expected a reset token to be delivered")
	}

	if err := engine.ConfirmPasswordReset(ctx, resetToken, "replacement pass"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}

	if _, err := engine.Login(ctx, "alice@example.com", "original pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password should be dead, got %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "replacement pass"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	// Sessions issued before the reset are revoked.
	if _, err := engine.Refresh(ctx, session.RefreshToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("pre-reset session should be revoked, got %v", err)
	}
}

func TestPasswordResetTokenSingleUse(t *testing.T) {
	engine, notifier := newTestEngine(t, testConfig())
	ctx := context.Background()

	mustRegister(t, engine, "bob@example.com", "original pass")
	if err := engine.RequestPasswordReset(ctx, "bob@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := notifier.resetToken("bob@example.com")

	if err := engine.ConfirmPasswordReset(ctx, resetToken, "first new pass"); err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}

	// The signature is still valid; the burned nonce is what stops replay.
	err := engine.ConfirmPasswordReset(ctx, resetToken, "second new pass")
	if !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected replay to fail with ErrInvalidOrExpiredToken, got %v", err)
	}
	if _, err := engine.Login(ctx, "bob@example.com", "second new pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("replayed reset must not change the password, got %v", err)
	}
}

func TestPasswordResetWeakPasswordKeepsTokenAlive(t *testing.T) {
	engine, notifier := newTestEngine(t, testConfig())
	ctx := context.Background()

	mustRegister(t, engine, "carol@example.com", "original pass")
	if err := engine.RequestPasswordReset(ctx, "carol@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	resetToken := notifier.resetToken("carol@example.com")

	if err := engine.ConfirmPasswordReset(ctx, resetToken, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	// Rejecting the weak password must not burn the nonce.
	if err := engine.ConfirmPasswordReset(ctx, resetToken, "long enough now"); err != nil {
		t.Fatalf("retry after weak password failed: %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	engine, notifier := newTestEngine(t, testConfig())

	if err := engine.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected nil for unknown email, got %v", err)
	}
	if notifier.resetToken("ghost@example.com") != "" {
		t.Fatal("no token may be minted for an unknown email")
	}
}

func TestPasswordResetInvalidToken(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	err := engine.ConfirmPasswordReset(context.Background(), "garbage", "valid new pass")
	if !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestPasswordResetRejectsVerifyToken(t *testing.T) {
	engine, notifier := newTestEngine(t, testConfig())
	ctx := context.Background()

	mustRegister(t, engine, "dave@example.com", "original pass")
	verifyToken := notifier.verifyToken("dave@example.com")
	if verifyToken == "" {
		t.Fatal("expected a verification token from registration")
	}

	err := engine.ConfirmPasswordReset(ctx, verifyToken, "valid new pass")
	if !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("verify token must not redeem as reset, got %v", err)
	}
}

func TestPasswordResetClearsLockout(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.MaxAttempts = 2
	engine, notifier := newTestEngine(t, cfg)
	ctx := context.Background()

	mustRegister(t, engine, "erin@example.com", "original pass")

	engine.Login(ctx, "erin@example.com", "wrong one")
	if _, err := engine.Login(ctx, "erin@example.com", "wrong two"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lock, got %v", err)
	}

	if err := engine.RequestPasswordReset(ctx, "erin@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if err := engine.ConfirmPasswordReset(ctx, notifier.resetToken("erin@example.com"), "fresh new pass"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}

	// Proving mailbox control lifts the lock; the owner is not stuck
	// waiting out the window with a password that now works.
	if _, err := engine.Login(ctx, "erin@example.com", "fresh new pass"); err != nil {
		t.Fatalf("login after reset should succeed, got %v", err)
	}
}
