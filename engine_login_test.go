package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterAndLogin(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	summary := mustRegister(t, engine, "alice@example.com", "correct horse")
	if summary.ID == "" {
		t.Fatal("expected account ID to be assigned")
	}
	if summary.Role != "customer" {
		t.Fatalf("expected default role customer, got %q", summary.Role)
	}
	if summary.Verified {
		t.Fatal("new accounts must start unverified")
	}

	result, err := engine.Login(ctx, "alice@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens in login result")
	}

	claims, err := engine.VerifyAccess(result.AccessToken)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if claims.Subject != summary.ID {
		t.Fatalf("access token subject = %q, want %q", claims.Subject, summary.ID)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("access token email = %q", claims.Email)
	}
	if claims.Role != "customer" {
		t.Fatalf("access token role = %q", claims.Role)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	mustRegister(t, engine, "Bob@Example.COM", "correct horse")

	if _, err := engine.Login(ctx, "  bob@example.com ", "correct horse"); err != nil {
		t.Fatalf("expected case-insensitive login to succeed, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())

	_, err := engine.Login(context.Background(), "ghost@example.com", "whatever1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	mustRegister(t, engine, "carol@example.com", "correct horse")

	_, err := engine.Login(ctx, "carol@example.com", "wrong horse")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLockoutThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.MaxAttempts = 3
	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	mustRegister(t, engine, "dave@example.com", "correct horse")

	for i := 0; i < 2; i++ {
		if _, err := engine.Login(ctx, "dave@example.com", "wrong"+string(rune('0'+i))); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// The failure that reaches the threshold reports the lock, not a
	// generic credential error.
	if _, err := engine.Login(ctx, "dave@example.com", "wrong2"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked on threshold failure, got %v", err)
	}

	// The correct password is refused while the lock holds.
	if _, err := engine.Login(ctx, "dave@example.com", "correct horse"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with correct password, got %v", err)
	}

	if got := engine.metrics.Value(MetricLoginLocked); got != 2 {
		t.Fatalf("MetricLoginLocked = %d, want 2", got)
	}
}

func TestLoginLockoutExpiresAndClears(t *testing.T) {
	cfg := testConfig()
	cfg.Lockout.MaxAttempts = 2
	cfg.Lockout.Duration = 50 * time.Millisecond
	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	mustRegister(t, engine, "erin@example.com", "correct horse")

	engine.Login(ctx, "erin@example.com", "wrong one")
	if _, err := engine.Login(ctx, "erin@example.com", "wrong two"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lock after second failure, got %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := engine.Login(ctx, "erin@example.com", "correct horse"); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}

	// Success cleared the counter: one fresh failure is a credential error,
	// not a lock.
	if _, err := engine.Login(ctx, "erin@example.com", "wrong three"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after counter reset, got %v", err)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	ctx := context.Background()

	summary := mustRegister(t, engine, "frank@example.com", "correct horse")
	if err := engine.store.SetActive(ctx, summary.ID, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	_, err := engine.Login(ctx, "frank@example.com", "correct horse")
	if !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}

	// A wrong password on an inactive account still reads as a credential
	// error so account status cannot be probed.
	_, err = engine.Login(ctx, "frank@example.com", "wrong horse")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyAccessRejectsNonAccessTokens(t *testing.T) {
	engine, notifier := newTestEngine(t, testConfig())
	ctx := context.Background()

	mustRegister(t, engine, "gina@example.com", "correct horse")
	if err := engine.RequestPasswordReset(ctx, "gina@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}

	resetToken := notifier.resetToken("gina@example.com")
	if resetToken == "" {
		t.Fatal("expected a reset token to be delivered")
	}

	if _, err := engine.VerifyAccess(resetToken); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken for purpose token, got %v", err)
	}
	if _, err := engine.VerifyAccess("not-a-jwt"); !errors.Is(err, ErrInvalidOrExpiredToken) {
		t.Fatalf("expected ErrInvalidOrExpiredToken for garbage, got %v", err)
	}
}
