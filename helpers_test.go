package authcore

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/marketsquare/authcore/password"
)

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

// capturingNotifier records delivered tokens so tests can redeem them.
type capturingNotifier struct {
	mu           sync.Mutex
	verifyTokens map[string]string
	resetTokens  map[string]string
}

func newCapturingNotifier() *capturingNotifier {
	return &capturingNotifier{
		verifyTokens: map[string]string{},
		resetTokens:  map[string]string{},
	}
}

func (n *capturingNotifier) SendVerificationEmail(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verifyTokens[email] = token
	return nil
}

func (n *capturingNotifier) SendPasswordResetEmail(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetTokens[email] = token
	return nil
}

func (n *capturingNotifier) verifyToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verifyTokens[email]
}

func (n *capturingNotifier) resetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resetTokens[email]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("test-secret-0123456789abcdef0123")
	// Minimum legal argon2 cost keeps the suite fast.
	cfg.Password = password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
	cfg.Audit.Enabled = false
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *capturingNotifier) {
	t.Helper()

	notifier := newCapturingNotifier()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(newTestRedis(t)).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, notifier
}

func mustRegister(t *testing.T, engine *Engine, email, pass string) *AccountSummary {
	t.Helper()

	summary, err := engine.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return summary
}
