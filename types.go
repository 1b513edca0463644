package authcore

import (
	"context"

	"github.com/marketsquare/authcore/account"
	"github.com/marketsquare/authcore/lockout"
)

// AccountStore is the persistence contract the engine drives. The bundled
// Redis implementation in package account satisfies it; deployments with an
// existing user database can provide their own.
//
// Implementations must treat emails as unique on their normalized form and
// must apply UpdateLockout's callback atomically with the read that feeds
// it: two concurrent failure updates may not lose a count.
type AccountStore interface {
	Create(ctx context.Context, acct *account.Account, cred *account.Credential) error
	GetByID(ctx context.Context, id string) (*account.Account, error)
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
	GetCredential(ctx context.Context, accountID string, provider account.Provider) (*account.Credential, error)
	AddCredential(ctx context.Context, cred *account.Credential) error
	UpdateLockout(ctx context.Context, accountID string, fn func(lockout.State) lockout.State) (lockout.State, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
	MarkVerified(ctx context.Context, accountID string) error
	SetActive(ctx context.Context, accountID string, active bool) error
}

// Notifier delivers verification and reset tokens to the account owner.
// Delivery failures never fail the triggering operation; the engine logs
// and moves on.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

type noopNotifier struct{}

func (noopNotifier) SendVerificationEmail(context.Context, string, string) error  { return nil }
func (noopNotifier) SendPasswordResetEmail(context.Context, string, string) error { return nil }

// AccountSummary is the caller-facing view of an account. It never exposes
// credential material or lockout internals.
type AccountSummary struct {
	ID       string
	Email    string
	Role     account.Role
	Verified bool
}

// TokenPair is one session's worth of tokens: a signed access token and an
// opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	TokenPair
	Account AccountSummary
}

// RegisterRequest carries the inputs for account creation. Role may be
// empty to take the configured default.
type RegisterRequest struct {
	Email    string
	Password string
	Role     account.Role
}

func summarize(acct *account.Account) AccountSummary {
	return AccountSummary{
		ID:       acct.ID,
		Email:    acct.Email,
		Role:     acct.Role,
		Verified: acct.Verified,
	}
}
