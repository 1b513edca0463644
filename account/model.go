package account

import (
	"strings"
	"time"

	"github.com/marketsquare/authcore/lockout"
)

// Provider identifies how a credential authenticates. Only the local
// provider is driven by the engine; the OAuth providers are stored for
// external glue code.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderFacebook:
		return true
	}
	return false
}

// Role is the coarse authorization role embedded in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Account is the identity record. Lockout state travels with the account so
// failure counting and the lock check read from one place.
type Account struct {
	ID        string
	Email     string
	Role      Role
	Active    bool
	Verified  bool
	Lockout   lockout.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Credential is one way to authenticate an account. An account holds at
// most one credential per provider; the local credential carries the
// password digest, OAuth credentials carry the provider's subject ID.
type Credential struct {
	AccountID    string
	Provider     Provider
	PasswordHash string
	SubjectID    string
	CreatedAt    time.Time
}

// NormalizeEmail lowercases and trims an email address. Every email
// comparison and every stored email goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
