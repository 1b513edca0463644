package authcore

import (
	"errors"
	"time"

	"github.com/marketsquare/authcore/account"
	"github.com/marketsquare/authcore/lockout"
	"github.com/marketsquare/authcore/password"
	"github.com/marketsquare/authcore/token"
)

// Config groups every tunable of the engine. Start from DefaultConfig, set
// the signing secret, and adjust what the deployment needs; Build validates
// the result.
type Config struct {
	Token    TokenConfig
	Password password.Config
	Lockout  lockout.Policy
	Refresh  RefreshConfig
	Account  AccountConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig configures the JWT signer: signing material, issuer, expiry
// leeway, and the lifetime of each token kind.
type TokenConfig struct {
	SigningMethod token.SigningMethod // "hs256" (default) or "ed25519"
	// Secret is the HS256 shared secret or the Ed25519 private key. It is
	// always injected by the caller; the engine never generates keys.
	Secret    []byte
	PublicKey []byte
	Issuer    string
	// Leeway is tolerated clock skew on expiry checks. Defaults to zero.
	Leeway    time.Duration
	AccessTTL time.Duration
	VerifyTTL time.Duration
	ResetTTL  time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig configures the opaque refresh-token store.
type RefreshConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

// AccountConfig configures the bundled Redis account store and
// registration defaults.
type AccountConfig struct {
	RedisPrefix string
	DefaultRole account.Role
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events under backpressure instead of blocking the
	// request path. Drops are counted and exported.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration: HS256 signing (secret
// still required), 30 minute access tokens, 7 day refresh tokens, 24 hour
// verify tokens, 1 hour reset tokens, and a 5-failure / 15-minute lockout.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: token.MethodHS256,
			AccessTTL:     30 * time.Minute,
			VerifyTTL:     24 * time.Hour,
			ResetTTL:      time.Hour,
		},
		Password: password.DefaultConfig(),
		Lockout:  lockout.DefaultPolicy(),
		Refresh: RefreshConfig{
			TTL:         7 * 24 * time.Hour,
			RedisPrefix: "art",
		},
		Account: AccountConfig{
			RedisPrefix: "aa",
			DefaultRole: account.RoleCustomer,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks cross-field consistency. Signing-material checks beyond
// presence are delegated to the token signer at Build time.
func (c *Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("token signing secret is required")
	}
	if c.Token.AccessTTL <= 0 || c.Token.VerifyTTL <= 0 || c.Token.ResetTTL <= 0 {
		return errors.New("token TTLs must be > 0")
	}
	if c.Token.Leeway < 0 {
		return errors.New("token leeway must be >= 0")
	}
	if err := c.Lockout.Validate(); err != nil {
		return err
	}
	if c.Refresh.TTL <= 0 {
		return errors.New("refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if c.Refresh.RedisPrefix == "" {
		return errors.New("refresh redis prefix is required")
	}
	if c.Account.RedisPrefix == "" {
		return errors.New("account redis prefix is required")
	}
	if !c.Account.DefaultRole.Valid() {
		return errors.New("account default role is unknown")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0 when audit is enabled")
	}

	return nil
}
