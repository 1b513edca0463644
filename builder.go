package authcore

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/marketsquare/authcore/account"
	"github.com/marketsquare/authcore/password"
	"github.com/marketsquare/authcore/refresh"
	"github.com/marketsquare/authcore/token"
)

// Builder assembles an Engine. The zero value is not usable; start with
// New, chain the With methods, and finish with Build.
//
//	engine, err := authcore.New().
//		WithConfig(cfg).
//		WithRedis(client).
//		WithNotifier(mailer).
//		Build()
type Builder struct {
	config    Config
	configSet bool
	redis     redis.UniversalClient
	store     AccountStore
	notifier  Notifier
	auditSink AuditSink
}

// New returns a Builder primed with DefaultConfig.
func New() *Builder {
	return &Builder{}
}

// WithConfig replaces the entire configuration. Call it before the other
// With methods when both are used.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.configSet = true
	return b
}

// WithRedis sets the Redis client backing the refresh-token store, the
// consumed-nonce store, and the bundled account store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore overrides the bundled Redis account store with a custom
// implementation. Redis is still required for token state.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the delivery channel for verification and reset
// tokens. Without one, tokens are minted but never delivered; useful in
// tests and in deployments that poll the audit stream instead.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the destination for audit events. Ignored when
// auditing is disabled in the config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration, wires the components, and returns a
// ready Engine. The caller owns the returned Engine and should Close it on
// shutdown to flush audit events.
func (b *Builder) Build() (*Engine, error) {
	cfg := b.config
	if !b.configSet {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if b.redis == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrEngineNotReady)
	}

	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("password config: %w", err)
	}

	signer, err := token.NewSigner(token.Config{
		SigningMethod: cfg.Token.SigningMethod,
		Secret:        cfg.Token.Secret,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
		AccessTTL:     cfg.Token.AccessTTL,
		VerifyTTL:     cfg.Token.VerifyTTL,
		ResetTTL:      cfg.Token.ResetTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token config: %w", err)
	}

	store := b.store
	if store == nil {
		store = account.NewStore(b.redis, cfg.Account.RedisPrefix)
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}

	engine := &Engine{
		config:   cfg,
		store:    store,
		hasher:   hasher,
		signer:   signer,
		refresh:  refresh.NewStore(b.redis, cfg.Refresh.RedisPrefix, cfg.Refresh.TTL),
		consumed: newConsumedTokenStore(b.redis),
		notifier: notifier,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
	}

	return engine, nil
}
