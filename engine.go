package authcore

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/marketsquare/authcore/account"
	"github.com/marketsquare/authcore/lockout"
	"github.com/marketsquare/authcore/password"
	"github.com/marketsquare/authcore/refresh"
	"github.com/marketsquare/authcore/token"
)

// Engine ties the credential, token, and lockout components into the
// session lifecycle operations. Build one with the Builder; a built Engine
// is immutable and safe for concurrent use.
type Engine struct {
	config   Config
	store    AccountStore
	hasher   *password.Hasher
	signer   *token.Signer
	refresh  *refresh.Store
	consumed *consumedTokenStore
	notifier Notifier
	metrics  *Metrics
	audit    *auditDispatcher
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events lost to backpressure since startup.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters for export.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil || e.hasher == nil || e.signer == nil || e.refresh == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Login verifies the local credential for email and, on success, mints an
// access token and issues a refresh token. Unknown emails, wrong passwords,
// and missing local credentials all fail with ErrInvalidCredentials; locked
// accounts fail with ErrAccountLocked without touching the password.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = account.NormalizeEmail(email)
	now := time.Now()

	acct, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, map[string]string{
				"reason": "unknown_email",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if acct.Lockout.IsLocked(now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	cred, err := e.store.GetCredential(ctx, acct.ID, account.ProviderLocal)
	if err != nil {
		if errors.Is(err, account.ErrCredentialNotFound) {
			// OAuth-only accounts look nonexistent to password login; the
			// counter is not fed so probing cannot lock them.
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, ErrInvalidCredentials, map[string]string{
				"reason": "no_local_credential",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !e.hasher.Verify(pass, cred.PasswordHash) {
		return nil, e.recordLoginFailure(ctx, acct.ID, "password_mismatch")
	}

	// Active is checked only after the password matched so a probe cannot
	// distinguish a deactivated account from a wrong password.
	if !acct.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, acct.ID, ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	if acct.Lockout != (lockout.State{}) {
		if _, err := e.store.UpdateLockout(ctx, acct.ID, e.config.Lockout.OnSuccess); err != nil {
			log.Printf("authcore: clearing lockout state for %s: %v", acct.ID, err)
		}
	}

	if e.hasher.NeedsUpgrade(cred.PasswordHash) {
		if newHash, hashErr := e.hasher.Hash(pass); hashErr == nil {
			if err := e.store.UpdatePasswordHash(ctx, acct.ID, newHash); err != nil {
				log.Printf("authcore: upgrading password hash for %s: %v", acct.ID, err)
			}
		}
	}

	access, err := e.signer.MintAccess(acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		return nil, err
	}
	refreshToken, err := e.refresh.Issue(ctx, acct.ID, deviceInfoFromContext(ctx))
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, acct.ID, nil, nil)

	return &LoginResult{
		TokenPair: TokenPair{
			AccessToken:  access,
			RefreshToken: refreshToken,
		},
		Account: summarize(acct),
	}, nil
}

// recordLoginFailure bumps the failure counter atomically and maps the
// resulting state to the caller-facing error: ErrAccountLocked when this
// failure tripped the threshold, ErrInvalidCredentials otherwise.
func (e *Engine) recordLoginFailure(ctx context.Context, accountID, reason string) error {
	state, err := e.store.UpdateLockout(ctx, accountID, func(s lockout.State) lockout.State {
		return e.config.Lockout.OnFailure(s, time.Now())
	})
	if err != nil {
		return err
	}

	if state.IsLocked(time.Now()) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, accountID, ErrAccountLocked, map[string]string{
			"reason": reason,
		})
		return ErrAccountLocked
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, ErrInvalidCredentials, map[string]string{
		"reason": reason,
	})
	return ErrInvalidCredentials
}

// Refresh rotates refreshToken and mints a fresh access token. The
// presented token is retired atomically; under concurrent presentation
// exactly one caller wins the rotation. A token that was already rotated
// is treated as stolen: the reuse counter fires and the caller sees
// ErrInvalidOrExpiredToken.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	newToken, accountID, err := e.refresh.Rotate(ctx, refreshToken, deviceInfoFromContext(ctx))
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrTokenRevoked):
			e.metricInc(MetricRefreshReuseDetected)
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", ErrInvalidOrExpiredToken, nil)
			return nil, ErrInvalidOrExpiredToken
		case errors.Is(err, refresh.ErrTokenNotFound),
			errors.Is(err, refresh.ErrTokenExpired),
			errors.Is(err, refresh.ErrMalformedToken):
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrInvalidOrExpiredToken, nil)
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	acct, err := e.store.GetByID(ctx, accountID)
	if err != nil {
		e.revokeBestEffort(ctx, newToken)
		if errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, accountID, ErrInvalidOrExpiredToken, nil)
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	if !acct.Active {
		e.revokeBestEffort(ctx, newToken)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, acct.ID, ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	access, err := e.signer.MintAccess(acct.ID, acct.Email, string(acct.Role))
	if err != nil {
		e.revokeBestEffort(ctx, newToken)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, acct.ID, nil, nil)

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: newToken,
	}, nil
}

func (e *Engine) revokeBestEffort(ctx context.Context, refreshToken string) {
	if _, err := e.refresh.Revoke(ctx, refreshToken); err != nil {
		log.Printf("authcore: revoking refresh token after failed refresh: %v", err)
	}
}

// Logout revokes the presented refresh token. Unknown or already-revoked
// tokens are not an error; logout is idempotent.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	revoked, err := e.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, refresh.ErrMalformedToken) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", nil, map[string]string{
		"revoked": strconv.FormatBool(revoked),
	})
	return nil
}

// LogoutAll revokes every live refresh token of the account and reports how
// many were revoked. Access tokens already minted stay valid until expiry.
func (e *Engine) LogoutAll(ctx context.Context, accountID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	n, err := e.refresh.RevokeAll(ctx, accountID)
	if err != nil {
		return 0, err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, accountID, nil, map[string]string{
		"revoked_count": strconv.Itoa(n),
	})
	return n, nil
}

// VerifyAccess validates an access token and returns its claims. Any
// failure, from a bad signature to an expired or wrong-type token, is
// reported as ErrInvalidOrExpiredToken.
func (e *Engine) VerifyAccess(tokenStr string) (*token.AccessClaims, error) {
	if e == nil || e.signer == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.signer.VerifyAccess(tokenStr)
	if e.metrics != nil {
		e.metrics.Observe(MetricVerifyAccessLatency, time.Since(start))
	}
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	return claims, nil
}
