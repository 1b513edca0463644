package authcore

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log"
	"time"

	"github.com/marketsquare/authcore/account"
	"github.com/marketsquare/authcore/password"
	"github.com/marketsquare/authcore/token"
)

// RequestPasswordReset mints a reset token for the account behind email
// and hands it to the notifier. The outcome is identical whether or not
// the email is registered: nil error, comparable latency. Callers learn
// nothing about which addresses exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = account.NormalizeEmail(email)

	acct, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			enumerationDelay()
			e.metricInc(MetricPasswordResetRequest)
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, "", nil, map[string]string{
				"known": "false",
			})
			return nil
		}
		return err
	}

	resetToken, _, err := e.signer.MintPurpose(acct.ID, token.PurposeReset)
	if err != nil {
		return err
	}
	if e.notifier != nil {
		if err := e.notifier.SendPasswordResetEmail(ctx, acct.Email, resetToken); err != nil {
			log.Printf("authcore: sending password reset email for %s: %v", acct.ID, err)
		}
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, acct.ID, nil, nil)
	return nil
}

// ConfirmPasswordReset redeems a reset token and installs the new
// password. The token's nonce is burned on first redemption, so a reset
// link works exactly once even while the token signature is still within
// its lifetime. A weak replacement password is rejected before the nonce
// is consumed; the link stays usable for a corrected attempt.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, newPass string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.signer.VerifyPurpose(resetToken, token.PurposeReset)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}

	newHash, err := e.hasher.Hash(newPass)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, claims.Subject, ErrWeakPassword, nil)
			return ErrWeakPassword
		}
		return err
	}

	// The consumed marker only needs to outlive the token signature.
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, claims.Subject, ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}

	if e.consumed != nil {
		ok, err := e.consumed.Consume(ctx, claims.ID, remaining)
		if err != nil {
			return err
		}
		if !ok {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, claims.Subject, ErrInvalidOrExpiredToken, map[string]string{
				"reason": "token_replay",
			})
			return ErrInvalidOrExpiredToken
		}
	}

	if err := e.store.UpdatePasswordHash(ctx, claims.Subject, newHash); err != nil {
		if errors.Is(err, account.ErrNotFound) || errors.Is(err, account.ErrCredentialNotFound) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, auditEventPasswordResetConfirm, false, claims.Subject, ErrInvalidOrExpiredToken, nil)
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	// Proving mailbox control unlocks the account; stale failure counters
	// would otherwise keep the legitimate owner out.
	if _, err := e.store.UpdateLockout(ctx, claims.Subject, e.config.Lockout.OnSuccess); err != nil {
		log.Printf("authcore: clearing lockout after password reset for %s: %v", claims.Subject, err)
	}

	if _, err := e.refresh.RevokeAll(ctx, claims.Subject); err != nil {
		log.Printf("authcore: revoking sessions after password reset for %s: %v", claims.Subject, err)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, claims.Subject, nil, nil)
	return nil
}

// enumerationDelay sleeps for a randomized interval in the 20-40ms range so
// the unknown-email path does not return measurably faster than the path
// that mints and dispatches a token.
func enumerationDelay() {
	var b [2]byte
	jitter := time.Duration(0)
	if _, err := rand.Read(b[:]); err == nil {
		jitter = time.Duration(binary.BigEndian.Uint16(b[:])%20) * time.Millisecond
	}
	time.Sleep(20*time.Millisecond + jitter)
}
