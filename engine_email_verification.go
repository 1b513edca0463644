package authcore

import (
	"context"
	"errors"

	"github.com/marketsquare/authcore/account"
	"github.com/marketsquare/authcore/token"
)

// RequestEmailVerification re-sends a verification token for an
// unverified account. Like RequestPasswordReset, the outcome does not
// reveal whether the email is registered or already verified.
func (e *Engine) RequestEmailVerification(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email = account.NormalizeEmail(email)

	acct, err := e.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			enumerationDelay()
			e.metricInc(MetricEmailVerificationRequest)
			e.emitAudit(ctx, auditEventVerificationRequest, true, "", nil, map[string]string{
				"known": "false",
			})
			return nil
		}
		return err
	}

	if acct.Verified {
		e.metricInc(MetricEmailVerificationRequest)
		e.emitAudit(ctx, auditEventVerificationRequest, true, acct.ID, nil, map[string]string{
			"already_verified": "true",
		})
		return nil
	}

	e.sendVerification(ctx, acct)

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventVerificationRequest, true, acct.ID, nil, nil)
	return nil
}

// VerifyEmail redeems a verification token and marks the account verified.
// Verification is idempotent: replaying a token against an already
// verified account succeeds again rather than erroring, because the state
// it asserts already holds.
func (e *Engine) VerifyEmail(ctx context.Context, verifyToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	claims, err := e.signer.VerifyPurpose(verifyToken, token.PurposeVerify)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventVerificationConfirm, false, "", ErrInvalidOrExpiredToken, nil)
		return ErrInvalidOrExpiredToken
	}

	if err := e.store.MarkVerified(ctx, claims.Subject); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			e.emitAudit(ctx, auditEventVerificationConfirm, false, claims.Subject, ErrInvalidOrExpiredToken, nil)
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventVerificationConfirm, true, claims.Subject, nil, nil)
	return nil
}
