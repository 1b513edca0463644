package authcore

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"time"

	"github.com/marketsquare/authcore/account"
	"github.com/marketsquare/authcore/password"
	"github.com/marketsquare/authcore/token"
)

// Register creates an account with a local password credential. The email
// is normalized before the uniqueness check, so "User@X.com" and
// "user@x.com" are the same account. New accounts start active and
// unverified; a verification email goes out through the notifier when one
// is configured.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AccountSummary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email := account.NormalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	role := req.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return nil, ErrWeakPassword
		}
		return nil, err
	}

	now := time.Now().UTC()
	acct := &account.Account{
		Email:     email,
		Role:      role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cred := &account.Credential{
		Provider:     account.ProviderLocal,
		PasswordHash: hash,
		CreatedAt:    now,
	}

	if err := e.store.Create(ctx, acct, cred); err != nil {
		if errors.Is(err, account.ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", ErrDuplicateAccount, nil)
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, acct.ID, nil, map[string]string{
		"role": string(role),
	})

	e.sendVerification(ctx, acct)

	summary := summarize(acct)
	return &summary, nil
}

// sendVerification mints a verification token and hands it to the notifier.
// Delivery is best effort; registration has already succeeded.
func (e *Engine) sendVerification(ctx context.Context, acct *account.Account) {
	if e.notifier == nil {
		return
	}

	verifyToken, _, err := e.signer.MintPurpose(acct.ID, token.PurposeVerify)
	if err != nil {
		log.Printf("authcore: minting verification token for %s: %v", acct.ID, err)
		return
	}
	if err := e.notifier.SendVerificationEmail(ctx, acct.Email, verifyToken); err != nil {
		log.Printf("authcore: sending verification email for %s: %v", acct.ID, err)
	}
}

// ChangePassword replaces the local password after verifying the current
// one. The new password may not equal the old one. On success every live
// refresh token of the account is revoked so stolen sessions do not
// survive the change.
func (e *Engine) ChangePassword(ctx context.Context, accountID, oldPass, newPass string) error {
	if err := e.ready(); err != nil {
		return err
	}

	cred, err := e.store.GetCredential(ctx, accountID, account.ProviderLocal)
	if err != nil {
		if errors.Is(err, account.ErrCredentialNotFound) || errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricPasswordChangeFailure)
			e.emitAudit(ctx, auditEventPasswordChange, false, accountID, ErrInvalidCredentials, nil)
			return ErrInvalidCredentials
		}
		return err
	}

	if !e.hasher.Verify(oldPass, cred.PasswordHash) {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, accountID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if e.hasher.Verify(newPass, cred.PasswordHash) {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditEventPasswordChange, false, accountID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.hasher.Hash(newPass)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			e.metricInc(MetricPasswordChangeFailure)
			e.emitAudit(ctx, auditEventPasswordChange, false, accountID, ErrWeakPassword, nil)
			return ErrWeakPassword
		}
		return err
	}

	if err := e.store.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		return err
	}

	if _, err := e.refresh.RevokeAll(ctx, accountID); err != nil {
		log.Printf("authcore: revoking sessions after password change for %s: %v", accountID, err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, accountID, nil, nil)
	return nil
}
