package authcore

import "errors"

var (
	// ErrInvalidCredentials is returned when the email is unknown, the
	// account has no local credential, or the password does not match. The
	// three cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the account's lockout window is
	// active, including on the failure that triggers the lock.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive is returned when the account has been disabled.
	ErrAccountInactive = errors.New("account inactive")
	// ErrDuplicateAccount is returned by Register when the normalized email
	// is already taken.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrInvalidOrExpiredToken covers every way a presented token can be
	// bad: malformed, tampered, expired, revoked, already consumed, or of
	// the wrong kind. Callers get no finer distinction.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrInvalidEmail is returned when a supplied email address does not
	// parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidRole is returned when a registration names an unknown role.
	ErrInvalidRole = errors.New("invalid account role")
	// ErrWeakPassword is returned when a new password fails the minimum
	// length check.
	ErrWeakPassword = errors.New("password policy violation")
	// ErrPasswordReuse is returned by ChangePassword when the new password
	// equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrEngineNotReady is returned by the Builder when required
	// dependencies are missing.
	ErrEngineNotReady = errors.New("engine not initialized")
)
