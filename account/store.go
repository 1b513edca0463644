package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/marketsquare/authcore/lockout"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("account not found")

// ErrDuplicateEmail is returned by Create when the normalized email is
// already registered.
var ErrDuplicateEmail = errors.New("account email already registered")

// ErrCredentialNotFound is returned when the account has no credential for
// the requested provider.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrDuplicateCredential is returned when the account already has a
// credential for the provider.
var ErrDuplicateCredential = errors.New("credential already exists for provider")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("account redis unavailable")

const watchRetries = 4

// Store persists accounts and credentials in Redis with a uniqueness index
// on the normalized email. All read-modify-write paths run under WATCH so
// concurrent updates of the same account never lose writes.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates an account [Store] backed by the given Redis client.
// prefix namespaces all keys.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) accountKey(id string) string {
	return s.prefix + ":id:" + id
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":e:" + NormalizeEmail(email)
}

func (s *Store) credentialKey(accountID string, provider Provider) string {
	return s.prefix + ":c:" + accountID + ":" + string(provider)
}

// Create persists a new account, its email index entry, and an optional
// initial credential in one transaction. The email must be unused;
// uniqueness is decided on the normalized form.
func (s *Store) Create(ctx context.Context, acct *Account, cred *Credential) error {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	acct.Email = NormalizeEmail(acct.Email)
	now := time.Now()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now

	encodedAccount, err := encodeAccount(acct)
	if err != nil {
		return err
	}

	var encodedCredential []byte
	if cred != nil {
		cred.AccountID = acct.ID
		if cred.CreatedAt.IsZero() {
			cred.CreatedAt = now
		}
		encodedCredential, err = encodeCredential(cred)
		if err != nil {
			return err
		}
	}

	emailKey := s.emailKey(acct.Email)

	for i := 0; i < watchRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			_, err := tx.Get(ctx, emailKey).Result()
			if err == nil {
				return ErrDuplicateEmail
			}
			if !errors.Is(err, redis.Nil) {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, emailKey, acct.ID, 0)
				pipe.Set(ctx, s.accountKey(acct.ID), encodedAccount, 0)
				if encodedCredential != nil {
					pipe.Set(ctx, s.credentialKey(acct.ID, cred.Provider), encodedCredential, 0)
				}
				return nil
			})
			return err
		}, emailKey)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, ErrDuplicateEmail) {
			return ErrDuplicateEmail
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: create contention", ErrRedisUnavailable)
}

// GetByID fetches an account by its ID.
func (s *Store) GetByID(ctx context.Context, id string) (*Account, error) {
	data, err := s.redis.Get(ctx, s.accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return decodeAccount(data)
}

// GetByEmail fetches an account by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.GetByID(ctx, id)
}

// GetCredential fetches the account's credential for the given provider.
func (s *Store) GetCredential(ctx context.Context, accountID string, provider Provider) (*Credential, error) {
	data, err := s.redis.Get(ctx, s.credentialKey(accountID, provider)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return decodeCredential(data)
}

// AddCredential attaches a credential to an existing account. At most one
// credential per provider.
func (s *Store) AddCredential(ctx context.Context, cred *Credential) error {
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	encoded, err := encodeCredential(cred)
	if err != nil {
		return err
	}

	if _, err := s.GetByID(ctx, cred.AccountID); err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.credentialKey(cred.AccountID, cred.Provider), encoded, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return ErrDuplicateCredential
	}

	return nil
}

// UpdateLockout applies fn to the account's current lockout state and
// persists the result, atomically with the read. Returns the new state.
func (s *Store) UpdateLockout(ctx context.Context, accountID string, fn func(lockout.State) lockout.State) (lockout.State, error) {
	var next lockout.State

	err := s.updateAccount(ctx, accountID, func(acct *Account) error {
		next = fn(acct.Lockout)
		acct.Lockout = next
		return nil
	})

	return next, err
}

// MarkVerified sets the verified flag. Verifying an already verified
// account is a no-op.
func (s *Store) MarkVerified(ctx context.Context, accountID string) error {
	return s.updateAccount(ctx, accountID, func(acct *Account) error {
		acct.Verified = true
		return nil
	})
}

// SetActive enables or disables login for the account.
func (s *Store) SetActive(ctx context.Context, accountID string, active bool) error {
	return s.updateAccount(ctx, accountID, func(acct *Account) error {
		acct.Active = active
		return nil
	})
}

// UpdatePasswordHash replaces the local credential's password digest.
func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	key := s.credentialKey(accountID, ProviderLocal)

	for i := 0; i < watchRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			cred, err := decodeCredential(data)
			if err != nil {
				return err
			}
			cred.PasswordHash = newHash

			encoded, err := encodeCredential(cred)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return ErrCredentialNotFound
		}
		if errors.Is(err, errCorruptRecord) {
			return err
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: password update contention", ErrRedisUnavailable)
}

func (s *Store) updateAccount(ctx context.Context, accountID string, mutate func(*Account) error) error {
	key := s.accountKey(accountID)

	for i := 0; i < watchRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			acct, err := decodeAccount(data)
			if err != nil {
				return err
			}

			if err := mutate(acct); err != nil {
				return err
			}
			acct.UpdatedAt = time.Now()

			encoded, err := encodeAccount(acct)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if errors.Is(err, errCorruptRecord) {
			return err
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: account update contention", ErrRedisUnavailable)
}
