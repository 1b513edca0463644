package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWT signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared symmetric secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// Purpose discriminates single-purpose tokens. The set is closed; a token
// minted for one purpose never verifies as another.
type Purpose string

const (
	// PurposeVerify marks email-verification tokens.
	PurposeVerify Purpose = "verify"
	// PurposeReset marks password-reset tokens.
	PurposeReset Purpose = "reset"
)

const typeAccess = "access"

var (
	// ErrUnexpectedTokenType is returned when a purpose token is presented
	// where an access token is required, or vice versa.
	ErrUnexpectedTokenType = errors.New("unexpected token type")
	// ErrUnexpectedPurpose is returned when a purpose token carries a
	// different purpose than the one being verified.
	ErrUnexpectedPurpose = errors.New("unexpected token purpose")
)

// Config holds the signing material and lifetimes for all token kinds.
// The signing secret is injected; the Signer never generates key material.
type Config struct {
	SigningMethod SigningMethod
	// Secret is the HS256 shared secret, or the Ed25519 private key (raw or
	// PEM) when SigningMethod is MethodEd25519.
	Secret []byte
	// PublicKey is the Ed25519 verify key. Ignored for HS256.
	PublicKey []byte
	Issuer    string
	// Leeway is tolerated clock skew applied to expiry checks only. Zero
	// means exact expiry; signature verification never gets leeway.
	Leeway    time.Duration
	AccessTTL time.Duration
	VerifyTTL time.Duration
	ResetTTL  time.Duration
}

// Signer mints and verifies the engine's JWTs: short-lived access tokens
// and single-purpose verify/reset tokens. Immutable after construction.
type Signer struct {
	config Config
}

// AccessClaims is the payload of an access token. Subject carries the
// account ID.
type AccessClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// PurposeClaims is the payload of a verify or reset token. Subject carries
// the account ID; ID carries the single-use nonce.
type PurposeClaims struct {
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// NewSigner validates cfg and returns a ready Signer.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.AccessTTL <= 0 || cfg.VerifyTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.Secret); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Signer{config: cfg}, nil
}

// MintAccess signs an access token for the given account.
func (s *Signer) MintAccess(accountID, email, role string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Email:     email,
		Role:      role,
		TokenType: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	return s.sign(jwt.NewWithClaims(s.method(), claims))
}

// VerifyAccess parses and validates an access token: signature, expiry
// (with configured leeway), issuer, and the access type discriminator.
// Purpose tokens fail with ErrUnexpectedTokenType.
func (s *Signer) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != typeAccess {
		return nil, ErrUnexpectedTokenType
	}

	return claims, nil
}

// MintPurpose signs a single-purpose token for the given account and
// returns the token together with its nonce. The nonce doubles as the jti
// claim and is what the caller marks consumed for single-use purposes.
func (s *Signer) MintPurpose(accountID string, purpose Purpose) (token, nonce string, err error) {
	ttl, err := s.PurposeTTL(purpose)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	nonce = uuid.NewString()
	claims := PurposeClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        nonce,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token, err = s.sign(jwt.NewWithClaims(s.method(), claims))
	if err != nil {
		return "", "", err
	}

	return token, nonce, nil
}

// VerifyPurpose parses and validates a purpose token and checks that it
// carries the wanted purpose. An access token or a token of a different
// purpose is rejected.
func (s *Signer) VerifyPurpose(tokenStr string, want Purpose) (*PurposeClaims, error) {
	claims := &PurposeClaims{}
	if err := s.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Purpose == "" {
		return nil, ErrUnexpectedTokenType
	}
	if claims.Purpose != want {
		return nil, ErrUnexpectedPurpose
	}

	return claims, nil
}

// PurposeTTL returns the configured lifetime for the given purpose.
func (s *Signer) PurposeTTL(purpose Purpose) (time.Duration, error) {
	switch purpose {
	case PurposeVerify:
		return s.config.VerifyTTL, nil
	case PurposeReset:
		return s.config.ResetTTL, nil
	default:
		return 0, fmt.Errorf("unknown token purpose %q", purpose)
	}
}

func (s *Signer) sign(tok *jwt.Token) (string, error) {
	key, err := s.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

func (s *Signer) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method().Alg()}),
		jwt.WithIssuedAt(),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return s.verifyKey()
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}

	return nil
}

func (s *Signer) method() jwt.SigningMethod {
	switch s.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (s *Signer) signKey() (interface{}, error) {
	switch s.config.SigningMethod {
	case MethodHS256:
		return s.config.Secret, nil
	default:
		return parseEdPrivateKey(s.config.Secret)
	}
}

func (s *Signer) verifyKey() (interface{}, error) {
	switch s.config.SigningMethod {
	case MethodHS256:
		return s.config.Secret, nil
	default:
		return parseEdPublicKey(s.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
