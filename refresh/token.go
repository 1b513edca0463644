package refresh

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

const secretSize = 32

// ErrMalformedToken is returned when a presented token is not a valid
// encoding of a refresh secret.
var ErrMalformedToken = errors.New("malformed refresh token")

func newSecret() ([secretSize]byte, error) {
	var secret [secretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func hashSecret(secret [secretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func encodeToken(secret [secretSize]byte) string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

func decodeToken(token string) ([secretSize]byte, error) {
	var secret [secretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, ErrMalformedToken
	}
	if len(raw) != secretSize {
		return secret, ErrMalformedToken
	}

	copy(secret[:], raw)
	return secret, nil
}

// lookupKey is the storage key material for a token: the base64url form of
// the SHA-256 digest of the secret. The plaintext secret never reaches
// Redis.
func lookupKey(secret [secretSize]byte) string {
	digest := hashSecret(secret)
	return base64.RawURLEncoding.EncodeToString(digest[:])
}
