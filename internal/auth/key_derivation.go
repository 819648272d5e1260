package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// DerivedKeyLength is the length of derived keys in bytes. 32 bytes serves
	// both HMAC-SHA256 signing and AES-256 encryption.
	DerivedKeyLength = 32

	purposeSessionHash  = "agenda-session-hash-v1"
	purposeSessionBlock = "agenda-session-block-v1"
	purposeCSRF         = "agenda-csrf-v1"
)

// ErrInvalidMasterSecret is returned when the master secret is invalid
var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a 32-byte key from a master secret using HKDF-SHA256.
// Keys derived with different purpose strings are independent, so a single
// SECRET_KEY can back cookie signing, cookie encryption and CSRF tokens.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}

	// salt=nil is acceptable per RFC 5869
	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))

	derivedKey := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, derivedKey); err != nil {
		return nil, err
	}
	return derivedKey, nil
}

// Keys holds every key the web tier needs, all derived from SECRET_KEY.
type Keys struct {
	SessionHash  []byte
	SessionBlock []byte
	CSRF         []byte
}

// DeriveKeys derives the session and CSRF keys from the master secret.
func DeriveKeys(masterSecret []byte) (Keys, error) {
	hash, err := DeriveKey(masterSecret, purposeSessionHash)
	if err != nil {
		return Keys{}, err
	}
	block, err := DeriveKey(masterSecret, purposeSessionBlock)
	if err != nil {
		return Keys{}, err
	}
	csrfKey, err := DeriveKey(masterSecret, purposeCSRF)
	if err != nil {
		return Keys{}, err
	}
	return Keys{SessionHash: hash, SessionBlock: block, CSRF: csrfKey}, nil
}
