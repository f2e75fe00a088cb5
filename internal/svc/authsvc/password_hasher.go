package authsvc

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 iteration count for new hashes.
	DefaultIterations = 100_000
	// SaltSize is the number of random salt bytes generated per hash.
	SaltSize = 16
	// KeySize is the derived key length in bytes (256 bits).
	KeySize = 32
)

// ErrInvalidSalt is returned when a stored salt is not valid hex.
var ErrInvalidSalt = errors.New("invalid password salt")

// PasswordHash is a hex-encoded derived key and the salt used to derive it.
type PasswordHash struct {
	Hash string
	Salt string
}

// PasswordHasher derives password hashes with PBKDF2-HMAC-SHA256.
// The zero value uses DefaultIterations.
type PasswordHasher struct {
	Iterations int
}

// NewPasswordHasher returns a hasher with the default iteration count.
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{Iterations: DefaultIterations}
}

// Hash derives a key from password. If salt is empty, a fresh random salt is
// generated; otherwise salt must be hex-encoded.
func (h *PasswordHasher) Hash(password, salt string) (PasswordHash, error) {
	var saltBytes []byte

	if salt == "" {
		saltBytes = make([]byte, SaltSize)
		if _, err := rand.Read(saltBytes); err != nil {
			return PasswordHash{}, fmt.Errorf("generate salt: %w", err)
		}
	} else {
		var err error

		saltBytes, err = hex.DecodeString(salt)
		if err != nil {
			return PasswordHash{}, errors.Join(ErrInvalidSalt, err)
		}
	}

	key := pbkdf2.Key([]byte(password), saltBytes, h.iterations(), KeySize, sha256.New)

	return PasswordHash{
		Hash: hex.EncodeToString(key),
		Salt: hex.EncodeToString(saltBytes),
	}, nil
}

// Verify reports whether password matches hash. An empty salt selects the
// legacy unsalted SHA-256 scheme, which exists only to authenticate records
// written before salting was introduced.
func (h *PasswordHasher) Verify(password, hash, salt string) (bool, error) {
	var derived string

	if salt == "" {
		derived = LegacyHash(password)
	} else {
		ph, err := h.Hash(password, salt)
		if err != nil {
			return false, fmt.Errorf("hash: %w", err)
		}

		derived = ph.Hash
	}

	return subtle.ConstantTimeCompare([]byte(derived), []byte(hash)) == 1, nil
}

func (h *PasswordHasher) iterations() int {
	if h == nil || h.Iterations <= 0 {
		return DefaultIterations
	}

	return h.Iterations
}

// LegacyHash is the unsalted SHA-256 hex digest used by pre-salt records.
func LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))

	return hex.EncodeToString(sum[:])
}
