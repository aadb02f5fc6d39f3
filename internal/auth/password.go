package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies account passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

// Argon2Hasher produces Argon2id hashes and also accepts legacy bcrypt hashes.
type Argon2Hasher struct {
	params Params
}

// NewHasher returns an Argon2id hasher with the given cost parameters.
func NewHasher(p Params) *Argon2Hasher {
	return &Argon2Hasher{params: p}
}

// DefaultHasher returns an Argon2id hasher with DefaultParams.
func DefaultHasher() *Argon2Hasher {
	return NewHasher(DefaultParams)
}

// Hash returns a salted Argon2id PHC string.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	return encodeArgon2(password, h.params)
}

// Verify checks password against an Argon2id or bcrypt ($2a$, $2b$, $2y$) hash.
func (h *Argon2Hasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, ErrInvalidHash
		}
		return true, nil
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether the hash should be replaced with a fresh
// Argon2id hash at the next successful login.
func (h *Argon2Hasher) NeedsRehash(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	p, _, _, err := decodeArgon2(encodedHash)
	if err != nil {
		return true
	}
	return p.Memory < h.params.Memory || p.Time < h.params.Time || p.Threads < h.params.Threads ||
		p.KeyLen < h.params.KeyLen
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
