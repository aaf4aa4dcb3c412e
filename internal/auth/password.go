package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for new hashes.
const defaultCost = 12

// maxPasswordBytes is bcrypt's input limit. Longer inputs are rejected
// instead of being silently truncated.
const maxPasswordBytes = 72

// ErrPasswordMismatch is returned when a password does not match.
var ErrPasswordMismatch = errors.New("auth: invalid password")

var bcryptPrefix = regexp.MustCompile(`^\$2[aby]\$`)

// PasswordService provides bcrypt hashing and verification.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with a custom bcrypt cost
// (use bcrypt.MinCost) for tests in other packages.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// IsHash reports whether stored looks like a bcrypt hash.
func IsHash(stored string) bool {
	return bcryptPrefix.MatchString(stored)
}

// Check verifies plaintext against a stored password that may be a bcrypt
// hash or, for accounts seeded before hashing was enforced, the plaintext
// itself. needsRehash is true when a legacy plaintext password matched; the
// caller should then store Hash(plaintext).
func (p *PasswordService) Check(stored, plaintext string) (needsRehash bool, err error) {
	if IsHash(stored) {
		return false, p.Verify(stored, plaintext)
	}
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(plaintext)) != 1 {
		return false, ErrPasswordMismatch
	}
	return true, nil
}
