package auth

import (
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/tcglibrary/catalog/internal/apperr"
)

const (
	// MinPasswordLength is the minimum required password length
	MinPasswordLength = 6
	// MaxPasswordBytes is the most bcrypt will hash
	MaxPasswordBytes = 72
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 12
)

// PasswordValidator handles password validation and hashing
type PasswordValidator struct {
	cost int
}

// NewPasswordValidator creates a new PasswordValidator instance
func NewPasswordValidator() *PasswordValidator {
	return &PasswordValidator{cost: BcryptCost}
}

// NewPasswordValidatorWithCost creates a validator with a custom bcrypt cost
func NewPasswordValidatorWithCost(cost int) *PasswordValidator {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &PasswordValidator{cost: cost}
}

// ValidatePassword checks the length rules for field. Returns nil when valid.
func (v *PasswordValidator) ValidatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Field(field, "Password must be at least 6 characters long")
	}
	if len(password) > MaxPasswordBytes {
		return apperr.Field(field, "Password must be at most 72 bytes long")
	}
	return nil
}

// HashPassword creates a salted bcrypt hash of the password
func (v *PasswordValidator) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a password with its bcrypt hash
// Returns nil if they match, error otherwise
func (v *PasswordValidator) VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
