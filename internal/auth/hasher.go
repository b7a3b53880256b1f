package auth

import (
	"github.com/civicore/backend/pkg/utils"
)

// BcryptHasher implements PasswordHasher over the bcrypt helpers.
type BcryptHasher struct {
	Cost int
}

// Hash hashes a plain password.
func (h BcryptHasher) Hash(password string) (string, error) {
	return utils.HashPassword(password, h.Cost)
}

// Check compares a plain password with a stored hash.
func (h BcryptHasher) Check(password, hash string) bool {
	return utils.CheckPassword(password, hash)
}
