package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Interface to create or check user password hashes
type PasswordHasher interface {
	// Generate hash from password
	Hash(password string) (string, error)

	// Check user provided password against known hash
	// Must be protected against timing attacks
	Check(hashedPassword string, password string) bool
}

// Bcrypt password hasher
// Password is pre-hashed with sha256, so passwords longer than 72 bytes keep all their entropy
type BcryptHasher struct {
	// bcrypt cost; bcrypt.DefaultCost if zero
	Cost int
}

var DefaultHasher PasswordHasher = BcryptHasher{}

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], cost)
	return string(hash), err
}

// Malformed hash never matches
func (h BcryptHasher) Check(hashedPassword string, password string) bool {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:]) == nil
}
