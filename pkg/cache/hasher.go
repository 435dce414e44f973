package cache

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher derives and checks credential proofs
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(proof, secret string) bool
}

// BcryptHasher stores salted bcrypt hashes. Secrets are pre-hashed with
// SHA-256 so passwords longer than bcrypt's 72 byte input limit neither fail
// nor collide on their common prefix.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a bcrypt hasher; cost 0 selects bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(secret), h.Cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(proof, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(proof), prehash(secret)) == nil
}

func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// PlainHasher keeps the password itself as proof. Only suitable for an
// in-process cache.
type PlainHasher struct{}

func (PlainHasher) Hash(secret string) (string, error) {
	return secret, nil
}

func (PlainHasher) Verify(proof, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(proof), []byte(secret)) == 1
}
