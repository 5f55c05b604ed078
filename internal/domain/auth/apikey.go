// Package auth holds API key identity used to guard back-office routes.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no active key matches the presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// APIKeyInfo holds the identity data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey computes the hex HMAC-SHA256 of a raw API key under the server
// pepper. Only the hash is ever stored or compared.
func HashKey(rawKey, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}
