// Package auth implements E5: API-key issuance/lookup and the admin
// token check, per spec.md §4.5 and §9 ("store only salted hashes").
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"exchsim/internal/store"
)

var (
	ErrMissingKey = errors.New("auth: missing api key")
	ErrInvalidKey = errors.New("auth: invalid api key")
)

// Cache is a warm map of salted-hash(api key) -> account id, avoiding a
// store round trip on every trader request.
type Cache struct {
	pepper []byte

	mu    sync.RWMutex
	byKey map[string]string // hash -> account id
}

// NewCache builds a Cache warmed from every account in st. pepper is a
// server-side secret mixed into every hash so a leaked DB dump alone
// cannot be used to forge keys.
func NewCache(st *store.Store, pepper []byte) (*Cache, error) {
	c := &Cache{pepper: pepper, byKey: make(map[string]string)}
	accounts, err := st.ListAccounts()
	if err != nil {
		return nil, fmt.Errorf("auth: warm cache: %w", err)
	}
	for _, a := range accounts {
		c.byKey[a.APIKeyHash] = a.ID
	}
	return c, nil
}

// IssueKey generates a new random API key and its salted hash. The raw
// key is returned to the caller exactly once (account creation); only
// the hash is persisted, per spec.md §9.
func (c *Cache) IssueKey(accountID string) (rawKey, hash string) {
	raw := make([]byte, 32)
	_, _ = rand.Read(raw)
	rawKey = hex.EncodeToString(raw)
	hash = c.Hash(rawKey)
	c.mu.Lock()
	c.byKey[hash] = accountID
	c.mu.Unlock()
	return rawKey, hash
}

// Hash computes the salted hash of a raw API key.
func (c *Cache) Hash(rawKey string) string {
	mac := hmac.New(sha256.New, c.pepper)
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Lookup resolves a raw API key to an account id.
func (c *Cache) Lookup(rawKey string) (string, error) {
	if rawKey == "" {
		return "", ErrMissingKey
	}
	hash := c.Hash(rawKey)
	c.mu.RLock()
	id, ok := c.byKey[hash]
	c.mu.RUnlock()
	if !ok {
		return "", ErrInvalidKey
	}
	return id, nil
}
