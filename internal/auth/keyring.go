package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidPIN = errors.New("invalid pin")

// Keyring holds one bcrypt PIN hash per role. Plain PINs are hashed once at
// startup and never kept.
type Keyring struct {
	hashes map[Role][]byte

	// verified caches accepted PINs by digest; bcrypt runs once per PIN.
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]Role
}

// NewKeyring hashes the configured PINs. Roles with an empty PIN cannot log in.
func NewKeyring(pins map[Role]string) (*Keyring, error) {
	k := &Keyring{
		hashes:   make(map[Role][]byte, len(pins)),
		verified: make(map[[sha256.Size]byte]Role),
	}
	for role, pin := range pins {
		if pin == "" {
			continue
		}
		if len(pin) < 4 {
			return nil, fmt.Errorf("%s pin must be at least 4 characters", role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash %s pin: %w", role, err)
		}
		k.hashes[role] = hash
	}
	return k, nil
}

func (k *Keyring) Configured(role Role) bool {
	_, ok := k.hashes[role]
	return ok
}

// Authenticate returns the strongest role whose PIN matches. Admin is tried
// first so a shared PIN never downgrades an admin.
func (k *Keyring) Authenticate(pin string) (Role, error) {
	if pin == "" {
		return "", ErrInvalidPIN
	}
	digest := sha256.Sum256([]byte(pin))
	k.mu.RLock()
	role, ok := k.verified[digest]
	k.mu.RUnlock()
	if ok {
		return role, nil
	}

	for _, role := range []Role{RoleAdmin, RoleHost, RoleGift} {
		hash, ok := k.hashes[role]
		if !ok {
			continue
		}
		if bcrypt.CompareHashAndPassword(hash, []byte(pin)) == nil {
			k.mu.Lock()
			k.verified[digest] = role
			k.mu.Unlock()
			return role, nil
		}
	}
	return "", ErrInvalidPIN
}
