// Package auth keeps session tokens in the OS credential store.
package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/painel-dev/painel/internal/session"
)

// KeyringStore implements session.TokenStore on top of go-keyring. Each API
// origin gets its own keyring service, the way browser storage is scoped per
// origin.
type KeyringStore struct {
	Prefix string
}

// Default is the store used outside tests.
var Default session.TokenStore = NewKeyringStore("painel")

func NewKeyringStore(prefix string) *KeyringStore {
	return &KeyringStore{Prefix: prefix}
}

func (k *KeyringStore) service(origin string) string {
	return k.Prefix + ":" + origin
}

func (k *KeyringStore) SaveToken(origin, token string) error {
	if token == "" {
		return k.DeleteToken(origin)
	}
	if err := keyring.Set(k.service(origin), session.StorageKey, token); err != nil {
		return fmt.Errorf("failed to save token for %s: %w", origin, err)
	}
	return nil
}

func (k *KeyringStore) LoadToken(origin string) (string, error) {
	token, err := keyring.Get(k.service(origin), session.StorageKey)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", session.ErrNotAuthenticated
	case err != nil:
		return "", fmt.Errorf("failed to load token for %s: %w", origin, err)
	case token == "":
		return "", session.ErrNotAuthenticated
	}
	return token, nil
}

func (k *KeyringStore) DeleteToken(origin string) error {
	err := keyring.Delete(k.service(origin), session.StorageKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token for %s: %w", origin, err)
	}
	return nil
}
