package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/keyfob/keyfob/pkg/schema"
)

const keyringService = "keyfob"

// MasterKey returns the 32-byte sealing key for the given ring from the OS
// keyring, generating and persisting a fresh random key on first use.
func MasterKey(ring string) ([]byte, error) {
	stored, err := keyring.Get(keyringService, ring)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(stored)
		if decErr != nil || len(key) != 32 {
			return nil, schema.NewErrorf(schema.ErrCodeVault,
				"stored master key for ring %q is corrupt", ring)
		}
		return key, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		return nil, schema.NewErrorf(schema.ErrCodeVault,
			"os keyring: %s", err.Error()).WithCause(err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeVault,
			"generate master key: %s", err.Error()).WithCause(err)
	}
	if err := keyring.Set(keyringService, ring, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeVault,
			"persist master key: %s", err.Error()).WithCause(err)
	}
	return key, nil
}

// KeyringAvailable reports whether the OS keyring can be reached.
func KeyringAvailable() bool {
	_, err := keyring.Get(keyringService, "probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// LoadSalt reads the per-install PBKDF2 salt at path, creating a random
// 16-byte salt on first use. Used by the passphrase fallback when no OS
// keyring is available.
func LoadSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) > 0 {
		return salt, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, schema.NewErrorf(schema.ErrCodeVault,
			"read salt file: %s", err.Error()).WithCause(err)
	}

	salt = make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeVault,
			"generate salt: %s", err.Error()).WithCause(err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeVault,
			"write salt file: %s", err.Error()).WithCause(err)
	}
	return salt, nil
}
