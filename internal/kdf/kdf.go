// Package kdf implements the PBKDF2 (RFC 2898) key derivation used both for
// the --pbkdf2 transform and for stretching the vault passphrase.
package kdf

import (
	"crypto/md5"
	"crypto/pbkdf2"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"

	"github.com/keyfob/keyfob/pkg/schema"
)

// Defaults pinned for compatibility with previously derived values.
// Changing DefaultHash breaks round-trip with stored derivations.
const (
	DefaultIterations = 1000
	DefaultKeyLen     = 32
	DefaultHash       = "sha1"
)

// Params configures a derivation. Zero values fall back to the defaults.
type Params struct {
	Iterations int
	KeyLen     int
	Hash       string
}

func (p Params) withDefaults() Params {
	if p.Iterations == 0 {
		p.Iterations = DefaultIterations
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultKeyLen
	}
	if p.Hash == "" {
		p.Hash = DefaultHash
	}
	return p
}

// HashFunc returns a new hash.Hash constructor for the given algorithm name.
func HashFunc(algorithm string) (func() hash.Hash, error) {
	switch algorithm {
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	case "sha384":
		return sha512.New384, nil
	case "sha224":
		return sha256.New224, nil
	case "md5":
		return md5.New, nil
	case "sha1":
		return sha1.New, nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedAlgorithm,
			"unsupported hash algorithm: %s", algorithm)
	}
}

// Derive runs PBKDF2 over secret with the given salt and parameters.
// Identical inputs always yield identical output.
func Derive(secret, salt []byte, p Params) ([]byte, error) {
	p = p.withDefaults()
	if p.Iterations <= 0 {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParameter,
			"iterations must be positive, got %d", p.Iterations)
	}
	if p.KeyLen <= 0 {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParameter,
			"key length must be positive, got %d", p.KeyLen)
	}
	newHash, err := HashFunc(p.Hash)
	if err != nil {
		return nil, err
	}
	derived, err := pbkdf2.Key(newHash, string(secret), salt, p.Iterations, p.KeyLen)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParameter,
			"pbkdf2: %s", err.Error()).WithCause(err)
	}
	return derived, nil
}

// DeriveHex is Derive with the output encoded as a lowercase hex string,
// the form callers deliver to sinks.
func DeriveHex(secret, salt []byte, p Params) (string, error) {
	derived, err := Derive(secret, salt, p)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(derived), nil
}
