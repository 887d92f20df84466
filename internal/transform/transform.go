// Package transform applies the optional hash/salt/base64/kdf transforms to
// a raw secret before it is handed to an exposure sink.
package transform

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/keyfob/keyfob/internal/kdf"
)

// Spec is the ordered, optional transform configuration. Salt only has an
// effect combined with Hash or KDF.
type Spec struct {
	Hash       string
	Salt       bool
	KDF        bool
	Iterations int
	KeyLen     int
}

// IsZero reports whether the spec requests no transform at all.
func (s Spec) IsZero() bool {
	return s.Hash == "" && !s.KDF
}

// Apply transforms secret according to spec. The lookup key serves as the
// salt material. With a zero spec the secret is returned unchanged.
func Apply(secret []byte, key string, spec Spec) (string, error) {
	switch {
	case spec.KDF:
		var salt []byte
		if spec.Salt {
			salt = []byte(key)
		}
		return kdf.DeriveHex(secret, salt, kdf.Params{
			Iterations: spec.Iterations,
			KeyLen:     spec.KeyLen,
			Hash:       spec.Hash,
		})

	case spec.Hash != "":
		input := secret
		if spec.Salt {
			// Legacy concatenation: secret{key}. Not a keyed MAC, kept
			// byte-exact so previously computed hashes keep matching.
			input = make([]byte, 0, len(secret)+len(key)+2)
			input = append(input, secret...)
			input = append(input, '{')
			input = append(input, key...)
			input = append(input, '}')
		}
		if spec.Hash == "base64" {
			encoded := base64.StdEncoding.EncodeToString(input)
			encoded = strings.TrimRight(encoded, "=")
			return strings.ReplaceAll(encoded, "\n", ""), nil
		}
		newHash, err := kdf.HashFunc(spec.Hash)
		if err != nil {
			return "", err
		}
		h := newHash()
		h.Write(input)
		return hex.EncodeToString(h.Sum(nil)), nil

	default:
		return string(secret), nil
	}
}
