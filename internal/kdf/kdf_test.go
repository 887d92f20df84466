package kdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfob/keyfob/pkg/schema"
)

// RFC 6070 test vectors for PBKDF2-HMAC-SHA1.
func TestDerive_RFC6070Vectors(t *testing.T) {
	cases := []struct {
		name       string
		secret     string
		salt       string
		iterations int
		keyLen     int
		want       string
	}{
		{"iter1", "password", "salt", 1, 20, "0c60c80f961f0e71f3a9b524af6012062fe037a6"},
		{"iter2", "password", "salt", 2, 20, "ea6c014dc72d6f8ccd1ed92ace1d41f0d8de8957"},
		{"iter4096", "password", "salt", 4096, 20, "4b007901b765489abead49d926f721d065a429c1"},
		{"longInputs", "passwordPASSWORDpassword", "saltSALTsaltSALTsaltSALTsaltSALTsalt", 4096, 25,
			"3d2eec4fe41c849b80c8d83662c0e44a8b291a964cf2f07038"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DeriveHex([]byte(tc.secret), []byte(tc.salt), Params{
				Iterations: tc.iterations,
				KeyLen:     tc.keyLen,
				Hash:       "sha1",
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDerive_SHA256Vector(t *testing.T) {
	got, err := DeriveHex([]byte("password"), []byte("salt"), Params{
		Iterations: 1,
		KeyLen:     32,
		Hash:       "sha256",
	})
	require.NoError(t, err)
	assert.Equal(t, "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b", got)
}

func TestDerive_Deterministic(t *testing.T) {
	p := Params{Iterations: 100, KeyLen: 32}
	first, err := Derive([]byte("secret"), []byte("pepper"), p)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Derive([]byte("secret"), []byte("pepper"), p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestDerive_DefaultsPinned(t *testing.T) {
	// Zero-value params must resolve to SHA-1 / 1000 / 32, the historical
	// defaults that stored derivations depend on.
	viaDefaults, err := Derive([]byte("s"), []byte("k"), Params{})
	require.NoError(t, err)

	explicit, err := Derive([]byte("s"), []byte("k"), Params{Iterations: 1000, KeyLen: 32, Hash: "sha1"})
	require.NoError(t, err)
	assert.Equal(t, explicit, viaDefaults)
	assert.Len(t, viaDefaults, 32)
}

func TestDerive_InvalidParameters(t *testing.T) {
	_, err := Derive([]byte("s"), []byte("k"), Params{Iterations: -1, KeyLen: 32})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidParameter, schema.CodeOf(err))

	_, err = Derive([]byte("s"), []byte("k"), Params{Iterations: 10, KeyLen: -8})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidParameter, schema.CodeOf(err))
}

func TestDerive_UnknownHash(t *testing.T) {
	_, err := Derive([]byte("s"), []byte("k"), Params{Hash: "whirlpool"})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeUnsupportedAlgorithm, schema.CodeOf(err))
}

func TestDerive_EmptySalt(t *testing.T) {
	// The --pbkdf2 flag without --salt derives with an empty salt.
	got, err := DeriveHex([]byte("s"), nil, Params{Iterations: 10})
	require.NoError(t, err)
	assert.Len(t, got, 64) // 32 bytes hex-encoded
}
