package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSealerPassphraseFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEYFOB_PASSPHRASE", "hunter2")
	require.NoError(t, os.MkdirAll(keyfobDir(), 0o700))

	s, err := newSealer("default")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("swordfish"))
	require.NoError(t, err)
	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("swordfish"), opened)

	// The salt file persists, so a second sealer opens the first's output.
	s2, err := newSealer("default")
	require.NoError(t, err)
	opened, err = s2.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("swordfish"), opened)
}
