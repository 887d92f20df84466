package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyfob/keyfob/pkg/schema"
)

func TestExecClipboardWhitespaceCommandIsUnset(t *testing.T) {
	// A whitespace-only override must behave exactly like no override:
	// fall through to autodetection instead of panicking on fields[0].
	bin, args, err := (&ExecClipboard{}).resolve()
	wsBin, wsArgs, wsErr := (&ExecClipboard{Command: " \t "}).resolve()

	assert.Equal(t, bin, wsBin)
	assert.Equal(t, args, wsArgs)
	if err != nil {
		require.Error(t, wsErr)
		assert.Equal(t, schema.CodeOf(err), schema.CodeOf(wsErr))
	} else {
		require.NoError(t, wsErr)
	}
}

func TestExecClipboardCommandOverride(t *testing.T) {
	bin, args, err := (&ExecClipboard{Command: "xclip -selection clipboard"}).resolve()
	require.NoError(t, err)
	assert.Equal(t, "xclip", bin)
	assert.Equal(t, []string{"-selection", "clipboard"}, args)
}

func TestExecTyperWhitespaceCommandIsUnset(t *testing.T) {
	def := (&ExecTyper{}).command()
	assert.Equal(t, def, (&ExecTyper{Command: "  \t"}).command())
	assert.Equal(t, []string{"wtype", "-M", "ctrl", "v"},
		(&ExecTyper{Command: "wtype -M ctrl v"}).command())
}
