package sink

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/keyfob/keyfob/pkg/schema"
)

// Clipboard and keystroke utilities are external collaborators driven over
// os/exec; a missing binary surfaces as SINK_UNAVAILABLE, never a crash.

// ExecClipboard sets the clipboard via an external utility. With no Command
// override the platform default is autodetected.
type ExecClipboard struct {
	// Command overrides autodetection, e.g. "xclip -selection clipboard".
	Command string
}

var clipboardCandidates = []struct {
	bin  string
	args []string
}{
	{"wl-copy", nil},
	{"xclip", []string{"-selection", "clipboard"}},
	{"xsel", []string{"-b", "-i"}},
	{"pbcopy", nil},
}

func (c *ExecClipboard) resolve() (string, []string, error) {
	// A whitespace-only override counts as unset.
	if fields := strings.Fields(c.Command); len(fields) > 0 {
		return fields[0], fields[1:], nil
	}
	for _, cand := range clipboardCandidates {
		if cand.bin == "wl-copy" && os.Getenv("WAYLAND_DISPLAY") == "" {
			continue
		}
		if _, err := exec.LookPath(cand.bin); err == nil {
			return cand.bin, cand.args, nil
		}
	}
	return "", nil, schema.NewError(schema.ErrCodeSinkUnavailable,
		"no clipboard utility found (tried wl-copy, xclip, xsel, pbcopy)")
}

// Set writes text to the clipboard through the utility's stdin.
func (c *ExecClipboard) Set(ctx context.Context, text string) error {
	bin, args, err := c.resolve()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return schema.NewErrorf(schema.ErrCodeSinkUnavailable,
			"%s: %s", bin, strings.TrimSpace(string(out))).WithCause(err)
	}
	return nil
}

// ExecTyper sends a paste keystroke via an external utility (xdotool).
type ExecTyper struct {
	// Command overrides the default "xdotool key --clearmodifiers ctrl+v".
	Command string
}

// command returns the keystroke command, falling back to the default when
// the override is empty or whitespace-only.
func (t *ExecTyper) command() []string {
	if fields := strings.Fields(t.Command); len(fields) > 0 {
		return fields
	}
	return []string{"xdotool", "key", "--clearmodifiers", "ctrl+v"}
}

// Paste simulates a paste keystroke into the focused UI target.
func (t *ExecTyper) Paste(ctx context.Context) error {
	fields := t.command()
	if _, err := exec.LookPath(fields[0]); err != nil {
		return schema.NewErrorf(schema.ErrCodeSinkUnavailable,
			"keystroke utility %q not found", fields[0]).WithCause(err)
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return schema.NewErrorf(schema.ErrCodeSinkUnavailable,
			"%s: %s", fields[0], strings.TrimSpace(string(out))).WithCause(err)
	}
	return nil
}
