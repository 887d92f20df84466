package sink

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/keyfob/keyfob/pkg/schema"
)

// RunErase executes one scheduled erase action: sleep for the delay, erase,
// return. It runs inside the detached task, after the invoking process has
// typically already exited.
//
// Erasure is best-effort idempotent: a file that is already gone or a
// clipboard that is already empty is not an error, so double-clears (e.g. a
// paste clear racing a timer clear) are harmless.
func RunErase(spec EraseSpec, clipboard Clipboard, typer Typer) error {
	if spec.Delay > 0 {
		time.Sleep(spec.Delay)
	}

	ctx := context.Background()
	switch spec.Action {
	case ActionFile:
		if err := os.Remove(spec.Target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return schema.NewErrorf(schema.ErrCodeSinkUnavailable,
				"remove %s: %s", spec.Target, err.Error()).WithCause(err)
		}
		return nil

	case ActionClipboard:
		return clipboard.Set(ctx, "")

	case ActionPaste:
		// Paste into the focused target, then clear immediately. The clear
		// happens even when the keystroke fails: the exposure window must
		// close either way.
		pasteErr := typer.Paste(ctx)
		if err := clipboard.Set(ctx, ""); err != nil {
			return err
		}
		return pasteErr

	default:
		return schema.NewErrorf(schema.ErrCodeInvalidParameter,
			"unknown erase action %q", spec.Action)
	}
}
