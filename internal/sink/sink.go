// Package sink delivers a secret payload to exposure sinks (stdout, temp
// file, clipboard, GUI paste) and guarantees bounded-time erasure through a
// detached background process that outlives the invoking command.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/keyfob/keyfob/pkg/schema"
)

// Fixed exposure windows. The erasure task sleeps for the delay, performs a
// single erase action and terminates.
const (
	TempFileEraseDelay  = 1 * time.Second
	ClipboardEraseDelay = 10 * time.Second
	PasteDelay          = 200 * time.Millisecond
)

// Erase actions executed by the detached task.
const (
	ActionFile      = "file"
	ActionClipboard = "clipboard"
	ActionPaste     = "paste"
)

// Request selects the sinks for one delivery. TempFile and Clipboard may be
// combined; each gets its own independently scheduled erasure. Paste implies
// Clipboard.
type Request struct {
	Stdout    bool
	TempFile  string // destination path; empty disables the tempfile sink
	Clipboard bool
	Paste     bool
}

// Clipboard sets the platform clipboard contents.
type Clipboard interface {
	Set(ctx context.Context, text string) error
}

// Typer sends a synthetic paste keystroke to the focused UI target.
type Typer interface {
	Paste(ctx context.Context) error
}

// EraseSpec describes one scheduled erasure.
type EraseSpec struct {
	Action string
	Target string // file path, for ActionFile
	Delay  time.Duration
}

// Spawner starts an erase task in a unit of execution that survives the
// parent process exiting.
type Spawner interface {
	Spawn(spec EraseSpec) error
}

// Manager owns sink delivery and erasure scheduling.
type Manager struct {
	out       io.Writer
	clipboard Clipboard
	typer     Typer
	spawner   Spawner
	logger    *slog.Logger
}

// NewManager creates a Manager. out is where the stdout sink writes.
func NewManager(out io.Writer, clipboard Clipboard, typer Typer, spawner Spawner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{out: out, clipboard: clipboard, typer: typer, spawner: spawner, logger: logger}
}

// Deliver places payload into every requested sink. For each sink with an
// exposure window the erasure task is detached *before* the payload is
// handed over: a payload that cannot be erased is never exposed, so a spawn
// failure aborts with DETACH_FAILURE. Unavailable external utilities only
// fail their own sink; remaining sinks are still attempted.
func (m *Manager) Deliver(ctx context.Context, payload string, req Request) error {
	var sinkErrs []error

	if req.Stdout {
		fmt.Fprintln(m.out, payload)
	}

	if req.TempFile != "" {
		if err := m.deliverTempFile(ctx, payload, req.TempFile); err != nil {
			if schema.CodeOf(err) == schema.ErrCodeDetachFailure {
				return err
			}
			sinkErrs = append(sinkErrs, err)
		}
	}

	if req.Clipboard || req.Paste {
		if err := m.deliverClipboard(ctx, payload, req.Paste); err != nil {
			if schema.CodeOf(err) == schema.ErrCodeDetachFailure {
				return err
			}
			sinkErrs = append(sinkErrs, err)
		}
	}

	return errors.Join(sinkErrs...)
}

func (m *Manager) deliverTempFile(ctx context.Context, payload, path string) error {
	if err := m.spawn(EraseSpec{Action: ActionFile, Target: path, Delay: TempFileEraseDelay}); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		return schema.NewErrorf(schema.ErrCodeSinkUnavailable,
			"write temp file: %s", err.Error()).WithCause(err)
	}
	m.logger.DebugContext(ctx, "delivered to temp file",
		slog.String("path", path), slog.Duration("erase_after", TempFileEraseDelay))
	return nil
}

func (m *Manager) deliverClipboard(ctx context.Context, payload string, paste bool) error {
	// An empty payload is cleared synchronously so a stale prior secret is
	// never left visible.
	if payload == "" {
		return m.clipboard.Set(ctx, "")
	}

	spec := EraseSpec{Action: ActionClipboard, Delay: ClipboardEraseDelay}
	if paste {
		spec = EraseSpec{Action: ActionPaste, Delay: PasteDelay}
	}
	if err := m.spawn(spec); err != nil {
		return err
	}
	if err := m.clipboard.Set(ctx, payload); err != nil {
		return err
	}
	m.logger.DebugContext(ctx, "delivered to clipboard",
		slog.Bool("paste", paste), slog.Duration("erase_after", spec.Delay))
	return nil
}

func (m *Manager) spawn(spec EraseSpec) error {
	if err := m.spawner.Spawn(spec); err != nil {
		if schema.CodeOf(err) == schema.ErrCodeDetachFailure {
			return err
		}
		return schema.NewErrorf(schema.ErrCodeDetachFailure,
			"detach erase task: %s", err.Error()).WithCause(err)
	}
	return nil
}
