package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keyfob/keyfob/internal/lookup"
	"github.com/keyfob/keyfob/internal/sink"
	"github.com/keyfob/keyfob/internal/store"
	"github.com/keyfob/keyfob/internal/transform"
	"github.com/keyfob/keyfob/internal/vault"
	"github.com/keyfob/keyfob/pkg/schema"
)

// app wires the store, sealer and lookup service for one command invocation.
type app struct {
	store  *store.LibSQLStore
	sealer *vault.Sealer
	lookup *lookup.Service
	cfg    Config
	logger *slog.Logger
}

func newApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, err
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	sealer, err := newSealer(cfg.Ring)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &app{
		store:  st,
		sealer: sealer,
		lookup: lookup.NewService(st, sealer, cfg.Ring, logger),
		cfg:    cfg,
		logger: logger,
	}, nil
}

func (a *app) Close() {
	_ = a.store.Close()
}

// newSealer builds the at-rest sealer: a master key from the OS keyring, or
// KEYFOB_PASSPHRASE stretched through PBKDF2 with a salt file kept beside
// the database.
func newSealer(ring string) (*vault.Sealer, error) {
	if pass := os.Getenv("KEYFOB_PASSPHRASE"); pass != "" {
		salt, err := vault.LoadSalt(saltPath())
		if err != nil {
			return nil, err
		}
		return vault.New(vault.Config{Passphrase: pass, Salt: salt})
	}
	if !vault.KeyringAvailable() {
		return nil, schema.NewError(schema.ErrCodeVault,
			"no OS keyring reachable; set KEYFOB_PASSPHRASE to use the passphrase vault")
	}
	key, err := vault.MasterKey(ring)
	if err != nil {
		return nil, err
	}
	return vault.New(vault.Config{MasterKey: key})
}

// deliver hands the payload to the requested exposure sinks.
func (a *app) deliver(ctx context.Context, payload string, req sink.Request) error {
	spawner := &sink.ProcessSpawner{ExtraArgs: eraseOverrides(a.cfg)}
	mgr := sink.NewManager(
		os.Stdout,
		&sink.ExecClipboard{Command: a.cfg.ClipboardCmd},
		&sink.ExecTyper{Command: a.cfg.PasteCmd},
		spawner,
		a.logger,
	)
	return mgr.Deliver(ctx, payload, req)
}

// eraseOverrides forwards clipboard/keystroke command overrides to the
// detached erase task, which loads no config of its own.
func eraseOverrides(cfg Config) []string {
	var args []string
	if cfg.ClipboardCmd != "" {
		args = append(args, "--clipboard-cmd", cfg.ClipboardCmd)
	}
	if cfg.PasteCmd != "" {
		args = append(args, "--paste-cmd", cfg.PasteCmd)
	}
	return args
}

// deliveryFlags holds the transform and sink flags shared by get, smtp and
// prompt.
type deliveryFlags struct {
	hash      *string
	salt      *bool
	pbkdf2    *bool
	tempfile  *string
	clipboard *bool
	paste     *bool
}

func addDeliveryFlags(fs *flag.FlagSet) *deliveryFlags {
	return &deliveryFlags{
		hash:      fs.String("hash", "", "digest the secret (sha256, sha1, md5, ... or base64)"),
		salt:      fs.Bool("salt", false, "salt the digest or derivation with the lookup key"),
		pbkdf2:    fs.Bool("pbkdf2", false, "derive with PBKDF2 instead of the raw secret"),
		tempfile:  fs.String("tempfile", "", "write the secret to this path, erased after 1s"),
		clipboard: fs.Bool("clipboard", false, "copy to clipboard, cleared after 10s"),
		paste:     fs.Bool("paste", false, "copy to clipboard, send paste keystroke, then clear"),
	}
}

func (f *deliveryFlags) spec() transform.Spec {
	return transform.Spec{Hash: *f.hash, Salt: *f.salt, KDF: *f.pbkdf2}
}

// request maps the sink flags to a delivery request. Stdout is the default
// sink when nothing else is requested.
func (f *deliveryFlags) request() sink.Request {
	req := sink.Request{
		TempFile:  *f.tempfile,
		Clipboard: *f.clipboard || *f.paste,
		Paste:     *f.paste,
	}
	req.Stdout = req.TempFile == "" && !req.Clipboard
	return req
}

// fail reports err as a one-line message and returns the exit code.
func fail(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}
