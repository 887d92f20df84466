package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/user"
	"strings"
	"time"

	"github.com/keyfob/keyfob/internal/logging"
	"github.com/keyfob/keyfob/internal/portable"
	"github.com/keyfob/keyfob/internal/sink"
	kfmcp "github.com/keyfob/keyfob/pkg/mcp"
	"github.com/keyfob/keyfob/pkg/schema"
)

func runList(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	query := fs.String("query", "", "jq expression applied to the entry list")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	infos, err := a.lookup.List(ctx)
	if err != nil {
		return fail(err)
	}

	if *query == "" {
		for _, info := range infos {
			fmt.Println(info.DisplayName)
		}
		return 0
	}

	items := make([]any, 0, len(infos))
	for _, info := range infos {
		items = append(items, map[string]any{
			"id":         info.ID,
			"name":       info.DisplayName,
			"created_at": info.CreatedAt.Format(time.RFC3339),
		})
	}
	return printQueryResults(ctx, *query, items)
}

func runGet(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	df := addDeliveryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: keyfob get [flags] <key>")
		return 1
	}
	return getAndDeliver(ctx, fs.Arg(0), df, cfg, logger)
}

// getAndDeliver is the shared tail of get, smtp and prompt: resolve, apply
// the transform, deliver. The payload only reaches a sink after the erasure
// task for that sink is already detached.
func getAndDeliver(ctx context.Context, key string, df *deliveryFlags, cfg Config, logger *slog.Logger) int {
	ctx = logging.WithKeyName(ctx, key)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	secret, err := a.lookup.Get(ctx, key, df.spec())
	if err != nil {
		return fail(err)
	}
	if err := a.deliver(ctx, secret, df.request()); err != nil {
		return fail(err)
	}
	return 0
}

func runSet(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	reader := bufio.NewReader(os.Stdin)
	key := fs.Arg(0)
	if key == "" {
		var err error
		if key, err = readLine(reader, "Key: "); err != nil {
			return fail(err)
		}
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Usage: keyfob set [<key>]")
		return 1
	}
	secret, err := readLine(reader, "Secret: ")
	if err != nil {
		return fail(err)
	}
	if secret == "" {
		return fail(schema.NewError(schema.ErrCodeInvalidParameter, "empty secret"))
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if _, err := a.lookup.Set(logging.WithKeyName(ctx, key), key, []byte(secret)); err != nil {
		return fail(err)
	}
	fmt.Printf("Stored %s\n", key)
	return 0
}

func runDelete(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: keyfob delete <key>...")
		return 1
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	code := 0
	for _, key := range args {
		if err := a.lookup.Delete(logging.WithKeyName(ctx, key), key); err != nil {
			// A missing key is reported and the remaining keys are still
			// processed; anything else aborts.
			if !schema.IsNotFound(err) {
				return fail(err)
			}
			code = fail(err)
			continue
		}
		fmt.Printf("Deleted %s\n", key)
	}
	return code
}

func runLink(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: keyfob link <src> <dst>...")
		return 1
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	src := args[0]
	for _, dst := range args[1:] {
		if _, err := a.lookup.Link(ctx, src, dst); err != nil {
			return fail(err)
		}
		fmt.Printf("Linked %s -> %s\n", dst, src)
	}
	return 0
}

func runUsername(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: keyfob username <domain>")
		return 1
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	names, err := a.lookup.Username(ctx, args[0])
	if err != nil {
		return fail(err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return 0
}

func runSMTP(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("smtp", flag.ExitOnError)
	df := addDeliveryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	key := fs.Arg(0)
	if key == "" {
		u, err := user.Current()
		if err != nil {
			return fail(err)
		}
		key = u.Username
	}
	// An SMTP identity needs a server part to form the attribute triple.
	if !strings.Contains(key, "@") {
		key += "@localhost"
	}
	return getAndDeliver(ctx, key, df, cfg, logger)
}

func runPrompt(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("prompt", flag.ExitOnError)
	df := addDeliveryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	key, ok, err := zenityEntry(ctx)
	if err != nil {
		return fail(err)
	}
	if !ok {
		// Dialog cancelled: clean exit, no partial state.
		return 0
	}

	// A GUI invocation has no useful terminal; without explicit sink flags
	// the secret is pasted into the focused window.
	if *df.tempfile == "" && !*df.clipboard && !*df.paste {
		*df.paste = true
	}
	return getAndDeliver(ctx, key, df, cfg, logger)
}

// zenityEntry asks for a lookup key via a GUI dialog. ok is false when the
// user cancelled.
func zenityEntry(ctx context.Context) (key string, ok bool, err error) {
	if _, err := exec.LookPath("zenity"); err != nil {
		return "", false, schema.NewError(schema.ErrCodeSinkUnavailable,
			"zenity not found").WithCause(err)
	}
	cmd := exec.CommandContext(ctx, "zenity", "--entry", "--title=keyfob", "--text=Key")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimSpace(string(out)), true, nil
}

func runExport(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "write the document to this file instead of stdout")
	query := fs.String("query", "", "jq expression applied to the document")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	doc, err := portable.Export(ctx, a.store, a.sealer, cfg.Ring)
	if err != nil {
		return fail(err)
	}

	if *query != "" {
		return printQueryResults(ctx, *query, doc)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fail(err)
	}
	data = append(data, '\n')
	if *out != "" {
		// Exported secrets are only base64, not sealed.
		if err := os.WriteFile(*out, data, 0o600); err != nil {
			return fail(err)
		}
		return 0
	}
	_, _ = os.Stdout.Write(data)
	return 0
}

func runImport(ctx context.Context, args []string, cfg Config, logger *slog.Logger) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var data []byte
	var err error
	switch path := fs.Arg(0); path {
	case "", "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fail(err)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	n, err := portable.Import(ctx, a.store, a.sealer, cfg.Ring, data)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Imported %d entries\n", n)
	return 0
}

func runMCP(ctx context.Context, cfg Config, logger *slog.Logger) int {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	srv := kfmcp.NewKeyfobServer(kfmcp.KeyfobServerDeps{Lookup: a.lookup, Logger: logger})
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fail(err)
	}
	return 0
}

// parseEraseArgs decodes the argv that sink.EraseArgs (plus the forwarded
// overrides from eraseOverrides) constructed in the parent process. The flag
// names on both sides are the wire contract of the erasure guarantee.
func parseEraseArgs(args []string) (spec sink.EraseSpec, clipboardCmd, pasteCmd string, err error) {
	fs := flag.NewFlagSet("erase", flag.ContinueOnError)
	action := fs.String("action", "", "erase action: file, clipboard, paste")
	delay := fs.Duration("delay", 0, "sleep before erasing")
	target := fs.String("target", "", "file path for the file action")
	clipCmd := fs.String("clipboard-cmd", "", "clipboard utility override")
	typeCmd := fs.String("paste-cmd", "", "keystroke utility override")
	if err := fs.Parse(args); err != nil {
		return sink.EraseSpec{}, "", "", err
	}
	return sink.EraseSpec{Action: *action, Target: *target, Delay: *delay}, *clipCmd, *typeCmd, nil
}

// runEraseTask is the hidden verb executed inside the detached process. It
// never touches the store or the keyring.
func runEraseTask(args []string) int {
	spec, clipboardCmd, pasteCmd, err := parseEraseArgs(args)
	if err != nil {
		return 1
	}

	err = sink.RunErase(spec,
		&sink.ExecClipboard{Command: clipboardCmd},
		&sink.ExecTyper{Command: pasteCmd})
	if err != nil {
		// Detached runs have stdio on the null device; the message still
		// helps when the verb is invoked by hand.
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func printQueryResults(ctx context.Context, query string, input any) int {
	results, err := portable.NewQueryEngine().Eval(ctx, query, input)
	if err != nil {
		return fail(err)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fail(err)
		}
	}
	return 0
}

func readLine(r *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
