package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/keyfob/keyfob/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	verb, args := os.Args[1], os.Args[2:]

	// The hidden erase verb runs inside the detached task: no config, no
	// store, no keyring.
	if verb == "erase" {
		os.Exit(runEraseTask(args))
	}

	// User interrupt during interactive prompts is a clean exit.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		os.Exit(0)
	}()

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := logging.WithVerb(logging.WithRing(context.Background(), cfg.Ring), verb)
	os.Exit(dispatch(ctx, verb, args, cfg, logger))
}

func dispatch(ctx context.Context, verb string, args []string, cfg Config, logger *slog.Logger) int {
	switch verb {
	case "list":
		return runList(ctx, args, cfg, logger)
	case "get", "password":
		return runGet(ctx, args, cfg, logger)
	case "set":
		return runSet(ctx, args, cfg, logger)
	case "delete":
		return runDelete(ctx, args, cfg, logger)
	case "link":
		return runLink(ctx, args, cfg, logger)
	case "username":
		return runUsername(ctx, args, cfg, logger)
	case "smtp":
		return runSMTP(ctx, args, cfg, logger)
	case "prompt":
		return runPrompt(ctx, args, cfg, logger)
	case "export":
		return runExport(ctx, args, cfg, logger)
	case "import":
		return runImport(ctx, args, cfg, logger)
	case "mcp":
		return runMCP(ctx, cfg, logger)
	case "version":
		printVersion()
		return 0
	case "help", "-h", "--help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown verb %q\n\n", verb)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `keyfob - secret retrieval, derivation and bounded-exposure delivery

Usage:
  keyfob list [--query <jq>]
  keyfob get|password [flags] <key>
  keyfob set [<key>]
  keyfob delete <key>...
  keyfob link <src> <dst>...
  keyfob username <domain>
  keyfob smtp [flags] [<user>]
  keyfob prompt [flags]
  keyfob export [--out <file>] [--query <jq>]
  keyfob import <file>
  keyfob mcp
  keyfob version

Delivery flags (get, smtp, prompt):
  --hash <name>      digest the secret (sha256, sha1, md5, ... or base64)
  --salt             salt the digest or derivation with the lookup key
  --pbkdf2           derive with PBKDF2 instead of returning the raw secret
  --tempfile <path>  write to <path>, erased after 1s
  --clipboard        copy to clipboard, cleared after 10s
  --paste            copy to clipboard, paste keystroke after 200ms, then clear
`)
}
