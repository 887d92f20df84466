package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keyfob/keyfob/internal/logging"
)

// Config holds all keyfob configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	Ring         string `json:"ring"`
	DBPath       string `json:"db_path"`
	LogLevel     string `json:"log_level"`
	ClipboardCmd string `json:"clipboard_cmd"`
	PasteCmd     string `json:"paste_cmd"`
}

func defaultConfig() Config {
	return Config{
		Ring:     "default",
		DBPath:   filepath.Join(keyfobDir(), "keyfob.db"),
		LogLevel: "warn",
	}
}

func keyfobDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keyfob"
	}
	return filepath.Join(home, ".keyfob")
}

func settingsPath() string {
	return filepath.Join(keyfobDir(), "settings.json")
}

func saltPath() string {
	return filepath.Join(keyfobDir(), "vault.salt")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("KEYFOB_RING"); v != "" {
		cfg.Ring = v
	}
	if v := os.Getenv("KEYFOB_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("KEYFOB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KEYFOB_CLIPBOARD_CMD"); v != "" {
		cfg.ClipboardCmd = v
	}
	if v := os.Getenv("KEYFOB_PASTE_CMD"); v != "" {
		cfg.PasteCmd = v
	}

	return cfg
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
