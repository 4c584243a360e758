package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried in order relative to the project root; every existing
// file is loaded. godotenv never
// overrides variables already present in the process environment, so earlier
// files and the real environment win.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles(root string) {
	for _, name := range envFiles {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load environment file", "path", path, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", path)
	}
}
