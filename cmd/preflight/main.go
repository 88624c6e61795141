// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hamed0406/sitecheck/internal/config"
	"github.com/hamed0406/sitecheck/internal/targets"
)

func main() {
	configPath := flag.String("config", "", "config file (yaml/json); defaults to $SITECHECK_CONFIG")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err.Error())
	}
	ok(fmt.Sprintf("config valid (timeout=%s workers=%d ordered=%v)", cfg.Timeout, cfg.Workers, cfg.Ordered))

	if len(cfg.AdminAPIKeys) == 0 {
		warn("ADMIN_API_KEYS is empty; anyone can trigger a batch.")
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		warn("no API keys configured; read routes are open.")
	}

	switch {
	case cfg.DatabaseURL != "":
		ok("DATABASE_URL present (postgres store)")
	case cfg.SQLitePath != "":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			fail("SQLITE_PATH directory not writable: " + err.Error())
		}
		ok("SQLITE_PATH=" + cfg.SQLitePath)
	default:
		warn("no DATABASE_URL or SQLITE_PATH; batches are kept in memory only.")
	}

	if cfg.TargetsFile != "" {
		list, err := targets.ReadFile(cfg.TargetsFile)
		if err != nil {
			fail("SITECHECK_TARGETS_FILE: " + err.Error())
		}
		ok(fmt.Sprintf("SITECHECK_TARGETS_FILE lists %d url(s)", len(list)))
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; CORS allows any origin.")
	} else {
		ok(fmt.Sprintf("ALLOWED_ORIGINS=%v", cfg.AllowedOrigins))
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fail("LOG_DIR not writable: " + err.Error())
	}
	ok("LOG_DIR=" + cfg.LogDir)

	ok("preflight passed")
}
