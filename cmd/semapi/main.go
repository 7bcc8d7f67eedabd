// Command semapi serves stored semester runs over HTTP and launches new
// runs through the admin endpoint.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/semester-sim/internal/api"
	"github.com/talgya/semester-sim/internal/config"
	"github.com/talgya/semester-sim/internal/entropy"
	"github.com/talgya/semester-sim/internal/llm"
	"github.com/talgya/semester-sim/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	llmClient := llm.NewClient(os.Getenv("ANTHROPIC_API_KEY")).WithModel(os.Getenv("SEMSIM_LLM_MODEL"))
	if llmClient.Enabled() {
		slog.Info("LLM advice enabled (Haiku)")
	} else {
		slog.Info("LLM advice disabled (no ANTHROPIC_API_KEY), using heuristics")
	}

	if cfg.API.AdminKey == "" {
		slog.Warn("SEMSIM_ADMIN_KEY not set, POST endpoints disabled")
	}

	server := &api.Server{
		DB:          db,
		LLM:         llmClient,
		Seeds:       entropy.NewClient(os.Getenv("RANDOM_ORG_KEY")),
		Defaults:    cfg,
		Port:        cfg.API.Port,
		AdminKey:    cfg.API.AdminKey,
		CORSOrigins: cfg.API.CORSOrigins,
	}
	server.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	fmt.Println("semapi stopped.")
}
