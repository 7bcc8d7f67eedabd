// Command semctl drives a running semapi: it waits for the API, launches a
// run with optional overrides, follows the job and prints the bulletin.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/semester-sim/internal/client"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		players = flag.Int("players", 0, "population size (0 = server default)")
		seed    = flag.Int64("seed", 0, "run seed (0 = server default)")
		policy  = flag.String("policy", "", "policy kind (empty = server default)")
		weekly  = flag.Bool("weekly", false, "keep per-week logs")
		list    = flag.Bool("list", false, "list recent runs and exit")
	)
	flag.Parse()

	apiURL := envOrDefault("SEMSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("SEMSIM_ADMIN_KEY")
	timeout := time.Duration(envIntOrDefault("SEMSIM_TIMEOUT", 600)) * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := client.New(apiURL, adminKey)

	// The API may still be starting when both are launched together.
	if err := c.WaitReady(ctx, 30*time.Second); err != nil {
		slog.Error("API unavailable", "error", err)
		os.Exit(1)
	}

	if *list {
		runs, err := c.Runs(ctx, 20)
		if err != nil {
			slog.Error("list failed", "error", err)
			os.Exit(1)
		}
		for _, r := range runs {
			fmt.Printf("%s  %-12s %8s players  gpa %.2f  %s\n",
				r.ID, r.Policy, humanize.Comma(int64(r.Players)), r.MeanGPA, humanize.Time(r.CreatedAt))
		}
		return
	}

	if adminKey == "" {
		slog.Error("SEMSIM_ADMIN_KEY is required to launch runs")
		os.Exit(1)
	}

	overrides := map[string]any{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "players":
			overrides["players"] = *players
		case "seed":
			overrides["seed"] = *seed
		case "policy":
			overrides["policy"] = *policy
		case "weekly":
			overrides["keep_weekly"] = *weekly
		}
	})

	job, err := c.Launch(ctx, overrides)
	if err != nil {
		slog.Error("launch failed", "error", err)
		os.Exit(1)
	}
	slog.Info("run launched", "job", job.ID, "players", job.Players, "policy", job.Policy, "seed", job.Seed)

	done, err := c.WaitJob(ctx, job.ID, time.Second)
	if err != nil {
		slog.Error("run did not complete", "job", job.ID, "error", err)
		os.Exit(1)
	}
	slog.Info("run complete", "run", done.RunID, "elapsed", time.Since(done.StartedAt).Round(time.Millisecond))

	b, err := c.Bulletin(ctx, done.RunID)
	if err != nil {
		slog.Error("bulletin failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(b.Content)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
