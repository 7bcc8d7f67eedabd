// Command semsim plays one population through a semester and prints the
// class report. Results can be stored in SQLite and exported to files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/semester-sim/internal/config"
	"github.com/talgya/semester-sim/internal/engine"
	"github.com/talgya/semester-sim/internal/entropy"
	"github.com/talgya/semester-sim/internal/llm"
	"github.com/talgya/semester-sim/internal/persistence"
	"github.com/talgya/semester-sim/internal/report"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		players    = flag.Int("players", 0, "population size")
		seed       = flag.Int64("seed", 0, "run seed (0 draws one)")
		policyName = flag.String("policy", "", "baseline|conservative|aggressive|casual|fsm")
		workers    = flag.Int("workers", 0, "parallel workers (0 = GOMAXPROCS)")
		dbPath     = flag.String("db", "", "SQLite path; \"-\" disables storage")
		exportDir  = flag.String("export", "", "directory for gpa.csv and weekly.jsonl.zst")
		keepWeekly = flag.Bool("weekly", false, "keep per-week logs")
		top        = flag.Int("top", 5, "leaderboard size")
		bulletin   = flag.Bool("bulletin", false, "print the class bulletin")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	setupLogging(tty, *verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "players":
			cfg.Players = *players
		case "seed":
			cfg.Seed = *seed
		case "policy":
			cfg.Policy = *policyName
		case "workers":
			cfg.Workers = *workers
		case "db":
			cfg.DBPath = *dbPath
		case "export":
			cfg.ExportDir = *exportDir
		case "weekly":
			cfg.KeepWeekly = *keepWeekly
		}
	})
	if cfg.DBPath == "-" {
		cfg.DBPath = ""
	}
	if err := cfg.Check(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runSeed := cfg.Seed
	if runSeed == 0 {
		seeds := entropy.NewClient(os.Getenv("RANDOM_ORG_KEY"))
		runSeed = seeds.Seed(ctx)
		slog.Info("drew run seed", "seed", runSeed, "random_org", seeds.Enabled())
	}

	runner, err := engine.NewRunner(cfg.Engine(runSeed))
	if err != nil {
		slog.Error("invalid run", "error", err)
		os.Exit(2)
	}
	if tty {
		runner.OnResult = progress(os.Stderr, cfg.Players)
	}

	pop, err := runner.Run(ctx)
	if tty {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}

	printReport(os.Stdout, pop, *top)

	runID := ""
	if cfg.DBPath != "" {
		runID, err = store(cfg, pop)
		if err != nil {
			slog.Error("failed to store run", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nstored as run %s in %s\n", runID, cfg.DBPath)
	}
	if cfg.ExportDir != "" {
		if err := report.ExportDir(cfg.ExportDir, pop); err != nil {
			slog.Error("export failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("exported to %s\n", cfg.ExportDir)
	}
	if *bulletin {
		printBulletin(ctx, os.Stdout, runID, pop)
	}
}

func setupLogging(tty, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if tty {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// progress redraws a single status line at most ten times a second.
func progress(w io.Writer, players int) func(int, engine.Result) {
	start := time.Now()
	var last time.Time
	total := humanize.Comma(int64(players))
	return func(done int, _ engine.Result) {
		if done != players && time.Since(last) < 100*time.Millisecond {
			return
		}
		last = time.Now()
		fmt.Fprintf(w, "\r%s / %s players (%s)", humanize.Comma(int64(done)), total, time.Since(start).Round(time.Millisecond))
	}
}

func store(cfg config.Config, pop *engine.Population) (string, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		return "", err
	}
	defer db.Close()
	id, err := db.SaveRun(pop, cfg)
	if err != nil {
		return "", err
	}
	if err := db.SaveMeta("last_run", id); err != nil {
		return "", err
	}
	return id, nil
}

func printReport(w io.Writer, pop *engine.Population, top int) {
	sum := report.Summarize(pop)

	fmt.Fprintf(w, "policy %s, seed %d, %s players in %s\n\n",
		sum.Policy, pop.Seed, humanize.Comma(int64(sum.Players)), pop.Elapsed.Round(time.Millisecond))

	fmt.Fprintf(w, "%-10s %8s %8s %8s %8s\n", "", "mean", "stddev", "min", "max")
	for _, row := range []struct {
		name string
		s    report.Series
	}{
		{"midterm", sum.Midterm},
		{"final", sum.Final},
		{"knowledge", sum.Knowledge},
		{"gpa", sum.GPA},
	} {
		fmt.Fprintf(w, "%-10s %8.2f %8.2f %8.2f %8.2f\n", row.name, row.s.Mean, row.s.StdDev, row.s.Min, row.s.Max)
	}

	grades := make([]string, 0, len(sum.Grades))
	for g, n := range sum.Grades {
		grades = append(grades, fmt.Sprintf("%s:%d", g, n))
	}
	sort.Strings(grades)
	fmt.Fprintf(w, "\ngrades   %s\n", strings.Join(grades, " "))

	actions := make([]string, 0, len(sum.Actions))
	for a, n := range sum.Actions {
		actions = append(actions, fmt.Sprintf("%s:%s", a, humanize.Comma(int64(n))))
	}
	sort.Strings(actions)
	fmt.Fprintf(w, "actions  %s\n", strings.Join(actions, " "))
	if sum.Degenerate > 0 || sum.Fallbacks > 0 {
		fmt.Fprintf(w, "warnings %d ungraded, %d fallback weeks\n", sum.Degenerate, sum.Fallbacks)
	}

	if top <= 0 {
		return
	}
	fmt.Fprintf(w, "\ntop %d\n", top)
	for _, r := range report.Top(pop.Results, top) {
		printResult(w, r)
	}
	fmt.Fprintf(w, "bottom %d\n", top)
	for _, r := range report.Bottom(pop.Results, top) {
		printResult(w, r)
	}

	byArch := report.TopByArchetype(pop.Results, 1)
	names := make([]string, 0, len(byArch))
	for name := range byArch {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "best per archetype\n")
	for _, name := range names {
		for _, r := range byArch[name] {
			printResult(w, r)
		}
	}
}

func printResult(w io.Writer, r engine.Result) {
	fmt.Fprintf(w, "  #%-6d %-8s gpa %.2f %-2s  midterm %5.1f  final %5.1f  knowledge %5.1f\n",
		r.Index, r.Archetype, r.GPA, r.Grade, r.Midterm, r.Final, r.Knowledge)
}

func printBulletin(ctx context.Context, w io.Writer, runID string, pop *engine.Population) {
	data := llm.NewBulletinData(runID, pop.Seed, report.Summarize(pop), pop.Results)
	b := llm.GenerateBulletin(ctx, llm.NewClient(os.Getenv("ANTHROPIC_API_KEY")), data)
	fmt.Fprintf(w, "\n%s\n", b.Content)
}
