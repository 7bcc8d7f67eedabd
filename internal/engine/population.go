package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/policy"
	"github.com/talgya/semester-sim/internal/scoring"
)

// Config describes a population run.
type Config struct {
	Players       int
	Seed          int64
	Workers       int // <= 0 means GOMAXPROCS
	Policy        string
	PolicyOptions policy.Options
	Archetypes    []string // empty means every archetype
	Degree        float64  // <= 0 means 1
	KeepWeekly    bool

	// Optional overrides; nil selects the defaults of NewSemester.
	Actions []agents.Action
	Scorer  scoring.Scorer
	Actor   Actor
}

// ErrNoPlayers is returned by NewRunner for a non-positive population size.
var ErrNoPlayers = errors.New("population needs at least one player")

// Runner plays a population of independent agents through one semester each.
type Runner struct {
	cfg      Config
	semester *Semester
	spawner  *agents.Spawner

	// OnResult, when set, is called once per finished agent. Calls are
	// serialized but arrive in completion order, not index order.
	OnResult func(done int, r Result)
}

// NewRunner validates cfg and returns a runner for it.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Players <= 0 {
		return nil, ErrNoPlayers
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Degree <= 0 || math.IsNaN(cfg.Degree) || math.IsInf(cfg.Degree, 0) {
		cfg.Degree = 1
	}
	// Fail on an unknown policy before any agent runs.
	if _, err := policy.New(cfg.Policy, rand.New(rand.NewSource(cfg.Seed)), cfg.PolicyOptions); err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	spawner, err := agents.NewSpawner(rand.New(rand.NewSource(cfg.Seed)), cfg.Archetypes)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	sem := NewSemester()
	sem.Degree = cfg.Degree
	if len(cfg.Actions) > 0 {
		sem.Actions = cfg.Actions
	}
	if cfg.Scorer != nil {
		sem.Scorer = cfg.Scorer
	}
	if cfg.Actor != nil {
		sem.Actor = cfg.Actor
	}
	return &Runner{cfg: cfg, semester: sem, spawner: spawner}, nil
}

// Config returns the normalized configuration.
func (r *Runner) Config() Config { return r.cfg }

// AgentSeed derives the random seed for agent index i of a run seeded with
// seed. Every agent draws its archetype, policy randomness and exam noise
// from its own source, so results do not depend on the worker count.
func AgentSeed(seed int64, i int) int64 {
	return int64(uint64(seed) + uint64(i+1)*0x9E3779B97F4A7C15)
}

// RunOne plays agent index i of the population.
func (r *Runner) RunOne(i int) Result {
	rng := rand.New(rand.NewSource(AgentSeed(r.cfg.Seed, i)))
	a := r.spawner.Draw(rng)
	a.Name = fmt.Sprintf("player-%d", i)
	// Validated in NewRunner.
	pol, _ := policy.New(r.cfg.Policy, rng, r.cfg.PolicyOptions)
	res := r.semester.Run(i, a, pol, rng)
	if !r.cfg.KeepWeekly {
		res.Weekly = nil
	}
	return res
}

// Run plays every agent and returns the results ordered by index. A
// cancelled context stops scheduling new agents and returns ctx.Err().
func (r *Runner) Run(ctx context.Context) (*Population, error) {
	start := time.Now()
	results := make([]Result, r.cfg.Players)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := 0; i < r.cfg.Players; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.RunOne(i)
			results[i] = res
			if r.OnResult != nil {
				mu.Lock()
				done++
				r.OnResult(done, res)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pop := &Population{
		Seed:    r.cfg.Seed,
		Policy:  policyLabel(r.cfg),
		Results: results,
		Elapsed: time.Since(start),
	}
	pop.Stats = Aggregate(results)
	slog.Info("population complete",
		"players", r.cfg.Players,
		"policy", pop.Policy,
		"workers", r.cfg.Workers,
		"mean_gpa", pop.Stats.MeanGPA,
		"elapsed", pop.Elapsed.Round(time.Millisecond),
	)
	return pop, nil
}

func policyLabel(cfg Config) string {
	if cfg.Policy == "" {
		return policy.KindBaseline
	}
	return cfg.Policy
}

// Population is the outcome of a population run.
type Population struct {
	Seed    int64         `json:"seed"`
	Policy  string        `json:"policy"`
	Results []Result      `json:"results"`
	Stats   Stats         `json:"stats"`
	Elapsed time.Duration `json:"elapsed"`
}

// Stats holds the ordered score series of a population plus a few totals.
type Stats struct {
	Players    int       `json:"players"`
	Degenerate int       `json:"degenerate"`
	Fallbacks  int       `json:"fallbacks"` // weeks where rest was substituted
	MeanGPA    float64   `json:"mean_gpa"`
	Midterm    []float64 `json:"midterm"`
	Final      []float64 `json:"final"`
	Knowledge  []float64 `json:"knowledge"`
	GPA        []float64 `json:"gpa"`
}

// Aggregate collects the score series from results, preserving their order.
func Aggregate(results []Result) Stats {
	st := Stats{
		Players:   len(results),
		Midterm:   make([]float64, len(results)),
		Final:     make([]float64, len(results)),
		Knowledge: make([]float64, len(results)),
		GPA:       make([]float64, len(results)),
	}
	sum := 0.0
	for i, r := range results {
		st.Midterm[i] = r.Midterm
		st.Final[i] = r.Final
		st.Knowledge[i] = r.Knowledge
		st.GPA[i] = r.GPA
		sum += r.GPA
		if r.Degenerate {
			st.Degenerate++
		}
		st.Fallbacks += r.Fallbacks
	}
	if len(results) > 0 {
		st.MeanGPA = sum / float64(len(results))
	}
	return st
}
