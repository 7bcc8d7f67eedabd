package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/semester-sim/internal/config"
	"github.com/talgya/semester-sim/internal/engine"
	"github.com/talgya/semester-sim/internal/llm"
	"github.com/talgya/semester-sim/internal/persistence"
	"github.com/talgya/semester-sim/internal/report"
)

const (
	maxLaunchBody  = 64 * 1024
	maxRunningJobs = 2
)

// Job tracks an admin-launched run.
type Job struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // "running", "done", "failed"
	Players   int       `json:"players"`
	Done      int       `json:"done"`
	Seed      int64     `json:"seed"`
	Policy    string    `json:"policy"`
	RunID     string    `json:"run_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

type jobTable struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func newJobTable() *jobTable {
	return &jobTable{jobs: make(map[string]*Job)}
}

func (t *jobTable) add(j *Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[j.ID] = j
}

func (t *jobTable) update(id string, fn func(*Job)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		fn(j)
	}
}

func (t *jobTable) get(id string) (Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

func (t *jobTable) running() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, j := range t.jobs {
		if j.Status == "running" {
			n++
		}
	}
	return n
}

// handleLaunch validates a run configuration and starts it in the
// background. The body is a JSON object using the config file's keys;
// omitted keys fall back to the server defaults.
func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLaunchBody))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}
	cfg := s.Defaults
	if len(strings.TrimSpace(string(body))) > 0 {
		// JSON is YAML, so the config schema applies as-is.
		if err := config.Validate(body); err != nil {
			http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := json.Unmarshal(body, &cfg); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if err := cfg.Check(); err != nil {
		http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
		return
	}
	if s.jobs.running() >= maxRunningJobs {
		http.Error(w, "too many running jobs", http.StatusServiceUnavailable)
		return
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = s.Seeds.Seed(r.Context())
	}
	runner, err := engine.NewRunner(cfg.Engine(seed))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := &Job{
		ID:        uuid.NewString(),
		Status:    "running",
		Players:   cfg.Players,
		Seed:      seed,
		Policy:    runner.Config().Policy,
		StartedAt: time.Now(),
	}
	accepted := *job
	s.jobs.add(job)
	slog.Info("run launched", "job", job.ID, "players", cfg.Players, "policy", cfg.Policy, "seed", seed)

	go s.runJob(job.ID, runner, cfg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, accepted)
}

// progressEvery spaces progress events so a large population does not
// flood stream clients.
func progressEvery(players int) int {
	if n := players / 50; n > 1 {
		return n
	}
	return 1
}

func (s *Server) runJob(jobID string, runner *engine.Runner, cfg config.Config) {
	players := runner.Config().Players
	step := progressEvery(players)
	runner.OnResult = func(done int, res engine.Result) {
		s.jobs.update(jobID, func(j *Job) { j.Done = done })
		if done%step == 0 || done == players {
			s.hub.Broadcast(Event{Type: EventProgress, Job: jobID, Done: done, Players: players, GPA: res.GPA})
		}
	}

	fail := func(err error) {
		slog.Error("run failed", "job", jobID, "error", err)
		s.jobs.update(jobID, func(j *Job) {
			j.Status = "failed"
			j.Error = err.Error()
		})
		s.hub.Broadcast(Event{Type: EventFailed, Job: jobID, Error: err.Error()})
	}

	pop, err := runner.Run(context.Background())
	if err != nil {
		fail(err)
		return
	}
	runID, err := s.DB.SaveRun(pop, cfg)
	if err != nil {
		fail(fmt.Errorf("save: %w", err))
		return
	}
	if err := s.DB.SaveMeta("last_run", runID); err != nil {
		slog.Warn("save last_run failed", "error", err)
	}

	s.jobs.update(jobID, func(j *Job) {
		j.Status = "done"
		j.RunID = runID
	})
	s.hub.Broadcast(Event{Type: EventComplete, Job: jobID, RunID: runID, Players: players, GPA: pop.Stats.MeanGPA})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/"), "/")
	job, ok := s.jobs.get(id)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, job)
}

// summarize rebuilds a population view from stored results.
func summarize(policy string, results []engine.Result) report.Summary {
	return report.Summarize(&engine.Population{
		Policy:  policy,
		Results: results,
		Stats:   engine.Aggregate(results),
	})
}

func bulletinData(run persistence.Run, results []engine.Result) *llm.BulletinData {
	return llm.NewBulletinData(run.ID, run.Seed, summarize(run.Policy, results), results)
}
