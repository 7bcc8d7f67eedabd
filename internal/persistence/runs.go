package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/engine"
	"github.com/talgya/semester-sim/internal/policy"
)

// Run is the stored header of a population run.
type Run struct {
	ID         string    `db:"id" json:"id"`
	CreatedAt  time.Time `db:"-" json:"created_at"`
	Seed       int64     `db:"seed" json:"seed"`
	Policy     string    `db:"policy" json:"policy"`
	Players    int       `db:"players" json:"players"`
	MeanGPA    float64   `db:"mean_gpa" json:"mean_gpa"`
	Degenerate int       `db:"degenerate" json:"degenerate"`
	Fallbacks  int       `db:"fallbacks" json:"fallbacks"`
	ElapsedMS  int64     `db:"elapsed_ms" json:"elapsed_ms"`
	ConfigJSON string    `db:"config_json" json:"config,omitempty"`

	CreatedUnix int64 `db:"created_at" json:"-"`
}

const runColumns = "id, created_at, seed, policy, players, mean_gpa, degenerate, fallbacks, elapsed_ms, config_json"

type resultRow struct {
	Index       int     `db:"idx"`
	Archetype   string  `db:"archetype"`
	Policy      string  `db:"policy"`
	Midterm     float64 `db:"midterm"`
	Final       float64 `db:"final"`
	TotalScore  float64 `db:"total_score"`
	Grade       string  `db:"grade"`
	GPA         float64 `db:"gpa"`
	Knowledge   float64 `db:"knowledge"`
	Fallbacks   int     `db:"fallbacks"`
	Degenerate  bool    `db:"degenerate"`
	ActionsJSON string  `db:"actions_json"`
}

type weeklyRow struct {
	Week      int     `db:"week"`
	State     string  `db:"state"`
	Action    string  `db:"action"`
	Mood      int     `db:"mood"`
	Energy    int     `db:"energy"`
	Social    int     `db:"social"`
	Knowledge float64 `db:"knowledge"`
	Fallback  bool    `db:"fallback"`
}

type transitionRow struct {
	Index       int    `db:"idx"`
	From        string `db:"from_state"`
	To          string `db:"to_state"`
	WeeksStayed int    `db:"weeks_stayed"`
	Week        int    `db:"week"`
}

// SaveRun stores pop in a single transaction and returns the new run id.
// config is stored as JSON alongside the header; it may be nil.
func (db *DB) SaveRun(pop *engine.Population, config any) (string, error) {
	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	id := uuid.NewString()

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().Unix(), pop.Seed, pop.Policy, len(pop.Results), pop.Stats.MeanGPA,
		pop.Stats.Degenerate, pop.Stats.Fallbacks, pop.Elapsed.Milliseconds(), string(cfgJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	resStmt, err := tx.Preparex(`INSERT INTO results
		(run_id, idx, archetype, policy, midterm, final, total_score, grade, gpa, knowledge,
		 fallbacks, degenerate, actions_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer resStmt.Close()

	weekStmt, err := tx.Preparex(`INSERT INTO weekly
		(run_id, idx, week, state, action, mood, energy, social, knowledge, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer weekStmt.Close()

	trStmt, err := tx.Preparex(`INSERT INTO transitions
		(run_id, idx, seq, from_state, to_state, weeks_stayed, week)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer trStmt.Close()

	for _, r := range pop.Results {
		actionsJSON, _ := json.Marshal(r.Actions)
		_, err := resStmt.Exec(id, r.Index, r.Archetype, r.Policy, r.Midterm, r.Final, r.TotalScore,
			r.Grade, r.GPA, r.Knowledge, r.Fallbacks, r.Degenerate, string(actionsJSON))
		if err != nil {
			return "", fmt.Errorf("insert result %d: %w", r.Index, err)
		}
		for _, w := range r.Weekly {
			_, err := weekStmt.Exec(id, r.Index, w.Week, w.State, string(w.Action),
				w.Mood, w.Energy, w.Social, w.Knowledge, w.Fallback)
			if err != nil {
				return "", fmt.Errorf("insert week %d of %d: %w", w.Week, r.Index, err)
			}
		}
		for seq, t := range r.States {
			_, err := trStmt.Exec(id, r.Index, seq, string(t.From), string(t.To), t.WeeksStayed, t.Week)
			if err != nil {
				return "", fmt.Errorf("insert transition %d of %d: %w", seq, r.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("run saved", "id", id, "players", len(pop.Results), "policy", pop.Policy)
	return id, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].CreatedAt = time.Unix(runs[i].CreatedUnix, 0).UTC()
	}
	return runs, nil
}

// GetRun returns a run header.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.Unix(r.CreatedUnix, 0).UTC()
	return r, nil
}

// Results returns every result of a run ordered by index. Weekly logs are
// not loaded; transitions are.
func (db *DB) Results(runID string) ([]engine.Result, error) {
	if _, err := db.GetRun(runID); err != nil {
		return nil, err
	}
	var rows []resultRow
	err := db.conn.Select(&rows, `SELECT idx, archetype, policy, midterm, final, total_score, grade,
		gpa, knowledge, fallbacks, degenerate, actions_json
		FROM results WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}

	trans, err := db.transitionsByIndex(runID)
	if err != nil {
		return nil, err
	}

	out := make([]engine.Result, len(rows))
	for i, row := range rows {
		var actions []agents.Action
		if err := json.Unmarshal([]byte(row.ActionsJSON), &actions); err != nil {
			return nil, fmt.Errorf("decode actions of %d: %w", row.Index, err)
		}
		out[i] = engine.Result{
			Index:      row.Index,
			Archetype:  row.Archetype,
			Policy:     row.Policy,
			Midterm:    row.Midterm,
			Final:      row.Final,
			TotalScore: row.TotalScore,
			Grade:      row.Grade,
			GPA:        row.GPA,
			Knowledge:  row.Knowledge,
			Actions:    actions,
			States:     trans[row.Index],
			Fallbacks:  row.Fallbacks,
			Degenerate: row.Degenerate,
		}
	}
	return out, nil
}

func (db *DB) transitionsByIndex(runID string) (map[int][]policy.Transition, error) {
	var rows []transitionRow
	err := db.conn.Select(&rows, `SELECT idx, from_state, to_state, weeks_stayed, week
		FROM transitions WHERE run_id = ? ORDER BY idx, seq`, runID)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]policy.Transition)
	for _, r := range rows {
		out[r.Index] = append(out[r.Index], r.transition())
	}
	return out, nil
}

func (r transitionRow) transition() policy.Transition {
	return policy.Transition{
		From:        policy.State(r.From),
		To:          policy.State(r.To),
		WeeksStayed: r.WeeksStayed,
		Week:        r.Week,
	}
}

// Weekly returns the weekly log of one agent. Runs saved without weekly
// logs return an empty slice.
func (db *DB) Weekly(runID string, index int) ([]engine.WeekLog, error) {
	if err := db.checkAgent(runID, index); err != nil {
		return nil, err
	}
	var rows []weeklyRow
	err := db.conn.Select(&rows, `SELECT week, state, action, mood, energy, social, knowledge, fallback
		FROM weekly WHERE run_id = ? AND idx = ? ORDER BY week`, runID, index)
	if err != nil {
		return nil, err
	}
	out := make([]engine.WeekLog, len(rows))
	for i, r := range rows {
		out[i] = engine.WeekLog{
			Week:      r.Week,
			State:     r.State,
			Action:    agents.Action(r.Action),
			Mood:      r.Mood,
			Energy:    r.Energy,
			Social:    r.Social,
			Knowledge: r.Knowledge,
			Fallback:  r.Fallback,
		}
	}
	return out, nil
}

// Result returns one agent's result.
func (db *DB) Result(runID string, index int) (engine.Result, error) {
	if err := db.checkAgent(runID, index); err != nil {
		return engine.Result{}, err
	}
	all, err := db.Results(runID)
	if err != nil {
		return engine.Result{}, err
	}
	for _, r := range all {
		if r.Index == index {
			return r, nil
		}
	}
	return engine.Result{}, fmt.Errorf("agent %d of run %s: %w", index, runID, ErrNotFound)
}

func (db *DB) checkAgent(runID string, index int) error {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM results WHERE run_id = ? AND idx = ?", runID, index); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("agent %d of run %s: %w", index, runID, ErrNotFound)
	}
	return nil
}
