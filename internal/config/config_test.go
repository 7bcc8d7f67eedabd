package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "semsim.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Players != 300 || cfg.Policy != "fsm" || cfg.Degree != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
players: 40
seed: 1234
workers: 2
policy: aggressive
focus: socialize
archetypes: [bubu, yier]
degree: 1.5
keep_weekly: true
api:
  port: 9090
  admin_key: s3cret
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Players != 40 || cfg.Seed != 1234 || cfg.Workers != 2 || cfg.Policy != "aggressive" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Degree != 1.5 || !cfg.KeepWeekly || len(cfg.Archetypes) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.API.Port != 9090 || cfg.API.AdminKey != "s3cret" {
		t.Fatalf("unexpected api config: %+v", cfg.API)
	}
	// Unset keys keep their defaults.
	if cfg.DBPath != "data/semsim.db" {
		t.Fatalf("expected default db path, got=%q", cfg.DBPath)
	}

	ec := cfg.Engine(77)
	if ec.Seed != 77 || ec.PolicyOptions.Focus != "socialize" || ec.Players != 40 {
		t.Fatalf("unexpected engine config: %+v", ec)
	}
}

func TestSchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":       "players: 10\nspeed: 3\n",
		"bad policy":        "policy: yolo\n",
		"zero players":      "players: 0\n",
		"fractional":        "players: 2.5\n",
		"bad archetype":     "archetypes: [bubu, nobody]\n",
		"non-positive deg":  "degree: 0\n",
		"port out of range": "api:\n  port: 70000\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SEMSIM_SEED", "99")
	t.Setenv("SEMSIM_PLAYERS", "12")
	t.Setenv("SEMSIM_WORKERS", "3")
	t.Setenv("SEMSIM_DB", "/tmp/x.db")
	t.Setenv("SEMSIM_POLICY", "casual")

	cfg, err := Load(writeConfig(t, "players: 500\npolicy: baseline\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Seed != 99 || cfg.Players != 12 || cfg.Workers != 3 {
		t.Fatalf("expected env ints applied, got=%+v", cfg)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.Policy != "casual" {
		t.Fatalf("expected env strings applied, got=%+v", cfg)
	}
}

func TestEnvOverridesChecked(t *testing.T) {
	t.Setenv("SEMSIM_POLICY", "yolo")
	if _, err := Load(""); err == nil {
		t.Fatal("expected unknown policy from env to fail")
	}
	t.Setenv("SEMSIM_POLICY", "")
	t.Setenv("SEMSIM_PLAYERS", "many")
	if _, err := Load(""); err == nil {
		t.Fatal("expected bad integer to fail")
	}
}
