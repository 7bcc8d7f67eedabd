// Package config loads run configuration from YAML, validates it against an
// embedded JSON schema and applies SEMSIM_* environment overrides.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/semester-sim/internal/agents"
	"github.com/talgya/semester-sim/internal/engine"
	"github.com/talgya/semester-sim/internal/policy"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "semsim://config.schema.json"

// Config is the full configuration of a run and its surfaces.
type Config struct {
	Players    int      `yaml:"players" json:"players"`
	Seed       int64    `yaml:"seed" json:"seed"` // 0 draws a seed from the entropy source
	Workers    int      `yaml:"workers" json:"workers"`
	Policy     string   `yaml:"policy" json:"policy"`
	FSMRule    string   `yaml:"fsm_rule" json:"fsm_rule,omitempty"`
	Focus      string   `yaml:"focus" json:"focus,omitempty"`
	Archetypes []string `yaml:"archetypes" json:"archetypes,omitempty"`
	Degree     float64  `yaml:"degree" json:"degree"`
	KeepWeekly bool     `yaml:"keep_weekly" json:"keep_weekly"`
	DBPath     string   `yaml:"db_path" json:"db_path,omitempty"`
	ExportDir  string   `yaml:"export_dir" json:"export_dir,omitempty"`
	API        API      `yaml:"api" json:"api"`
}

// API configures the HTTP server.
type API struct {
	Port        int      `yaml:"port" json:"port"`
	AdminKey    string   `yaml:"admin_key" json:"-"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins,omitempty"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Players: 300,
		Policy:  policy.KindFSM,
		FSMRule: policy.RuleCalendar,
		Degree:  1,
		DBPath:  "data/semsim.db",
		API:     API{Port: 8080},
	}
}

// Load reads path (if non-empty), validates it and applies environment
// overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := Validate(b); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Check()
}

var compiled = mustCompile()

func mustCompile() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	return c.MustCompile(schemaURL)
}

// Validate checks a YAML document against the configuration schema.
func Validate(doc []byte) error {
	var raw any
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON types.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("config is not JSON-compatible: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return compiled.Validate(v)
}

func (c *Config) applyEnv() error {
	var err error
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("%s: %w", key, perr)
				return
			}
			*dst = n
		}
	}
	if v := os.Getenv("SEMSIM_SEED"); v != "" {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("SEMSIM_SEED: %w", perr)
		}
		c.Seed = n
	}
	setInt("SEMSIM_PLAYERS", &c.Players)
	setInt("SEMSIM_WORKERS", &c.Workers)
	setInt("SEMSIM_API_PORT", &c.API.Port)
	c.DBPath = envOrDefault("SEMSIM_DB", c.DBPath)
	c.Policy = envOrDefault("SEMSIM_POLICY", c.Policy)
	c.API.AdminKey = envOrDefault("SEMSIM_ADMIN_KEY", c.API.AdminKey)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.API.CORSOrigins = strings.Split(v, ",")
	}
	return err
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Check validates the merged configuration, including values that came from
// the environment and so never passed through the schema.
func (c Config) Check() error {
	if c.Players <= 0 {
		return fmt.Errorf("players must be positive, got %d", c.Players)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Degree <= 0 {
		return fmt.Errorf("degree must be positive, got %v", c.Degree)
	}
	if _, err := policy.New(c.Policy, rand.New(rand.NewSource(0)), c.PolicyOptions()); err != nil {
		return err
	}
	for _, a := range c.Archetypes {
		if _, err := agents.Lookup(a); err != nil {
			return err
		}
	}
	return nil
}

// PolicyOptions returns the policy tuning implied by the configuration.
func (c Config) PolicyOptions() policy.Options {
	return policy.Options{Focus: agents.Action(c.Focus), FSMRule: c.FSMRule}
}

// Engine returns the population configuration. seed replaces Seed so the
// caller can resolve a zero seed first.
func (c Config) Engine(seed int64) engine.Config {
	return engine.Config{
		Players:       c.Players,
		Seed:          seed,
		Workers:       c.Workers,
		Policy:        c.Policy,
		PolicyOptions: c.PolicyOptions(),
		Archetypes:    c.Archetypes,
		Degree:        c.Degree,
		KeepWeekly:    c.KeepWeekly,
	}
}
