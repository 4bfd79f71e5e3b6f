package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Project is the declarative description of a transformation project:
// the raw sources it reads, the models it builds, and the data quality
// rules it evaluates after building.
type Project struct {
	Name    string         `yaml:"name"`
	Sources []SourceConfig `yaml:"sources"`
	Models  []ModelConfig  `yaml:"models"`
	Rules   []RuleConfig   `yaml:"rules"`
}

// SourceConfig describes one raw relation exposed by the source adapter.
type SourceConfig struct {
	Name      string           `yaml:"name"`
	Relation  string           `yaml:"relation"`
	LoadedAt  string           `yaml:"loaded_at"`
	Freshness *FreshnessConfig `yaml:"freshness"`

	// Connection points the freshness check at an external source database.
	// When nil the source lives in the warehouse itself.
	Connection *SourceConnection `yaml:"connection"`
}

// SourceConnection identifies an external source database.
type SourceConnection struct {
	Driver string `yaml:"driver"` // postgres | sqlserver
	DSN    string `yaml:"-"`
	DSNEnv string `yaml:"dsn_env"` // env var holding the DSN (secret, never in YAML)
}

// FreshnessConfig holds the staleness thresholds for a source.
type FreshnessConfig struct {
	WarnAfter  Duration `yaml:"warn_after"`
	ErrorAfter Duration `yaml:"error_after"`
}

// ModelConfig describes one model in the DAG.
type ModelConfig struct {
	Name            string   `yaml:"name"`
	Materialization string   `yaml:"materialization"` // view | table | incremental | ephemeral
	DependsOn       []string `yaml:"depends_on"`
	SQL             string   `yaml:"sql"` // view definition body, required for views

	// Incremental settings
	UniqueKey  []string `yaml:"unique_key"`
	DateColumn string   `yaml:"date_column"`

	// ClusterBy is advisory to the warehouse for scan pruning; identifiers
	// only, validated before use.
	ClusterBy []string `yaml:"cluster_by"`
}

// RuleConfig is one data quality rule as declared in the project file.
// Params is left as a raw YAML node; the dq package decodes it into the
// rule-specific parameter struct.
type RuleConfig struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Model    string    `yaml:"model"`
	Column   string    `yaml:"column"`
	Severity string    `yaml:"severity"`
	Params   yaml.Node `yaml:"params"`
}

// Duration wraps time.Duration with YAML unmarshalling from strings like "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadProject reads and validates a project file.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var project Project
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}

	if err := project.validate(); err != nil {
		return nil, fmt.Errorf("invalid project file: %w", err)
	}

	project.resolveSecrets()

	return &project, nil
}

func (p *Project) validate() error {
	seen := make(map[string]bool)
	for _, m := range p.Models {
		if m.Name == "" {
			return fmt.Errorf("model with empty name")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name %q", m.Name)
		}
		seen[m.Name] = true

		switch m.Materialization {
		case "view":
			if m.SQL == "" {
				return fmt.Errorf("view model %q has no sql", m.Name)
			}
		case "incremental":
			if len(m.UniqueKey) == 0 {
				return fmt.Errorf("incremental model %q has no unique_key", m.Name)
			}
			if m.DateColumn == "" {
				return fmt.Errorf("incremental model %q has no date_column", m.Name)
			}
		case "table", "ephemeral":
		default:
			return fmt.Errorf("model %q has unknown materialization %q", m.Name, m.Materialization)
		}
	}

	ruleIDs := make(map[string]bool)
	for _, r := range p.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule with empty id")
		}
		if ruleIDs[r.ID] {
			return fmt.Errorf("duplicate rule id %q", r.ID)
		}
		ruleIDs[r.ID] = true
		if r.Severity != "error" && r.Severity != "warn" {
			return fmt.Errorf("rule %q has invalid severity %q", r.ID, r.Severity)
		}
	}

	for _, s := range p.Sources {
		if s.Name == "" || s.Relation == "" {
			return fmt.Errorf("source with empty name or relation")
		}
		if s.LoadedAt == "" {
			return fmt.Errorf("source %q has no loaded_at column", s.Name)
		}
	}

	return nil
}

// resolveSecrets pulls external connection DSNs from the environment.
func (p *Project) resolveSecrets() {
	for i := range p.Sources {
		conn := p.Sources[i].Connection
		if conn != nil && conn.DSNEnv != "" {
			conn.DSN = os.Getenv(conn.DSNEnv)
		}
	}
}

// Model returns the model config with the given name.
func (p *Project) Model(name string) (*ModelConfig, bool) {
	for i := range p.Models {
		if p.Models[i].Name == name {
			return &p.Models[i], true
		}
	}
	return nil, false
}
