package dq

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/marts-engine/pkg/apperrors"
	"github.com/ekaya-inc/marts-engine/pkg/config"
)

// Defaults holds engine-level defaults applied when a rule omits the
// corresponding parameter.
type Defaults struct {
	ReconcileTolerance decimal.Decimal
}

type notNullParams struct {
	KeyColumn string `yaml:"key_column"`
}

type acceptedValuesParams struct {
	Values    []string `yaml:"values"`
	KeyColumn string   `yaml:"key_column"`
}

type relationshipParams struct {
	To    string `yaml:"to"`
	Field string `yaml:"field"`
}

type boundsParams struct {
	Min       Bound  `yaml:"min"`
	Max       Bound  `yaml:"max"`
	KeyColumn string `yaml:"key_column"`
}

type reconcileParams struct {
	ParentKey    string  `yaml:"parent_key"`
	ParentColumn string  `yaml:"parent_column"`
	Child        string  `yaml:"child"`
	ChildKey     string  `yaml:"child_key"`
	ChildColumn  string  `yaml:"child_column"`
	Tolerance    float64 `yaml:"tolerance"`
}

type stateConsistencyParams struct {
	ParentKey     string `yaml:"parent_key"`
	StatusColumn  string `yaml:"status_column"`
	TerminalValue string `yaml:"terminal_value"`
	Child         string `yaml:"child"`
	ChildKey      string `yaml:"child_key"`
	ChildStatus   string `yaml:"child_status"`
	OpenValue     string `yaml:"open_value"`
}

type chronologicalParams struct {
	Columns   []string `yaml:"columns"`
	KeyColumn string   `yaml:"key_column"`
}

type customSQLParams struct {
	Query string         `yaml:"query"`
	Args  map[string]any `yaml:"args"`
}

// FromConfig builds one rule from its project file declaration.
func FromConfig(cfg config.RuleConfig, defaults Defaults, runner QueryRunner) (Rule, error) {
	severity, err := ParseSeverity(cfg.Severity)
	if err != nil {
		return nil, fmt.Errorf("%w: rule %s: %v", apperrors.ErrInvalidRule, cfg.ID, err)
	}

	decode := func(out any) error {
		if cfg.Params.IsZero() {
			return nil
		}
		if err := cfg.Params.Decode(out); err != nil {
			return fmt.Errorf("%w: rule %s: bad params: %v", apperrors.ErrInvalidRule, cfg.ID, err)
		}
		return nil
	}

	switch cfg.Type {
	case "unique":
		return NewUniqueRule(cfg.ID, severity, cfg.Model, cfg.Column), nil

	case "not_null":
		var p notNullParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return NewNotNullRule(cfg.ID, severity, cfg.Model, cfg.Column, p.KeyColumn), nil

	case "accepted_values":
		var p acceptedValuesParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("%w: rule %s: accepted_values requires a values list", apperrors.ErrInvalidRule, cfg.ID)
		}
		return NewAcceptedValuesRule(cfg.ID, severity, cfg.Model, cfg.Column, p.KeyColumn, p.Values), nil

	case "relationship":
		var p relationshipParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.To == "" || p.Field == "" {
			return nil, fmt.Errorf("%w: rule %s: relationship requires to and field", apperrors.ErrInvalidRule, cfg.ID)
		}
		return NewRelationshipRule(cfg.ID, severity, cfg.Model, cfg.Column, p.To, p.Field), nil

	case "values_in_range":
		var p boundsParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return NewValuesInRangeRule(cfg.ID, severity, cfg.Model, cfg.Column, p.KeyColumn, p.Min, p.Max), nil

	case "string_length_bounds":
		var p boundsParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		return NewStringLengthBoundsRule(cfg.ID, severity, cfg.Model, cfg.Column, p.KeyColumn, p.Min, p.Max), nil

	case "reconcile_aggregate":
		var p reconcileParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.Child == "" || p.ChildKey == "" || p.ChildColumn == "" || p.ParentKey == "" || p.ParentColumn == "" {
			return nil, fmt.Errorf("%w: rule %s: reconcile_aggregate requires parent and child columns", apperrors.ErrInvalidRule, cfg.ID)
		}
		tolerance := defaults.ReconcileTolerance
		if p.Tolerance > 0 {
			tolerance = decimal.NewFromFloat(p.Tolerance)
		}
		return NewReconcileAggregateRule(cfg.ID, severity,
			cfg.Model, p.ParentKey, p.ParentColumn,
			p.Child, p.ChildKey, p.ChildColumn, tolerance), nil

	case "state_consistency":
		var p stateConsistencyParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.ParentKey == "" || p.StatusColumn == "" || p.Child == "" || p.ChildKey == "" || p.ChildStatus == "" {
			return nil, fmt.Errorf("%w: rule %s: state_consistency requires parent and child state columns", apperrors.ErrInvalidRule, cfg.ID)
		}
		return NewStateConsistencyRule(cfg.ID, severity,
			cfg.Model, p.ParentKey, p.StatusColumn, p.TerminalValue,
			p.Child, p.ChildKey, p.ChildStatus, p.OpenValue), nil

	case "chronological":
		var p chronologicalParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if len(p.Columns) < 2 {
			return nil, fmt.Errorf("%w: rule %s: chronological requires at least two columns", apperrors.ErrInvalidRule, cfg.ID)
		}
		return NewChronologicalRule(cfg.ID, severity, cfg.Model, p.KeyColumn, p.Columns), nil

	case "custom_sql":
		var p customSQLParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		if p.Query == "" {
			return nil, fmt.Errorf("%w: rule %s: custom_sql requires a query", apperrors.ErrInvalidRule, cfg.ID)
		}
		return NewCustomSQLRule(cfg.ID, severity, p.Query, p.Args, runner)

	default:
		return nil, fmt.Errorf("%w: rule %s has unknown type %q", apperrors.ErrInvalidRule, cfg.ID, cfg.Type)
	}
}

// BuildRules builds the full rule suite from the project file.
func BuildRules(cfgs []config.RuleConfig, defaults Defaults, runner QueryRunner) ([]Rule, error) {
	rules := make([]Rule, 0, len(cfgs))
	for _, cfg := range cfgs {
		rule, err := FromConfig(cfg, defaults, runner)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
