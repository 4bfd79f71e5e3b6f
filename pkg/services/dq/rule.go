// Package dq implements the data quality test engine: declarative rules
// evaluated over built relations, with severity classification and run-level
// aggregation.
package dq

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Severity classifies a violation as blocking or advisory.
type Severity string

const (
	// SeverityError blocks promotion of the run when the rule has violations.
	SeverityError Severity = "error"
	// SeverityWarn is logged but never blocks.
	SeverityWarn Severity = "warn"
)

// ParseSeverity validates a severity string from configuration.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarn:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("invalid severity %q", s)
	}
}

// Violation is one violating row (or row group) found by a rule.
type Violation struct {
	RuleID   string
	Severity Severity
	Key      string // affected key(s), e.g. "order_key=42"
	Detail   string
}

// ResultStatus distinguishes "rule ran" outcomes from execution faults.
type ResultStatus string

const (
	// ResultPassed means the rule ran and found no violations.
	ResultPassed ResultStatus = "passed"
	// ResultViolated means the rule ran and returned its full violating set.
	ResultViolated ResultStatus = "violated"
	// ResultExecFailed means the rule itself failed to execute. This is
	// reported distinctly from violations and does not block other rules.
	ResultExecFailed ResultStatus = "exec_failed"
)

// RuleResult is the complete outcome of evaluating one rule. A result is
// never partial: either the full violating set is present, or Err is set.
type RuleResult struct {
	RuleID     string
	Severity   Severity
	Status     ResultStatus
	Violations []Violation
	Err        error
	Duration   time.Duration
}

// Row is a generic relation row keyed by column name.
type Row map[string]any

// Relation is a named, fully materialized row set as of a single consistent
// read.
type Relation struct {
	Name string
	Rows []Row
}

// Rule is a predicate over one or more relations returning the set of
// violating rows. An empty set is a pass. An error return means the rule
// failed to execute, which is distinct from finding violations.
type Rule interface {
	ID() string
	Severity() Severity

	// Relations names the input relations the engine must fetch before
	// Evaluate is called.
	Relations() []string

	Evaluate(ctx context.Context, inputs map[string]*Relation) ([]Violation, error)
}

// column reads a named column from a row; a missing column is an execution
// fault, not a violation.
func column(rel string, row Row, name string) (any, error) {
	v, ok := row[name]
	if !ok {
		return nil, fmt.Errorf("relation %s has no column %q", rel, name)
	}
	return v, nil
}

// asDecimal coerces the numeric types that appear in relation rows.
func asDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("value %q is not numeric: %w", n, err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}

// asTime coerces date/timestamp column values.
func asTime(v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("value %v (%T) is not a timestamp", v, v)
	}
	return t, nil
}

// isNull reports whether a column value is SQL NULL.
func isNull(v any) bool {
	return v == nil
}

// scalarString normalizes a scalar for comparison and reporting.
func scalarString(v any) string {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return fmt.Sprintf("%v", v)
}
