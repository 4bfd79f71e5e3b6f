package dq

import (
	"context"
	"fmt"

	enginesql "github.com/ekaya-inc/marts-engine/pkg/sql"
)

// QueryRunner executes a validated SELECT against the warehouse and returns
// generic rows. Satisfied by repositories.RelationRepository.
type QueryRunner interface {
	QueryRows(ctx context.Context, query string, args map[string]any) ([]map[string]any, error)
}

// CustomSQLRule runs an authored SELECT whose result set is the violating
// row set: zero rows is a pass. The query is validated as a single SELECT
// statement and its arguments are checked for injection patterns before it
// reaches the warehouse.
type CustomSQLRule struct {
	baseRule
	Query  string
	Args   map[string]any
	runner QueryRunner
}

// NewCustomSQLRule creates a custom SQL rule.
func NewCustomSQLRule(id string, severity Severity, query string, args map[string]any, runner QueryRunner) (*CustomSQLRule, error) {
	result := enginesql.ValidateSelect(query)
	if result.Error != nil {
		return nil, fmt.Errorf("rule %s: %w", id, result.Error)
	}

	if findings := enginesql.CheckAllParameters(args); len(findings) > 0 {
		return nil, fmt.Errorf("rule %s: argument %q failed injection check (fingerprint %s)",
			id, findings[0].ParamName, findings[0].Fingerprint)
	}

	return &CustomSQLRule{
		baseRule: baseRule{id, severity},
		Query:    result.NormalizedSQL,
		Args:     args,
		runner:   runner,
	}, nil
}

// Relations returns nil: the query reads the warehouse directly.
func (r *CustomSQLRule) Relations() []string {
	return nil
}

func (r *CustomSQLRule) Evaluate(ctx context.Context, _ map[string]*Relation) ([]Violation, error) {
	rows, err := r.runner.QueryRows(ctx, r.Query, r.Args)
	if err != nil {
		return nil, fmt.Errorf("custom query failed: %w", err)
	}

	var violations []Violation
	for i, row := range rows {
		key := fmt.Sprintf("row %d", i)
		if v, ok := row["key"]; ok && !isNull(v) {
			key = fmt.Sprintf("key=%s", scalarString(v))
		}
		violations = append(violations, Violation{
			RuleID:   r.id,
			Severity: r.severity,
			Key:      key,
			Detail:   fmt.Sprintf("%v", row),
		})
	}
	return violations, nil
}
