package dq

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ValuesInRangeRule checks that a numeric column's non-null values lie
// within an inclusive [min, max] interval. Either endpoint may be
// unbounded. The violation reports which bound was crossed.
type ValuesInRangeRule struct {
	baseRule
	Relation  string
	Column    string
	KeyColumn string
	Min       Bound
	Max       Bound
}

// NewValuesInRangeRule creates a numeric range rule.
func NewValuesInRangeRule(id string, severity Severity, relation, column, keyColumn string, min, max Bound) *ValuesInRangeRule {
	return &ValuesInRangeRule{baseRule{id, severity}, relation, column, keyColumn, min, max}
}

func (r *ValuesInRangeRule) Relations() []string {
	return []string{r.Relation}
}

func (r *ValuesInRangeRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	rel := inputs[r.Relation]

	var violations []Violation
	for i, row := range rel.Rows {
		v, err := column(r.Relation, row, r.Column)
		if err != nil {
			return nil, err
		}
		if isNull(v) {
			continue
		}
		n, err := asDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %w", r.Relation, r.Column, err)
		}

		switch {
		case r.Min.Below(n):
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      rowKey(r.Relation, row, r.KeyColumn, i),
				Detail:   fmt.Sprintf("%s=%s below minimum %s", r.Column, n, r.Min),
			})
		case r.Max.Above(n):
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      rowKey(r.Relation, row, r.KeyColumn, i),
				Detail:   fmt.Sprintf("%s=%s above maximum %s", r.Column, n, r.Max),
			})
		}
	}
	return violations, nil
}

// StringLengthBoundsRule checks that a string column's non-null values have
// a character length within an inclusive [min, max] interval, with the same
// optional-bound semantics as ValuesInRangeRule.
type StringLengthBoundsRule struct {
	baseRule
	Relation  string
	Column    string
	KeyColumn string
	Min       Bound
	Max       Bound
}

// NewStringLengthBoundsRule creates a string length rule.
func NewStringLengthBoundsRule(id string, severity Severity, relation, column, keyColumn string, min, max Bound) *StringLengthBoundsRule {
	return &StringLengthBoundsRule{baseRule{id, severity}, relation, column, keyColumn, min, max}
}

func (r *StringLengthBoundsRule) Relations() []string {
	return []string{r.Relation}
}

func (r *StringLengthBoundsRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	rel := inputs[r.Relation]

	var violations []Violation
	for i, row := range rel.Rows {
		v, err := column(r.Relation, row, r.Column)
		if err != nil {
			return nil, err
		}
		if isNull(v) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("column %s.%s: value %v (%T) is not a string", r.Relation, r.Column, v, v)
		}
		length := decimal.NewFromInt(int64(utf8.RuneCountInString(s)))

		switch {
		case r.Min.Below(length):
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      rowKey(r.Relation, row, r.KeyColumn, i),
				Detail:   fmt.Sprintf("%s length %s below minimum %s", r.Column, length, r.Min),
			})
		case r.Max.Above(length):
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      rowKey(r.Relation, row, r.KeyColumn, i),
				Detail:   fmt.Sprintf("%s length %s above maximum %s", r.Column, length, r.Max),
			})
		}
	}
	return violations, nil
}
