package dq

import (
	"context"
	"fmt"
)

// baseRule carries the identity shared by all rule types.
type baseRule struct {
	id       string
	severity Severity
}

func (r baseRule) ID() string {
	return r.id
}

func (r baseRule) Severity() Severity {
	return r.severity
}

// rowKey renders the affected key for a violation. When no key column is
// configured the row ordinal is used.
func rowKey(rel string, row Row, keyColumn string, ordinal int) string {
	if keyColumn != "" {
		if v, ok := row[keyColumn]; ok {
			return fmt.Sprintf("%s=%s", keyColumn, scalarString(v))
		}
	}
	return fmt.Sprintf("%s row %d", rel, ordinal)
}

// UniqueRule checks that no two rows share the same value of the key column.
// Nulls are excluded from the comparison.
type UniqueRule struct {
	baseRule
	Relation string
	Column   string
}

// NewUniqueRule creates a uniqueness rule.
func NewUniqueRule(id string, severity Severity, relation, column string) *UniqueRule {
	return &UniqueRule{baseRule{id, severity}, relation, column}
}

func (r *UniqueRule) Relations() []string {
	return []string{r.Relation}
}

func (r *UniqueRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	rel := inputs[r.Relation]

	counts := make(map[string]int)
	order := []string{}
	for _, row := range rel.Rows {
		v, err := column(r.Relation, row, r.Column)
		if err != nil {
			return nil, err
		}
		if isNull(v) {
			continue
		}
		key := scalarString(v)
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}

	// One violation group per duplicated value, count = duplicate count.
	var violations []Violation
	for _, key := range order {
		if counts[key] > 1 {
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      fmt.Sprintf("%s=%s", r.Column, key),
				Detail:   fmt.Sprintf("%d rows share this value", counts[key]),
			})
		}
	}
	return violations, nil
}

// NotNullRule checks that the column has no null values.
type NotNullRule struct {
	baseRule
	Relation  string
	Column    string
	KeyColumn string
}

// NewNotNullRule creates a not-null rule.
func NewNotNullRule(id string, severity Severity, relation, column, keyColumn string) *NotNullRule {
	return &NotNullRule{baseRule{id, severity}, relation, column, keyColumn}
}

func (r *NotNullRule) Relations() []string {
	return []string{r.Relation}
}

func (r *NotNullRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	rel := inputs[r.Relation]

	var violations []Violation
	for i, row := range rel.Rows {
		v, err := column(r.Relation, row, r.Column)
		if err != nil {
			return nil, err
		}
		if isNull(v) {
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      rowKey(r.Relation, row, r.KeyColumn, i),
				Detail:   fmt.Sprintf("%s is null", r.Column),
			})
		}
	}
	return violations, nil
}

// AcceptedValuesRule checks that the column's non-null values are members of
// a fixed finite set.
type AcceptedValuesRule struct {
	baseRule
	Relation  string
	Column    string
	KeyColumn string
	Values    []string
}

// NewAcceptedValuesRule creates an accepted-values rule.
func NewAcceptedValuesRule(id string, severity Severity, relation, column, keyColumn string, values []string) *AcceptedValuesRule {
	return &AcceptedValuesRule{baseRule{id, severity}, relation, column, keyColumn, values}
}

func (r *AcceptedValuesRule) Relations() []string {
	return []string{r.Relation}
}

func (r *AcceptedValuesRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	rel := inputs[r.Relation]

	accepted := make(map[string]bool, len(r.Values))
	for _, v := range r.Values {
		accepted[v] = true
	}

	var violations []Violation
	for i, row := range rel.Rows {
		v, err := column(r.Relation, row, r.Column)
		if err != nil {
			return nil, err
		}
		if isNull(v) {
			continue
		}
		if !accepted[scalarString(v)] {
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      rowKey(r.Relation, row, r.KeyColumn, i),
				Detail:   fmt.Sprintf("%s has unexpected value %q", r.Column, scalarString(v)),
			})
		}
	}
	return violations, nil
}

// RelationshipRule checks referential integrity: every non-null value of the
// foreign key column in the child relation must exist in the parent
// relation's key column. Unmatched child rows are orphans.
type RelationshipRule struct {
	baseRule
	Child        string
	ForeignKey   string
	Parent       string
	ParentColumn string
}

// NewRelationshipRule creates a referential integrity rule.
func NewRelationshipRule(id string, severity Severity, child, foreignKey, parent, parentColumn string) *RelationshipRule {
	return &RelationshipRule{baseRule{id, severity}, child, foreignKey, parent, parentColumn}
}

func (r *RelationshipRule) Relations() []string {
	return []string{r.Child, r.Parent}
}

func (r *RelationshipRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	child := inputs[r.Child]
	parent := inputs[r.Parent]

	parentKeys := make(map[string]bool, len(parent.Rows))
	for _, row := range parent.Rows {
		v, err := column(r.Parent, row, r.ParentColumn)
		if err != nil {
			return nil, err
		}
		if !isNull(v) {
			parentKeys[scalarString(v)] = true
		}
	}

	var violations []Violation
	for _, row := range child.Rows {
		v, err := column(r.Child, row, r.ForeignKey)
		if err != nil {
			return nil, err
		}
		if isNull(v) {
			continue
		}
		if !parentKeys[scalarString(v)] {
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      fmt.Sprintf("%s=%s", r.ForeignKey, scalarString(v)),
				Detail:   fmt.Sprintf("no matching %s.%s", r.Parent, r.ParentColumn),
			})
		}
	}
	return violations, nil
}
