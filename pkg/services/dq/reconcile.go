package dq

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultReconcileTolerance is the relative tolerance for aggregate
// reconciliation: a difference of exactly 1% is still a pass.
var DefaultReconcileTolerance = decimal.NewFromFloat(0.01)

// ReconcileAggregateRule checks that an aggregate derived from a child
// relation (sum of a column grouped by the parent key) equals a stored
// value on the parent relation within a relative tolerance. The boundary is
// inclusive: a difference of exactly the tolerance passes. Parent rows with
// no matching children are always violations regardless of tolerance.
type ReconcileAggregateRule struct {
	baseRule
	Parent       string
	ParentKey    string
	ParentColumn string
	Child        string
	ChildKey     string
	ChildColumn  string
	Tolerance    decimal.Decimal
}

// NewReconcileAggregateRule creates an aggregate reconciliation rule.
func NewReconcileAggregateRule(
	id string, severity Severity,
	parent, parentKey, parentColumn string,
	child, childKey, childColumn string,
	tolerance decimal.Decimal,
) *ReconcileAggregateRule {
	if tolerance.IsZero() {
		tolerance = DefaultReconcileTolerance
	}
	return &ReconcileAggregateRule{
		baseRule:     baseRule{id, severity},
		Parent:       parent,
		ParentKey:    parentKey,
		ParentColumn: parentColumn,
		Child:        child,
		ChildKey:     childKey,
		ChildColumn:  childColumn,
		Tolerance:    tolerance,
	}
}

func (r *ReconcileAggregateRule) Relations() []string {
	return []string{r.Parent, r.Child}
}

func (r *ReconcileAggregateRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	parent := inputs[r.Parent]
	child := inputs[r.Child]

	sums := make(map[string]decimal.Decimal)
	for _, row := range child.Rows {
		keyVal, err := column(r.Child, row, r.ChildKey)
		if err != nil {
			return nil, err
		}
		if isNull(keyVal) {
			continue
		}
		v, err := column(r.Child, row, r.ChildColumn)
		if err != nil {
			return nil, err
		}
		n, err := asDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %w", r.Child, r.ChildColumn, err)
		}
		key := scalarString(keyVal)
		sums[key] = sums[key].Add(n)
	}

	var violations []Violation
	for _, row := range parent.Rows {
		keyVal, err := column(r.Parent, row, r.ParentKey)
		if err != nil {
			return nil, err
		}
		stored, err := column(r.Parent, row, r.ParentColumn)
		if err != nil {
			return nil, err
		}
		if isNull(keyVal) || isNull(stored) {
			continue
		}
		storedVal, err := asDecimal(stored)
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %w", r.Parent, r.ParentColumn, err)
		}

		key := scalarString(keyVal)
		sum, hasChildren := sums[key]
		if !hasChildren {
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      fmt.Sprintf("%s=%s", r.ParentKey, key),
				Detail:   fmt.Sprintf("no %s rows to reconcile against %s=%s", r.Child, r.ParentColumn, storedVal),
			})
			continue
		}

		if !withinTolerance(sum, storedVal, r.Tolerance) {
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      fmt.Sprintf("%s=%s", r.ParentKey, key),
				Detail: fmt.Sprintf("sum(%s)=%s differs from %s=%s beyond tolerance %s",
					r.ChildColumn, sum, r.ParentColumn, storedVal, r.Tolerance),
			})
		}
	}
	return violations, nil
}

// withinTolerance reports whether the relative difference between sum and
// stored is at most tolerance. The comparison is inclusive at the boundary.
func withinTolerance(sum, stored, tolerance decimal.Decimal) bool {
	diff := sum.Sub(stored).Abs()
	if stored.IsZero() {
		return diff.IsZero()
	}
	return diff.Div(stored.Abs()).Cmp(tolerance) <= 0
}

// StateConsistencyRule checks that parent rows in a terminal state have no
// related child rows left in the open sub-state. One violation is reported
// per inconsistent parent with the count of open children.
type StateConsistencyRule struct {
	baseRule
	Parent        string
	ParentKey     string
	StatusColumn  string
	TerminalValue string
	Child         string
	ChildKey      string
	ChildStatus   string
	OpenValue     string
}

// NewStateConsistencyRule creates a state consistency rule.
func NewStateConsistencyRule(
	id string, severity Severity,
	parent, parentKey, statusColumn, terminalValue string,
	child, childKey, childStatus, openValue string,
) *StateConsistencyRule {
	return &StateConsistencyRule{
		baseRule:      baseRule{id, severity},
		Parent:        parent,
		ParentKey:     parentKey,
		StatusColumn:  statusColumn,
		TerminalValue: terminalValue,
		Child:         child,
		ChildKey:      childKey,
		ChildStatus:   childStatus,
		OpenValue:     openValue,
	}
}

func (r *StateConsistencyRule) Relations() []string {
	return []string{r.Parent, r.Child}
}

func (r *StateConsistencyRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	parent := inputs[r.Parent]
	child := inputs[r.Child]

	openCounts := make(map[string]int)
	for _, row := range child.Rows {
		keyVal, err := column(r.Child, row, r.ChildKey)
		if err != nil {
			return nil, err
		}
		status, err := column(r.Child, row, r.ChildStatus)
		if err != nil {
			return nil, err
		}
		if isNull(keyVal) || isNull(status) {
			continue
		}
		if scalarString(status) == r.OpenValue {
			openCounts[scalarString(keyVal)]++
		}
	}

	var violations []Violation
	for _, row := range parent.Rows {
		status, err := column(r.Parent, row, r.StatusColumn)
		if err != nil {
			return nil, err
		}
		if isNull(status) || scalarString(status) != r.TerminalValue {
			continue
		}
		keyVal, err := column(r.Parent, row, r.ParentKey)
		if err != nil {
			return nil, err
		}

		if open := openCounts[scalarString(keyVal)]; open > 0 {
			violations = append(violations, Violation{
				RuleID:   r.id,
				Severity: r.severity,
				Key:      fmt.Sprintf("%s=%s", r.ParentKey, scalarString(keyVal)),
				Detail:   fmt.Sprintf("open_lines_count=%d", open),
			})
		}
	}
	return violations, nil
}

// ChronologicalRule checks that a fixed sequence of date columns on each row
// is non-decreasing. Each out-of-order adjacent pair is reported as a
// distinct violation subtype ("B before A").
type ChronologicalRule struct {
	baseRule
	Relation  string
	KeyColumn string
	Columns   []string // expected chronological order
}

// NewChronologicalRule creates a chronological ordering rule.
func NewChronologicalRule(id string, severity Severity, relation, keyColumn string, columns []string) *ChronologicalRule {
	return &ChronologicalRule{baseRule{id, severity}, relation, keyColumn, columns}
}

func (r *ChronologicalRule) Relations() []string {
	return []string{r.Relation}
}

func (r *ChronologicalRule) Evaluate(_ context.Context, inputs map[string]*Relation) ([]Violation, error) {
	rel := inputs[r.Relation]

	var violations []Violation
	for i, row := range rel.Rows {
		for j := 0; j+1 < len(r.Columns); j++ {
			earlier, later := r.Columns[j], r.Columns[j+1]

			ev, err := column(r.Relation, row, earlier)
			if err != nil {
				return nil, err
			}
			lv, err := column(r.Relation, row, later)
			if err != nil {
				return nil, err
			}
			if isNull(ev) || isNull(lv) {
				continue
			}

			earlierTime, err := asTime(ev)
			if err != nil {
				return nil, fmt.Errorf("column %s.%s: %w", r.Relation, earlier, err)
			}
			laterTime, err := asTime(lv)
			if err != nil {
				return nil, fmt.Errorf("column %s.%s: %w", r.Relation, later, err)
			}

			if laterTime.Before(earlierTime) {
				violations = append(violations, Violation{
					RuleID:   r.id,
					Severity: r.severity,
					Key:      rowKey(r.Relation, row, r.KeyColumn, i),
					Detail:   fmt.Sprintf("%s before %s", dateLabel(later), strings.ToLower(dateLabel(earlier))),
				})
			}
		}
	}
	return violations, nil
}

// dateLabel turns "commit_date" into "Commit" for violation subtypes.
func dateLabel(columnName string) string {
	name := strings.TrimSuffix(columnName, "_date")
	name = strings.ReplaceAll(name, "_", " ")
	if name == "" {
		return columnName
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
