package dq

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RelationFetcher materializes one relation as of a single consistent read.
type RelationFetcher func(ctx context.Context) (*Relation, error)

// TestRunSummary enumerates every rule's evaluation status for one run.
type TestRunSummary struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []RuleResult
}

// Status aggregates the run: error if any error-severity rule found
// violations, otherwise warn if any warn-severity rule found violations,
// otherwise pass. Execution failures are counted as error outcomes so a
// broken rule cannot silently pass a gated run.
func (s *TestRunSummary) Status() string {
	status := "pass"
	for _, r := range s.Results {
		switch r.Status {
		case ResultExecFailed:
			return "error"
		case ResultViolated:
			if r.Severity == SeverityError {
				return "error"
			}
			status = "warn"
		}
	}
	return status
}

// Engine evaluates a rule suite. Each rule runs independently and
// atomically: its result is either the full violating set or an execution
// failure, never a partial report.
type Engine struct {
	fetchers map[string]RelationFetcher
	rules    []Rule
	logger   *zap.Logger
}

// NewEngine creates a data quality engine over the given relation fetchers.
func NewEngine(fetchers map[string]RelationFetcher, rules []Rule, logger *zap.Logger) *Engine {
	return &Engine{
		fetchers: fetchers,
		rules:    rules,
		logger:   logger.Named("dq"),
	}
}

// Run evaluates every rule and returns the per-rule results. A rule's
// execution failure never blocks unrelated rules.
func (e *Engine) Run(ctx context.Context) (*TestRunSummary, error) {
	summary := &TestRunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}

	// Relations are fetched once per run and shared across rules.
	cache := make(map[string]*Relation)

	for _, rule := range e.rules {
		start := time.Now()
		result := RuleResult{
			RuleID:   rule.ID(),
			Severity: rule.Severity(),
		}

		inputs, err := e.gatherInputs(ctx, rule, cache)
		if err != nil {
			result.Status = ResultExecFailed
			result.Err = err
		} else {
			violations, err := rule.Evaluate(ctx, inputs)
			switch {
			case err != nil:
				result.Status = ResultExecFailed
				result.Err = err
			case len(violations) > 0:
				result.Status = ResultViolated
				result.Violations = violations
			default:
				result.Status = ResultPassed
			}
		}
		result.Duration = time.Since(start)

		e.logResult(result)
		summary.Results = append(summary.Results, result)
	}

	summary.FinishedAt = time.Now().UTC()
	e.logger.Info("Test run finished",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("rules", len(summary.Results)),
		zap.String("status", summary.Status()))
	return summary, nil
}

func (e *Engine) gatherInputs(ctx context.Context, rule Rule, cache map[string]*Relation) (map[string]*Relation, error) {
	inputs := make(map[string]*Relation)
	for _, name := range rule.Relations() {
		rel, ok := cache[name]
		if !ok {
			fetcher, registered := e.fetchers[name]
			if !registered {
				return nil, fmt.Errorf("no fetcher registered for relation %q", name)
			}
			fetched, err := fetcher(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch relation %q: %w", name, err)
			}
			cache[name] = fetched
			rel = fetched
		}
		inputs[name] = rel
	}
	return inputs, nil
}

func (e *Engine) logResult(result RuleResult) {
	fields := []zap.Field{
		zap.String("rule", result.RuleID),
		zap.String("severity", string(result.Severity)),
		zap.Duration("duration", result.Duration),
	}

	switch result.Status {
	case ResultExecFailed:
		e.logger.Error("Rule failed to execute", append(fields, zap.Error(result.Err))...)
	case ResultViolated:
		fields = append(fields, zap.Int("violations", len(result.Violations)))
		if result.Severity == SeverityError {
			e.logger.Error("Rule found violations", fields...)
		} else {
			e.logger.Warn("Rule found violations", fields...)
		}
	default:
		e.logger.Info("Rule passed", fields...)
	}
}
