package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/marts-engine/pkg/apperrors"
	"github.com/ekaya-inc/marts-engine/pkg/config"
	"github.com/ekaya-inc/marts-engine/pkg/models"
	"github.com/ekaya-inc/marts-engine/pkg/repositories"
	enginesql "github.com/ekaya-inc/marts-engine/pkg/sql"
)

// Runner builds all models of a project in dependency order. A model's
// build failure is fatal to that model and everything downstream of it;
// sibling models are unaffected.
type Runner interface {
	// BuildAll builds every model, honoring depends_on ordering. fullRefresh
	// forces full loads for incremental models. The returned summary
	// enumerates every model's build status.
	BuildAll(ctx context.Context, fullRefresh bool) (*models.RunSummary, error)
}

type runner struct {
	project   *config.Project
	relations repositories.RelationRepository
	builder   IncrementalBuilder
	logger    *zap.Logger
}

// NewRunner creates a model runner over the project definition.
func NewRunner(
	project *config.Project,
	relations repositories.RelationRepository,
	builder IncrementalBuilder,
	logger *zap.Logger,
) Runner {
	return &runner{
		project:   project,
		relations: relations,
		builder:   builder,
		logger:    logger.Named("runner"),
	}
}

var _ Runner = (*runner)(nil)

func (r *runner) BuildAll(ctx context.Context, fullRefresh bool) (*models.RunSummary, error) {
	graph := NewModelGraph()
	for _, m := range r.project.Models {
		graph.AddModel(m.Name, m.DependsOn...)
	}

	order, err := graph.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("invalid model graph: %w", err)
	}

	summary := &models.RunSummary{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}
	r.logger.Info("Build run started",
		zap.String("run_id", summary.RunID.String()),
		zap.Strings("order", order),
		zap.Bool("full_refresh", fullRefresh))

	skipped := make(map[string]bool)
	for _, name := range order {
		if skipped[name] {
			summary.Models = append(summary.Models, models.ModelResult{
				Model:  name,
				Status: models.BuildSkipped,
			})
			continue
		}

		model, _ := r.project.Model(name)
		start := time.Now()
		rows, err := r.buildModel(ctx, model, fullRefresh)
		result := models.ModelResult{
			Model:    name,
			Duration: time.Since(start),
			Rows:     rows,
		}

		if err != nil {
			result.Status = models.BuildFailed
			result.Err = err
			r.logger.Error("Model build failed",
				zap.String("model", name),
				zap.Error(err))
			for _, downstream := range graph.Downstream(name) {
				skipped[downstream] = true
			}
		} else {
			result.Status = models.BuildSuccess
			r.logger.Info("Model built",
				zap.String("model", name),
				zap.Int("rows", rows),
				zap.Duration("duration", result.Duration))
		}

		summary.Models = append(summary.Models, result)
	}

	summary.FinishedAt = time.Now().UTC()
	r.logger.Info("Build run finished",
		zap.String("run_id", summary.RunID.String()),
		zap.String("status", string(summary.Status())))
	return summary, nil
}

func (r *runner) buildModel(ctx context.Context, model *config.ModelConfig, fullRefresh bool) (int, error) {
	if err := validateModelIdentifiers(model); err != nil {
		return 0, err
	}

	if len(model.ClusterBy) > 0 {
		// Clustering is advisory to the warehouse, not semantically required.
		r.logger.Debug("Clustering keys configured",
			zap.String("model", model.Name),
			zap.Strings("cluster_by", model.ClusterBy))
	}

	switch model.Materialization {
	case "view":
		if err := r.relations.CreateOrReplaceView(ctx, model.Name, model.SQL); err != nil {
			return 0, err
		}
		return 0, nil

	case "ephemeral":
		// Never persisted; inlined into the transforms that reference it.
		return 0, nil

	case "incremental":
		return r.buildIncremental(ctx, model.Name, fullRefresh)

	case "table":
		// Full rebuild: the incremental path with the window forced open.
		return r.buildIncremental(ctx, model.Name, true)

	default:
		return 0, fmt.Errorf("model %q has unknown materialization %q", model.Name, model.Materialization)
	}
}

func (r *runner) buildIncremental(ctx context.Context, name string, fullRefresh bool) (int, error) {
	switch name {
	case "fct_orders":
		return r.builder.BuildOrderFacts(ctx, fullRefresh)
	case "fct_line_items":
		return r.builder.BuildLineItemFacts(ctx, fullRefresh)
	default:
		return 0, fmt.Errorf("%w: no fact builder registered for %q", apperrors.ErrUnknownModel, name)
	}
}

// validateModelIdentifiers rejects configured column names that are not
// plain SQL identifiers before they can reach generated SQL.
func validateModelIdentifiers(model *config.ModelConfig) error {
	check := func(kind, name string) error {
		if !enginesql.ValidIdentifier(name) {
			return fmt.Errorf("model %q has invalid %s identifier %q", model.Name, kind, name)
		}
		return nil
	}

	if err := check("model name", model.Name); err != nil {
		return err
	}
	for _, key := range model.UniqueKey {
		if err := check("unique_key", key); err != nil {
			return err
		}
	}
	for _, key := range model.ClusterBy {
		if err := check("cluster_by", key); err != nil {
			return err
		}
	}
	if model.DateColumn != "" {
		if err := check("date_column", model.DateColumn); err != nil {
			return err
		}
	}
	return nil
}
