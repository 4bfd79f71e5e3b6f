package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/marts-engine/pkg/adapters/warehouse"
	"github.com/ekaya-inc/marts-engine/pkg/config"
	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// AdapterOpener opens a source adapter for an external connection.
// Matches warehouse.Open.
type AdapterOpener func(ctx context.Context, driver, dsn string) (warehouse.SourceAdapter, error)

// FreshnessChecker evaluates each configured source's staleness against its
// warn-after / error-after thresholds. Results are purely advisory unless
// wired into an external gate.
type FreshnessChecker interface {
	CheckAll(ctx context.Context) ([]models.FreshnessResult, error)
}

type freshnessChecker struct {
	sources []config.SourceConfig
	local   warehouse.SourceAdapter
	opener  AdapterOpener
	now     func() time.Time
	logger  *zap.Logger
}

// NewFreshnessChecker creates a freshness checker. local is the adapter for
// sources living in the engine's own warehouse; sources with an external
// connection are opened through the opener per check.
func NewFreshnessChecker(
	sources []config.SourceConfig,
	local warehouse.SourceAdapter,
	opener AdapterOpener,
	logger *zap.Logger,
) FreshnessChecker {
	return &freshnessChecker{
		sources: sources,
		local:   local,
		opener:  opener,
		now:     time.Now,
		logger:  logger.Named("freshness"),
	}
}

var _ FreshnessChecker = (*freshnessChecker)(nil)

func (c *freshnessChecker) CheckAll(ctx context.Context) ([]models.FreshnessResult, error) {
	var results []models.FreshnessResult
	for _, source := range c.sources {
		if source.Freshness == nil {
			continue
		}
		result := c.checkSource(ctx, source)
		c.logResult(result)
		results = append(results, result)
	}
	return results, nil
}

func (c *freshnessChecker) checkSource(ctx context.Context, source config.SourceConfig) models.FreshnessResult {
	result := models.FreshnessResult{Source: source.Name}

	adapter := c.local
	if source.Connection != nil {
		opened, err := c.opener(ctx, source.Connection.Driver, source.Connection.DSN)
		if err != nil {
			result.State = models.FreshnessError
			result.Err = fmt.Errorf("failed to open source connection: %w", err)
			return result
		}
		defer opened.Close()
		adapter = opened
	}

	maxLoaded, ok, err := adapter.MaxLoadedAt(ctx, source.Relation, source.LoadedAt)
	if err != nil {
		result.State = models.FreshnessError
		result.Err = err
		return result
	}
	if !ok {
		result.State = models.FreshnessError
		result.Err = fmt.Errorf("source %q has no loaded rows", source.Name)
		return result
	}

	result.MaxLoaded = maxLoaded
	result.Staleness = c.now().Sub(maxLoaded)

	switch {
	case result.Staleness > source.Freshness.ErrorAfter.Std():
		result.State = models.FreshnessError
	case result.Staleness > source.Freshness.WarnAfter.Std():
		result.State = models.FreshnessWarn
	default:
		result.State = models.FreshnessPass
	}
	return result
}

func (c *freshnessChecker) logResult(result models.FreshnessResult) {
	fields := []zap.Field{
		zap.String("source", result.Source),
		zap.Duration("staleness", result.Staleness),
	}

	switch result.State {
	case models.FreshnessError:
		c.logger.Error("Source freshness breach", append(fields, zap.Error(result.Err))...)
	case models.FreshnessWarn:
		c.logger.Warn("Source going stale", fields...)
	default:
		c.logger.Info("Source fresh", fields...)
	}
}
