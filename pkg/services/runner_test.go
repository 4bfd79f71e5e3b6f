package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/marts-engine/pkg/config"
	"github.com/ekaya-inc/marts-engine/pkg/models"
)

// mockBuilder stands in for the incremental fact builder.
type mockBuilder struct {
	orderRows    int
	orderErr     error
	lineRows     int
	lineErr      error
	fullRefreshs []bool
}

func (m *mockBuilder) BuildOrderFacts(_ context.Context, fullRefresh bool) (int, error) {
	m.fullRefreshs = append(m.fullRefreshs, fullRefresh)
	return m.orderRows, m.orderErr
}

func (m *mockBuilder) BuildLineItemFacts(_ context.Context, fullRefresh bool) (int, error) {
	m.fullRefreshs = append(m.fullRefreshs, fullRefresh)
	return m.lineRows, m.lineErr
}

func testProject() *config.Project {
	return &config.Project{
		Name: "order_marts",
		Models: []config.ModelConfig{
			{Name: "stg_orders", Materialization: "view", SQL: "SELECT 1"},
			{Name: "stg_line_items", Materialization: "view", SQL: "SELECT 1"},
			{Name: "int_orders_enriched", Materialization: "ephemeral", DependsOn: []string{"stg_orders", "stg_line_items"}},
			{Name: "fct_orders", Materialization: "incremental", DependsOn: []string{"int_orders_enriched"},
				UniqueKey: []string{"order_key"}, DateColumn: "order_date"},
			{Name: "fct_line_items", Materialization: "incremental", DependsOn: []string{"stg_line_items"},
				UniqueKey: []string{"order_key", "line_number"}, DateColumn: "ship_date"},
		},
	}
}

func resultFor(t *testing.T, summary *models.RunSummary, name string) models.ModelResult {
	t.Helper()
	for _, m := range summary.Models {
		if m.Model == name {
			return m
		}
	}
	t.Fatalf("no result for model %q", name)
	return models.ModelResult{}
}

func TestBuildAll_AllSucceed(t *testing.T) {
	relations := newMockRelationRepo()
	builder := &mockBuilder{orderRows: 5, lineRows: 12}
	r := NewRunner(testProject(), relations, builder, zap.NewNop())

	summary, err := r.BuildAll(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, summary.Models, 5)
	assert.Equal(t, models.RunPass, summary.Status())
	assert.NotEqual(t, "", summary.RunID.String())

	for _, m := range summary.Models {
		assert.Equal(t, models.BuildSuccess, m.Status, "model %s", m.Model)
	}
	assert.Equal(t, 5, resultFor(t, summary, "fct_orders").Rows)
	assert.Equal(t, 12, resultFor(t, summary, "fct_line_items").Rows)
	assert.Contains(t, relations.views, "stg_orders")
	assert.Contains(t, relations.views, "stg_line_items")
}

func TestBuildAll_FullRefreshForwarded(t *testing.T) {
	builder := &mockBuilder{}
	r := NewRunner(testProject(), newMockRelationRepo(), builder, zap.NewNop())

	_, err := r.BuildAll(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, builder.fullRefreshs, 2)
	assert.True(t, builder.fullRefreshs[0])
	assert.True(t, builder.fullRefreshs[1])
}

func TestBuildAll_FailureSkipsDownstreamOnly(t *testing.T) {
	relations := newMockRelationRepo()
	relations.createErr["stg_orders"] = errors.New("permission denied")
	builder := &mockBuilder{}
	r := NewRunner(testProject(), relations, builder, zap.NewNop())

	summary, err := r.BuildAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, models.RunError, summary.Status())

	assert.Equal(t, models.BuildFailed, resultFor(t, summary, "stg_orders").Status)
	assert.Equal(t, models.BuildSkipped, resultFor(t, summary, "int_orders_enriched").Status)
	assert.Equal(t, models.BuildSkipped, resultFor(t, summary, "fct_orders").Status)

	// Siblings not depending on the failed model still build.
	assert.Equal(t, models.BuildSuccess, resultFor(t, summary, "stg_line_items").Status)
	assert.Equal(t, models.BuildSuccess, resultFor(t, summary, "fct_line_items").Status)
}

func TestBuildAll_IncrementalFailureRecorded(t *testing.T) {
	builder := &mockBuilder{orderErr: errors.New("merge failed")}
	r := NewRunner(testProject(), newMockRelationRepo(), builder, zap.NewNop())

	summary, err := r.BuildAll(context.Background(), false)
	require.NoError(t, err)

	result := resultFor(t, summary, "fct_orders")
	assert.Equal(t, models.BuildFailed, result.Status)
	require.Error(t, result.Err)
	assert.Equal(t, models.RunError, summary.Status())
}

func TestBuildAll_CycleIsFatal(t *testing.T) {
	project := &config.Project{
		Models: []config.ModelConfig{
			{Name: "a", Materialization: "ephemeral", DependsOn: []string{"b"}},
			{Name: "b", Materialization: "ephemeral", DependsOn: []string{"a"}},
		},
	}
	r := NewRunner(project, newMockRelationRepo(), &mockBuilder{}, zap.NewNop())

	_, err := r.BuildAll(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model graph")
}

func TestBuildAll_UnknownMaterialization(t *testing.T) {
	project := &config.Project{
		Models: []config.ModelConfig{
			{Name: "bad", Materialization: "snapshot"},
		},
	}
	r := NewRunner(project, newMockRelationRepo(), &mockBuilder{}, zap.NewNop())

	summary, err := r.BuildAll(context.Background(), false)
	require.NoError(t, err)
	result := resultFor(t, summary, "bad")
	assert.Equal(t, models.BuildFailed, result.Status)
	assert.Contains(t, result.Err.Error(), "unknown materialization")
}

func TestBuildAll_UnregisteredIncrementalModel(t *testing.T) {
	project := &config.Project{
		Models: []config.ModelConfig{
			{Name: "fct_unknown", Materialization: "incremental",
				UniqueKey: []string{"k"}, DateColumn: "d"},
		},
	}
	r := NewRunner(project, newMockRelationRepo(), &mockBuilder{}, zap.NewNop())

	summary, err := r.BuildAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, models.BuildFailed, resultFor(t, summary, "fct_unknown").Status)
}

func TestValidateModelIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		model   config.ModelConfig
		wantErr bool
	}{
		{
			name: "valid identifiers",
			model: config.ModelConfig{Name: "fct_orders",
				UniqueKey: []string{"order_key"}, ClusterBy: []string{"order_date"}, DateColumn: "order_date"},
		},
		{
			name:    "injection in model name",
			model:   config.ModelConfig{Name: "fct_orders; DROP TABLE x"},
			wantErr: true,
		},
		{
			name:    "injection in unique key",
			model:   config.ModelConfig{Name: "fct_orders", UniqueKey: []string{"order_key--"}},
			wantErr: true,
		},
		{
			name:    "quoted cluster key",
			model:   config.ModelConfig{Name: "fct_orders", ClusterBy: []string{`"order_date"`}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateModelIdentifiers(&tt.model)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
