package dq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCustomSQLRule_Validation(t *testing.T) {
	t.Run("select accepted", func(t *testing.T) {
		rule, err := NewCustomSQLRule("r", SeverityError,
			"SELECT order_key FROM fct_orders WHERE discount < 0;", nil, &stubQueryRunner{})
		require.NoError(t, err)
		// Trailing semicolon is stripped during validation.
		assert.Equal(t, "SELECT order_key FROM fct_orders WHERE discount < 0", rule.Query)
	})

	t.Run("cte accepted", func(t *testing.T) {
		_, err := NewCustomSQLRule("r", SeverityError,
			"WITH bad AS (SELECT 1) SELECT * FROM bad", nil, &stubQueryRunner{})
		assert.NoError(t, err)
	})

	t.Run("non-select rejected", func(t *testing.T) {
		_, err := NewCustomSQLRule("r", SeverityError,
			"DELETE FROM fct_orders", nil, &stubQueryRunner{})
		assert.Error(t, err)
	})

	t.Run("multiple statements rejected", func(t *testing.T) {
		_, err := NewCustomSQLRule("r", SeverityError,
			"SELECT 1; DROP TABLE fct_orders", nil, &stubQueryRunner{})
		assert.Error(t, err)
	})

	t.Run("injection pattern in argument rejected", func(t *testing.T) {
		args := map[string]any{"status": "' OR 1=1 --"}
		_, err := NewCustomSQLRule("r", SeverityError,
			"SELECT 1", args, &stubQueryRunner{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "injection check")
	})

	t.Run("plain arguments accepted", func(t *testing.T) {
		args := map[string]any{"status": "F", "limit": 10}
		_, err := NewCustomSQLRule("r", SeverityError,
			"SELECT 1", args, &stubQueryRunner{})
		assert.NoError(t, err)
	})
}

func TestCustomSQLRule_Evaluate(t *testing.T) {
	t.Run("zero rows is a pass", func(t *testing.T) {
		rule, err := NewCustomSQLRule("r", SeverityError, "SELECT 1", nil, &stubQueryRunner{})
		require.NoError(t, err)
		violations, err := rule.Evaluate(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, violations)
	})

	t.Run("each returned row is a violation", func(t *testing.T) {
		runner := &stubQueryRunner{rows: []map[string]any{
			{"key": int64(7), "discount": -0.1},
			{"key": int64(9), "discount": 1.2},
		}}
		rule, err := NewCustomSQLRule("r", SeverityWarn, "SELECT 1", nil, runner)
		require.NoError(t, err)

		violations, err := rule.Evaluate(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, violations, 2)
		assert.Equal(t, "key=7", violations[0].Key)
		assert.Equal(t, SeverityWarn, violations[0].Severity)
	})

	t.Run("row without key column uses ordinal", func(t *testing.T) {
		runner := &stubQueryRunner{rows: []map[string]any{{"discount": -0.1}}}
		rule, err := NewCustomSQLRule("r", SeverityError, "SELECT 1", nil, runner)
		require.NoError(t, err)

		violations, err := rule.Evaluate(context.Background(), nil)
		require.NoError(t, err)
		require.Len(t, violations, 1)
		assert.Equal(t, "row 0", violations[0].Key)
	})

	t.Run("query failure is an execution fault", func(t *testing.T) {
		runner := &stubQueryRunner{err: errors.New("relation missing")}
		rule, err := NewCustomSQLRule("r", SeverityError, "SELECT 1", nil, runner)
		require.NoError(t, err)

		_, err = rule.Evaluate(context.Background(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "custom query failed")
	})
}

func TestCustomSQLRule_NoRelations(t *testing.T) {
	rule, err := NewCustomSQLRule("r", SeverityError, "SELECT 1", nil, &stubQueryRunner{})
	require.NoError(t, err)
	assert.Nil(t, rule.Relations())
}
