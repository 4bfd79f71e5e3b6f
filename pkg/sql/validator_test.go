package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSelect(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		wantErr    error
		normalized string
	}{
		{
			name:       "plain select",
			sql:        "SELECT * FROM stg_orders",
			normalized: "SELECT * FROM stg_orders",
		},
		{
			name:       "lowercase select",
			sql:        "select order_key from stg_orders",
			normalized: "select order_key from stg_orders",
		},
		{
			name:       "cte",
			sql:        "WITH x AS (SELECT 1) SELECT * FROM x",
			normalized: "WITH x AS (SELECT 1) SELECT * FROM x",
		},
		{
			name:       "trailing semicolon stripped",
			sql:        "SELECT 1;",
			normalized: "SELECT 1",
		},
		{
			name:       "trailing semicolon and whitespace stripped",
			sql:        "SELECT 1 ;  \n",
			normalized: "SELECT 1",
		},
		{
			name:    "multiple statements rejected",
			sql:     "SELECT 1; DROP TABLE fct_orders",
			wantErr: ErrMultipleStatements,
		},
		{
			name:       "semicolon inside string literal allowed",
			sql:        "SELECT * FROM t WHERE note = 'a;b'",
			normalized: "SELECT * FROM t WHERE note = 'a;b'",
		},
		{
			name:       "semicolon inside quoted identifier allowed",
			sql:        `SELECT "a;b" FROM t`,
			normalized: `SELECT "a;b" FROM t`,
		},
		{
			name:    "insert rejected",
			sql:     "INSERT INTO t VALUES (1)",
			wantErr: ErrNotSelect,
		},
		{
			name:    "delete rejected",
			sql:     "DELETE FROM t",
			wantErr: ErrNotSelect,
		},
		{
			name:       "empty string passes through",
			sql:        "",
			normalized: "",
		},
		{
			name:       "leading whitespace trimmed",
			sql:        "   \n SELECT 1",
			normalized: "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSelect(tt.sql)
			if tt.wantErr != nil {
				require.Error(t, result.Error)
				assert.ErrorIs(t, result.Error, tt.wantErr)
				return
			}
			require.NoError(t, result.Error)
			assert.Equal(t, tt.normalized, result.NormalizedSQL)
		})
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"order_key", "_loaded_at", "fct_orders", "a", "A1"}
	for _, name := range valid {
		assert.True(t, ValidIdentifier(name), name)
	}

	invalid := []string{"", "1abc", "order-key", "order key", "order;key", `"quoted"`, "t.column", "key--"}
	for _, name := range invalid {
		assert.False(t, ValidIdentifier(name), name)
	}
}
