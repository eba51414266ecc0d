package safety

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLValidator() *SQLValidator {
	return NewSQLValidator([]string{"client_cases", "reports", "reviews"})
}

func TestSQLValidator_Validate(t *testing.T) {
	v := newTestSQLValidator()

	tests := []struct {
		name      string
		query     string
		wantCheck string
		wantClean string
	}{
		{
			name:      "simple select passes",
			query:     "SELECT * FROM reports",
			wantClean: "SELECT * FROM reports",
		},
		{
			name:      "select with join and aggregate passes",
			query:     "SELECT COUNT(*), MAX(r.created_at) FROM reports r JOIN client_cases c ON r.case_id = c.id",
			wantClean: "SELECT COUNT(*), MAX(r.created_at) FROM reports r JOIN client_cases c ON r.case_id = c.id",
		},
		{
			name:      "comments stripped and whitespace collapsed",
			query:     "SELECT *  -- all columns\nFROM   reports /* main table */ WHERE status = 'done'",
			wantClean: "SELECT * FROM reports WHERE status = 'done'",
		},
		{
			name:      "is null predicate passes",
			query:     "SELECT id FROM reports WHERE deleted_at IS NULL",
			wantClean: "SELECT id FROM reports WHERE deleted_at IS NULL",
		},
		{
			name:      "is not null predicate passes",
			query:     "SELECT id FROM reviews WHERE reviewed_at IS NOT NULL",
			wantClean: "SELECT id FROM reviews WHERE reviewed_at IS NOT NULL",
		},
		{
			name:      "bare null next to is null predicate rejected",
			query:     "SELECT NULL, name FROM reports WHERE deleted_at IS NULL",
			wantCheck: CheckDeniedKeyword,
		},
		{
			name:      "non-select rejected",
			query:     "WITH x AS (SELECT 1) SELECT * FROM x",
			wantCheck: CheckStatementKind,
		},
		{
			name:      "drop table rejected",
			query:     "DROP TABLE reports",
			wantCheck: CheckStatementKind,
		},
		{
			name:      "embedded drop rejected",
			query:     "SELECT * FROM reports; DROP TABLE reports",
			wantCheck: CheckDeniedKeyword,
		},
		{
			name:      "lowercase delete rejected",
			query:     "select * from reports where id = 1 or delete from reports",
			wantCheck: CheckDeniedKeyword,
		},
		{
			name:      "select into rejected",
			query:     "SELECT * INTO OUTFILE '/tmp/x' FROM reports",
			wantCheck: CheckDeniedKeyword,
		},
		{
			name:      "information_schema rejected",
			query:     "SELECT * FROM information_schema.tables",
			wantCheck: CheckDeniedKeyword,
		},
		{
			name:      "unauthorized table rejected case-insensitively",
			query:     "SELECT * FROM Users",
			wantCheck: CheckTableAllowList,
		},
		{
			name:      "unauthorized joined table rejected",
			query:     "SELECT * FROM reports JOIN secrets ON 1 = 1",
			wantCheck: CheckTableAllowList,
		},
		{
			name:      "missing table reference rejected",
			query:     "SELECT 1 + 1",
			wantCheck: CheckTableAllowList,
		},
		{
			name:      "unauthorized function rejected",
			query:     "SELECT SLEEP(10) FROM reports",
			wantCheck: CheckFuncAllowList,
		},
		{
			name:      "allow-listed functions pass case-insensitively",
			query:     "SELECT coalesce(upper(status), 'N/A'), round(avg(score), 2) FROM reviews",
			wantClean: "SELECT coalesce(upper(status), 'N/A'), round(avg(score), 2) FROM reviews",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, err := v.Validate(tt.query)

			if tt.wantCheck != "" {
				require.Error(t, err)
				var unsafeErr *UnsafeQueryError
				require.True(t, errors.As(err, &unsafeErr))
				assert.Equal(t, tt.wantCheck, unsafeErr.Check)
				assert.Empty(t, clean)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantClean, clean)
		})
	}
}

func TestSQLValidator_NeverRepairsQuery(t *testing.T) {
	v := newTestSQLValidator()

	clean, err := v.Validate("SELECT * FROM reports WHERE secret IN (SELECT value FROM secrets)")
	require.Error(t, err)
	assert.Empty(t, clean, "rejected query must not be returned in any form")
}
