// Package executor runs validated queries against their backing stores.
// It never validates: callers are expected to pass only statements that
// cleared the safety gate.
package executor

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const defaultQueryTimeout = 30 * time.Second

// SQLExecutor runs read-only statements with a bounded execution time.
type SQLExecutor struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewSQLExecutor(db *gorm.DB) *SQLExecutor {
	return &SQLExecutor{db: db, timeout: defaultQueryTimeout}
}

func (e *SQLExecutor) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var rows []map[string]any
	if err := e.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("execute sql query: %w", err)
	}
	return rows, nil
}
