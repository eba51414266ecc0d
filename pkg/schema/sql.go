// Package schema describes the queryable data sources for the query
// generators. Introspection is expensive, so both describers cache
// their result; Invalidate forces a fresh read after a migration or a
// reindex.
package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

const (
	sqlSchemaCacheKey = "database_schema_structure"
	schemaCacheTTL    = time.Hour
)

// SQLSchema introspects the columns of the allow-listed tables.
type SQLSchema struct {
	db            *gorm.DB
	allowedTables []string
	cache         *cache.Cache
}

func NewSQLSchema(db *gorm.DB, allowedTables []string) *SQLSchema {
	return &SQLSchema{
		db:            db,
		allowedTables: allowedTables,
		cache:         cache.New(schemaCacheTTL, 10*time.Minute),
	}
}

// TablesStructure returns, per allow-listed table, one description line
// per column in the form "name (type, NULL|NOT NULL)".
func (s *SQLSchema) TablesStructure(ctx context.Context) (map[string][]string, error) {
	if cached, found := s.cache.Get(sqlSchemaCacheKey); found {
		return cached.(map[string][]string), nil
	}

	structure := make(map[string][]string, len(s.allowedTables))
	for _, table := range s.allowedTables {
		columns, err := s.tableColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("introspect table %s: %w", table, err)
		}
		structure[table] = columns
	}

	s.cache.Set(sqlSchemaCacheKey, structure, cache.DefaultExpiration)
	return structure, nil
}

func (s *SQLSchema) Invalidate() {
	s.cache.Delete(sqlSchemaCacheKey)
}

type columnRow struct {
	ColumnName string
	DataType   string
	IsNullable string
}

func (s *SQLSchema) tableColumns(ctx context.Context, table string) ([]string, error) {
	var rows []columnRow
	err := s.db.WithContext(ctx).
		Raw(`SELECT column_name, data_type, is_nullable
		     FROM information_schema.columns
		     WHERE table_name = ?
		     ORDER BY ordinal_position`, table).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %s has no columns or does not exist", table)
	}

	columns := make([]string, 0, len(rows))
	for _, row := range rows {
		nullable := "NOT NULL"
		if row.IsNullable == "YES" {
			nullable = "NULL"
		}
		columns = append(columns, fmt.Sprintf("%s (%s, %s)", row.ColumnName, row.DataType, nullable))
	}
	return columns, nil
}
