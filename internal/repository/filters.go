package repository

import (
	"strings"

	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (createdAt DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "createdAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config.
// fieldMap maps API field names to database column names; unknown fields
// fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// ApplyDateRange restricts column to the calendar days of r, last day included
func ApplyDateRange(query *gorm.DB, column string, r domain.DateRange) *gorm.DB {
	return query.Where(column+" >= ? AND "+column+" < ?", r.Start, r.Until())
}
