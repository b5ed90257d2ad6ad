package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository persists Report records keyed by their quarter range.
// The (quarter_from, year_from, quarter_to, year_to) tuple carries a unique
// index, so at most one Report exists per range.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ReportFilter narrows report listings. Zero values are ignored.
type ReportFilter struct {
	QuarterFrom domain.Quarter
	YearFrom    int
	CreatedByID string
	Search      string
}

var reportSortFields = map[string]string{
	"createdAt":   "created_at",
	"title":       "title",
	"yearFrom":    "year_from",
	"quarterFrom": "quarter_from",
}

var quarterRangeColumns = []clause.Column{
	{Name: "quarter_from"},
	{Name: "year_from"},
	{Name: "quarter_to"},
	{Name: "year_to"},
}

func whereQuarterRange(tx *gorm.DB, key domain.QuarterRange) *gorm.DB {
	return tx.Where("quarter_from = ? AND year_from = ? AND quarter_to = ? AND year_to = ?",
		key.QuarterFrom, key.YearFrom, key.QuarterTo, key.YearTo)
}

// FindOrCreate returns the Report for the quarter range, creating it with the
// given title and author when absent. The boolean is true when this call
// created the row.
//
// Concurrent callers converge on a single row: the insert uses
// ON CONFLICT DO NOTHING on the unique quarter range index and the loser
// re-reads the winner's row.
func (r *ReportRepository) FindOrCreate(ctx context.Context, key domain.QuarterRange, title string, createdByID *string) (*domain.Report, bool, error) {
	var report domain.Report
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := whereQuarterRange(tx.Clauses(clause.Locking{Strength: "UPDATE"}), key).
			Omit("document").
			First(&report)

		if result.Error == nil {
			return nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to get report: %w", result.Error)
		}

		fresh := domain.Report{
			Title:       title,
			CreatedByID: createdByID,
			QuarterFrom: key.QuarterFrom,
			YearFrom:    key.YearFrom,
			QuarterTo:   key.QuarterTo,
			YearTo:      key.YearTo,
		}
		insert := tx.Clauses(clause.OnConflict{Columns: quarterRangeColumns, DoNothing: true}).
			Omit(clause.Associations).
			Create(&fresh)
		if insert.Error != nil {
			return fmt.Errorf("failed to create report: %w", insert.Error)
		}
		if insert.RowsAffected == 1 {
			report = fresh
			created = true
			return nil
		}

		// Another writer created the row between our read and insert
		if err := whereQuarterRange(tx, key).Omit("document").First(&report).Error; err != nil {
			return fmt.Errorf("failed to re-read report after conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return &report, created, nil
}

// GetByID returns the report with all area results loaded
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	var report domain.Report
	err := r.db.WithContext(ctx).
		Preload("CreatedBy").
		Preload("JobResult").
		Preload("OrderResult").
		Preload("UserResult").
		First(&report, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// GetByQuarterRange returns the report with all area results loaded
func (r *ReportRepository) GetByQuarterRange(ctx context.Context, key domain.QuarterRange) (*domain.Report, error) {
	var report domain.Report
	err := whereQuarterRange(r.db.WithContext(ctx), key).
		Preload("CreatedBy").
		Preload("JobResult").
		Preload("OrderResult").
		Preload("UserResult").
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns a page of reports without their document bytes
func (r *ReportRepository) List(ctx context.Context, filter ReportFilter, sort SortConfig, page, pageSize int) ([]domain.Report, int64, error) {
	var reports []domain.Report
	var total int64

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query := r.db.WithContext(ctx).Model(&domain.Report{})
	if filter.QuarterFrom != "" {
		query = query.Where("quarter_from = ?", filter.QuarterFrom)
	}
	if filter.YearFrom != 0 {
		query = query.Where("year_from = ?", filter.YearFrom)
	}
	if filter.CreatedByID != "" {
		query = query.Where("created_by_id = ?", filter.CreatedByID)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count reports: %w", err)
	}

	offset := (page - 1) * pageSize
	err := query.
		Omit("document").
		Preload("CreatedBy").
		Order(BuildOrderClause(sort, reportSortFields, "created_at")).
		Offset(offset).
		Limit(pageSize).
		Find(&reports).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, total, nil
}

// HasDocument reports whether a document is attached without loading it
func (r *ReportRepository) HasDocument(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Report{}).
		Where("id = ? AND document IS NOT NULL", id).
		Count(&count).Error
	return count > 0, err
}

// AttachDocument stores an opaque document on the report
func (r *ReportRepository) AttachDocument(ctx context.Context, id uuid.UUID, name string, data []byte) error {
	result := r.db.WithContext(ctx).Model(&domain.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"document_name": name,
			"document":      data,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to attach document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the report together with its area results
func (r *ReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&domain.JobReportResult{},
			&domain.OrderReportResult{},
			&domain.UserReportResult{},
		} {
			if err := tx.Where("report_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete report results: %w", err)
			}
		}

		result := tx.Delete(&domain.Report{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete report: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
