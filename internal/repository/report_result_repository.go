package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportResultRepository stores the per-area result rows of a Report.
// Each area has at most one row per report (unique report_id); recomputing
// overwrites that row in place.
type ReportResultRepository struct {
	db *gorm.DB
}

// NewReportResultRepository creates a new ReportResultRepository
func NewReportResultRepository(db *gorm.DB) *ReportResultRepository {
	return &ReportResultRepository{db: db}
}

var (
	jobResultColumns = []string{
		"total_jobs",
		"avg_completion_time_regular",
		"avg_completion_time_wafer_run",
		"num_created",
		"num_active",
		"num_completed",
	}
	orderResultColumns = []string{
		"total_orders",
		"total_revenue",
		"average_order_value",
		"orders_per_service_provider",
		"orders_per_account_manager",
	}
	userResultColumns = []string{
		"total_customers",
		"new_customers",
		"total_account_managers",
		"customers_with_orders",
		"avg_orders_per_customer",
		"top_performing_managers",
	}
)

// UpsertJobResult creates or overwrites the job result of the report.
// The boolean is true when the row was created.
func (r *ReportResultRepository) UpsertJobResult(ctx context.Context, reportID uuid.UUID, stats *domain.JobStats) (*domain.JobReportResult, bool, error) {
	row := &domain.JobReportResult{ReportID: reportID}
	row.Apply(stats)

	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = upsertByReport(tx, &domain.JobReportResult{}, row, &row.ID, reportID, jobResultColumns)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert job report result: %w", err)
	}
	return row, created, nil
}

// UpsertOrderResult creates or overwrites the order result of the report.
// The boolean is true when the row was created.
func (r *ReportResultRepository) UpsertOrderResult(ctx context.Context, reportID uuid.UUID, stats *domain.OrderStats) (*domain.OrderReportResult, bool, error) {
	row := &domain.OrderReportResult{ReportID: reportID}
	row.Apply(stats)

	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = upsertByReport(tx, &domain.OrderReportResult{}, row, &row.ID, reportID, orderResultColumns)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert order report result: %w", err)
	}
	return row, created, nil
}

// UpsertUserResult creates or overwrites the user result of the report.
// The boolean is true when the row was created.
func (r *ReportResultRepository) UpsertUserResult(ctx context.Context, reportID uuid.UUID, stats *domain.UserStats) (*domain.UserReportResult, bool, error) {
	row := &domain.UserReportResult{ReportID: reportID}
	row.Apply(stats)

	var created bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = upsertByReport(tx, &domain.UserReportResult{}, row, &row.ID, reportID, userResultColumns)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert user report result: %w", err)
	}
	return row, created, nil
}

// upsertByReport writes row as the single result of reportID. model is a
// zero value of the row's type used for id lookups, id points at the row's
// primary key.
func upsertByReport(tx *gorm.DB, model, row interface{}, id *uuid.UUID, reportID uuid.UUID, columns []string) (bool, error) {
	existing, err := resultIDByReport(tx, model, reportID)
	if err != nil {
		return false, err
	}

	if existing != uuid.Nil {
		*id = existing
		if err := tx.Save(row).Error; err != nil {
			return false, err
		}
		return false, nil
	}

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "report_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(row).Error
	if err != nil {
		return false, err
	}

	// On conflict the stored row keeps its original id
	stored, err := resultIDByReport(tx, model, reportID)
	if err != nil {
		return false, err
	}
	if stored != *id {
		*id = stored
		return false, nil
	}
	return true, nil
}

func resultIDByReport(tx *gorm.DB, model interface{}, reportID uuid.UUID) (uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Model(model).
		Where("report_id = ?", reportID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, nil
	}
	return ids[0], nil
}
