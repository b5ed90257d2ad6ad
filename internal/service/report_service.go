package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/activity-reports/internal/distlock"
	"github.com/straye-as/activity-reports/internal/domain"
	"github.com/straye-as/activity-reports/internal/logger"
	"github.com/straye-as/activity-reports/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GenerateReportRequest identifies the period to compute and its author
type GenerateReportRequest struct {
	Range    domain.QuarterRange `json:"range"`
	AuthorID *string             `json:"authorId,omitempty" validate:"omitempty,min=1,max=100"`
}

// GeneratedReport is a Report with all three area results
type GeneratedReport struct {
	Report      *domain.Report
	JobResult   *domain.JobReportResult
	OrderResult *domain.OrderReportResult
	UserResult  *domain.UserReportResult
}

// ListReportsRequest filters and pages report listings
type ListReportsRequest struct {
	Filter   repository.ReportFilter
	Sort     repository.SortConfig
	Page     int
	PageSize int
}

// ReportList is one page of reports
type ReportList struct {
	Reports  []domain.Report
	Total    int64
	Page     int
	PageSize int
}

// ReportService finds or creates the Report for a quarter range and stores
// the statistics of each area on it. Recomputing a range overwrites the
// stored results in place.
type ReportService struct {
	reports *repository.ReportRepository
	results *repository.ReportResultRepository
	authors UserLookup
	jobs    *JobStatsService
	orders  *OrderStatsService
	users   *UserStatsService
	locker  distlock.Locker
	logger  *zap.Logger
}

func NewReportService(
	reports *repository.ReportRepository,
	results *repository.ReportResultRepository,
	authors UserLookup,
	jobs *JobStatsService,
	orders *OrderStatsService,
	users *UserStatsService,
	locker distlock.Locker,
	logger *zap.Logger,
) *ReportService {
	if locker == nil {
		locker = distlock.NoopLocker{}
	}
	return &ReportService{
		reports: reports,
		results: results,
		authors: authors,
		jobs:    jobs,
		orders:  orders,
		users:   users,
		locker:  locker,
		logger:  logger,
	}
}

// prepare resolves the calendar range and validates the request. Unknown
// quarter codes surface as *domain.InvalidQuarterError.
func (s *ReportService) prepare(ctx context.Context, req GenerateReportRequest) (domain.DateRange, error) {
	dr, err := domain.ResolveRange(req.Range)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validateStruct(req); err != nil {
		return domain.DateRange{}, err
	}
	if err := s.checkAuthor(ctx, req.AuthorID); err != nil {
		return domain.DateRange{}, err
	}
	return dr, nil
}

// checkAuthor rejects an author id that does not belong to a known user
func (s *ReportService) checkAuthor(ctx context.Context, authorID *string) error {
	if authorID == nil || s.authors == nil {
		return nil
	}
	author, err := s.authors.GetByID(ctx, *authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationError{Fields: []domain.ValidationFieldError{
				{Field: "authorId", Message: "Unknown user"},
			}}
		}
		return fmt.Errorf("failed to look up author: %w", err)
	}
	logger.WithUser(s.logger, author.ID, author.DisplayName()).Debug("report author resolved")
	return nil
}

func (s *ReportService) findOrCreate(ctx context.Context, req GenerateReportRequest, area domain.ReportArea) (*domain.Report, error) {
	report, created, err := s.reports.FindOrCreate(ctx, req.Range, area.DefaultTitle(), req.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("failed to find or create report: %w", err)
	}
	if created {
		logger.WithReport(s.logger, req.Range).Info("report created",
			zap.String("report_id", report.ID.String()),
			zap.String("title", report.Title),
		)
	}
	return report, nil
}

// UpsertJobReport computes job statistics for the range and stores them on
// the range's Report
func (s *ReportService) UpsertJobReport(ctx context.Context, req GenerateReportRequest) (*domain.JobReportResult, error) {
	dr, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	_, row, err := s.upsertJob(ctx, req, dr)
	return row, err
}

func (s *ReportService) upsertJob(ctx context.Context, req GenerateReportRequest, dr domain.DateRange) (*domain.Report, *domain.JobReportResult, error) {
	stats, err := s.jobs.Compute(ctx, dr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute job statistics: %w", err)
	}

	report, err := s.findOrCreate(ctx, req, domain.ReportAreaJob)
	if err != nil {
		return nil, nil, err
	}

	row, created, err := s.results.UpsertJobResult(ctx, report.ID, stats)
	if err != nil {
		return nil, nil, err
	}
	s.logUpsert(req.Range, domain.ReportAreaJob, report.ID, created)
	return report, row, nil
}

// UpsertOrderReport computes order statistics for the range and stores them
// on the range's Report
func (s *ReportService) UpsertOrderReport(ctx context.Context, req GenerateReportRequest) (*domain.OrderReportResult, error) {
	dr, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	_, row, err := s.upsertOrder(ctx, req, dr)
	return row, err
}

func (s *ReportService) upsertOrder(ctx context.Context, req GenerateReportRequest, dr domain.DateRange) (*domain.Report, *domain.OrderReportResult, error) {
	stats, err := s.orders.Compute(ctx, dr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute order statistics: %w", err)
	}

	report, err := s.findOrCreate(ctx, req, domain.ReportAreaOrder)
	if err != nil {
		return nil, nil, err
	}

	row, created, err := s.results.UpsertOrderResult(ctx, report.ID, stats)
	if err != nil {
		return nil, nil, err
	}
	s.logUpsert(req.Range, domain.ReportAreaOrder, report.ID, created)
	return report, row, nil
}

// UpsertUserReport computes customer and account manager statistics for the
// range and stores them on the range's Report
func (s *ReportService) UpsertUserReport(ctx context.Context, req GenerateReportRequest) (*domain.UserReportResult, error) {
	dr, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	_, row, err := s.upsertUser(ctx, req, dr)
	return row, err
}

func (s *ReportService) upsertUser(ctx context.Context, req GenerateReportRequest, dr domain.DateRange) (*domain.Report, *domain.UserReportResult, error) {
	stats, err := s.users.Compute(ctx, dr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute user statistics: %w", err)
	}

	report, err := s.findOrCreate(ctx, req, domain.ReportAreaUser)
	if err != nil {
		return nil, nil, err
	}

	row, created, err := s.results.UpsertUserResult(ctx, report.ID, stats)
	if err != nil {
		return nil, nil, err
	}
	s.logUpsert(req.Range, domain.ReportAreaUser, report.ID, created)
	return report, row, nil
}

func (s *ReportService) logUpsert(key domain.QuarterRange, area domain.ReportArea, reportID uuid.UUID, created bool) {
	action := "updated"
	if created {
		action = "created"
	}
	logger.WithArea(logger.WithReport(s.logger, key), area).Info("report result "+action,
		zap.String("report_id", reportID.String()),
	)
}

// Generate computes all three areas for the range in job, order, user order.
// When a lock backend is configured only one process generates a range at
// a time; a held lock yields ErrReportLocked.
func (s *ReportService) Generate(ctx context.Context, req GenerateReportRequest) (*GeneratedReport, error) {
	dr, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	log := logger.WithReport(s.logger, req.Range)
	lock := s.locker.NewLock("reports:generate:" + req.Range.Key())

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrReportLocked, req.Range)
	}
	defer func() {
		// Release with a fresh context so a cancelled run still unlocks
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release generation lock", zap.Error(err))
		}
	}()

	runCtx, stop := distlock.KeepAlive(ctx, lock)
	defer stop()

	out, err := s.generate(runCtx, req, dr)
	if err != nil {
		if cause := context.Cause(runCtx); errors.Is(cause, distlock.ErrLockLost) {
			return nil, fmt.Errorf("generation of %s aborted: %w", req.Range, cause)
		}
		return nil, err
	}

	log.Info("report generated", zap.String("report_id", out.Report.ID.String()))
	return out, nil
}

// generate runs the three areas, stopping between them once ctx is done
func (s *ReportService) generate(ctx context.Context, req GenerateReportRequest, dr domain.DateRange) (*GeneratedReport, error) {
	var err error
	out := &GeneratedReport{}
	if out.Report, out.JobResult, err = s.upsertJob(ctx, req, dr); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, out.OrderResult, err = s.upsertOrder(ctx, req, dr); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, out.UserResult, err = s.upsertUser(ctx, req, dr); err != nil {
		return nil, err
	}

	out.Report.JobResult = out.JobResult
	out.Report.OrderResult = out.OrderResult
	out.Report.UserResult = out.UserResult
	return out, nil
}

// GetReport returns a report with its results
func (s *ReportService) GetReport(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "report %s", id)
	}
	return report, nil
}

// GetReportByRange returns the report of a quarter range with its results
func (s *ReportService) GetReportByRange(ctx context.Context, key domain.QuarterRange) (*domain.Report, error) {
	if err := validateStruct(key); err != nil {
		return nil, err
	}
	report, err := s.reports.GetByQuarterRange(ctx, key)
	if err != nil {
		return nil, notFound(err, "report %s", key)
	}
	return report, nil
}

// ListReports returns a page of reports without documents
func (s *ReportService) ListReports(ctx context.Context, req ListReportsRequest) (*ReportList, error) {
	if req.Filter.QuarterFrom != "" && !req.Filter.QuarterFrom.IsValid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, &domain.InvalidQuarterError{Quarter: string(req.Filter.QuarterFrom)})
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > repository.MaxPageSize {
		req.PageSize = 20
	}
	if req.Sort.Field == "" {
		req.Sort = repository.DefaultSortConfig()
	}

	reports, total, err := s.reports.List(ctx, req.Filter, req.Sort, req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	return &ReportList{
		Reports:  reports,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// DeleteReport removes a report and its results
func (s *ReportService) DeleteReport(ctx context.Context, id uuid.UUID) error {
	if err := s.reports.Delete(ctx, id); err != nil {
		return notFound(err, "report %s", id)
	}
	s.logger.Info("report deleted", zap.String("report_id", id.String()))
	return nil
}

// AttachDocument stores a rendered document on the report
func (s *ReportService) AttachDocument(ctx context.Context, id uuid.UUID, name string, data []byte) error {
	if name == "" || len(data) == 0 {
		return fmt.Errorf("%w: document name and content are required", ErrInvalidInput)
	}
	replaced, err := s.reports.HasDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check document: %w", err)
	}
	if err := s.reports.AttachDocument(ctx, id, name, data); err != nil {
		return notFound(err, "report %s", id)
	}
	s.logger.Info("document attached",
		zap.String("report_id", id.String()),
		zap.String("document_name", name),
		zap.Int("size", len(data)),
		zap.Bool("replaced", replaced),
	)
	return nil
}

// notFound maps gorm.ErrRecordNotFound to ErrNotFound and passes other errors through
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
