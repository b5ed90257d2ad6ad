package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/straye-as/activity-reports/internal/domain"
	"github.com/straye-as/activity-reports/internal/service"
	"go.uber.org/zap"
)

// ReportJobName is the name of the current quarter report job
const ReportJobName = "quarter_report"

// ReportGenerator is implemented by service.ReportService
type ReportGenerator interface {
	Generate(ctx context.Context, req service.GenerateReportRequest) (*service.GeneratedReport, error)
}

// ReportJob regenerates the report of the quarter containing the current time
type ReportJob struct {
	generator ReportGenerator
	authorID  *string
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewReportJob creates a report job. authorID may be empty.
func NewReportJob(generator ReportGenerator, authorID string, logger *zap.Logger, timeout time.Duration) *ReportJob {
	job := &ReportJob{
		generator: generator,
		logger:    logger,
		timeout:   timeout,
		now:       time.Now,
	}
	if authorID != "" {
		job.authorID = &authorID
	}
	return job
}

// Run generates the current quarter. Called by the scheduler.
func (j *ReportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.RunOnce(ctx); err != nil && !errors.Is(err, service.ErrReportLocked) {
		j.logger.Error("scheduled report generation failed", zap.Error(err))
	}
}

// RunOnce generates the current quarter and reports the outcome
func (j *ReportJob) RunOnce(ctx context.Context) error {
	q, year := domain.CurrentQuarter(j.now())
	key := domain.SingleQuarter(q, year)

	start := time.Now()
	generated, err := j.generator.Generate(ctx, service.GenerateReportRequest{
		Range:    key,
		AuthorID: j.authorID,
	})
	if errors.Is(err, service.ErrReportLocked) {
		j.logger.Info("report generation skipped, another process holds the lock",
			zap.String("period", key.String()))
		return err
	}
	if err != nil {
		return err
	}

	j.logger.Info("quarter report job completed",
		zap.String("period", key.String()),
		zap.String("report_id", generated.Report.ID.String()),
		zap.Int64("total_jobs", generated.JobResult.TotalJobs),
		zap.Int64("total_orders", generated.OrderResult.TotalOrders),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// RegisterReportJob registers the current quarter report job with the scheduler.
func RegisterReportJob(scheduler *Scheduler, generator ReportGenerator, authorID string, logger *zap.Logger, cronExpr string, timeout time.Duration) error {
	job := NewReportJob(generator, authorID, logger, timeout)
	return scheduler.AddJob(ReportJobName, cronExpr, job.Run)
}
