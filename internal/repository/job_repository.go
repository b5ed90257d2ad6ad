package repository

import (
	"context"
	"fmt"

	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// withinRange selects jobs whose whole lifecycle lies inside the range:
// started on or after the first day and ended no later than the last day.
func (r *JobRepository) withinRange(ctx context.Context, dr domain.DateRange) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Job{}).
		Where("starting_date >= ? AND end_date < ?", dr.Start, dr.Until())
}

// CountWithinRange counts jobs contained in the range
func (r *JobRepository) CountWithinRange(ctx context.Context, dr domain.DateRange) (int64, error) {
	var count int64
	if err := r.withinRange(ctx, dr).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// AverageCompletionByType returns the mean completion time per job type for
// jobs contained in the range. Types without jobs are absent from the map.
func (r *JobRepository) AverageCompletionByType(ctx context.Context, dr domain.DateRange) (map[domain.JobType]float64, error) {
	type typeAverage struct {
		JobType domain.JobType
		AvgTime float64
	}
	var rows []typeAverage
	err := r.withinRange(ctx, dr).
		Select("job_type, AVG(completion_time) as avg_time").
		Group("job_type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to average completion time by type: %w", err)
	}

	averages := make(map[domain.JobType]float64, len(rows))
	for _, row := range rows {
		averages[row.JobType] = row.AvgTime
	}
	return averages, nil
}

// CountByState returns the number of jobs per state for jobs contained in
// the range. States without jobs are absent from the map.
func (r *JobRepository) CountByState(ctx context.Context, dr domain.DateRange) (map[domain.JobState]int64, error) {
	type stateCount struct {
		State domain.JobState
		Count int64
	}
	var rows []stateCount
	err := r.withinRange(ctx, dr).
		Select("state, COUNT(*) as count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by state: %w", err)
	}

	counts := make(map[domain.JobState]int64, len(rows))
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}
