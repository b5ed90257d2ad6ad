package service

import (
	"context"
	"fmt"

	"github.com/straye-as/activity-reports/internal/domain"
	"go.uber.org/zap"
)

// JobStatsService computes the job summary of a period
type JobStatsService struct {
	jobs   JobSource
	logger *zap.Logger
}

func NewJobStatsService(jobs JobSource, logger *zap.Logger) *JobStatsService {
	return &JobStatsService{
		jobs:   jobs,
		logger: logger,
	}
}

// Compute summarizes the jobs that started and ended inside the range.
// Mean completion times are reported for the regular and wafer_run types
// only and stay nil when the type has no jobs; state counts cover created,
// active and completed and default to zero.
func (s *JobStatsService) Compute(ctx context.Context, dr domain.DateRange) (*domain.JobStats, error) {
	total, err := s.jobs.CountWithinRange(ctx, dr)
	if err != nil {
		return nil, err
	}

	averages, err := s.jobs.AverageCompletionByType(ctx, dr)
	if err != nil {
		return nil, err
	}

	states, err := s.jobs.CountByState(ctx, dr)
	if err != nil {
		return nil, err
	}

	stats := &domain.JobStats{
		TotalJobs:                 total,
		AvgCompletionTimeRegular:  averageFor(averages, domain.JobTypeRegular),
		AvgCompletionTimeWaferRun: averageFor(averages, domain.JobTypeWaferRun),
		NumCreated:                states[domain.JobStateCreated],
		NumActive:                 states[domain.JobStateActive],
		NumCompleted:              states[domain.JobStateCompleted],
	}

	s.logger.Debug("computed job statistics",
		zap.String("range", dr.String()),
		zap.Int64("total_jobs", stats.TotalJobs),
		zap.String("other_states", fmt.Sprint(otherStates(states))),
	)

	return stats, nil
}

func averageFor(averages map[domain.JobType]float64, jobType domain.JobType) *float64 {
	avg, ok := averages[jobType]
	if !ok {
		return nil
	}
	return &avg
}

// otherStates returns the states outside the reported vocabulary
func otherStates(states map[domain.JobState]int64) []domain.JobState {
	var other []domain.JobState
	for state := range states {
		switch state {
		case domain.JobStateCreated, domain.JobStateActive, domain.JobStateCompleted:
		default:
			other = append(other, state)
		}
	}
	return other
}
