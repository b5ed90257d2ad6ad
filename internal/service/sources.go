package service

import (
	"context"

	"github.com/straye-as/activity-reports/internal/domain"
)

// JobSource is the read access the job aggregator needs.
// Implemented by repository.JobRepository.
type JobSource interface {
	CountWithinRange(ctx context.Context, dr domain.DateRange) (int64, error)
	AverageCompletionByType(ctx context.Context, dr domain.DateRange) (map[domain.JobType]float64, error)
	CountByState(ctx context.Context, dr domain.DateRange) (map[domain.JobState]int64, error)
}

// OrderSource returns fully loaded orders created within a range.
// Implemented by repository.OrderRepository.
type OrderSource interface {
	ListCreatedWithin(ctx context.Context, dr domain.DateRange) ([]domain.Order, error)
}

// CustomerCounter is implemented by repository.CustomerRepository
type CustomerCounter interface {
	Count(ctx context.Context) (int64, error)
	CountCreatedWithin(ctx context.Context, dr domain.DateRange) (int64, error)
}

// AccountManagerCounter is implemented by repository.AccountManagerRepository
type AccountManagerCounter interface {
	Count(ctx context.Context) (int64, error)
}

// UserLookup resolves report authors. Implemented by repository.UserRepository.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
