package repository

import (
	"context"

	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Omit("CreatedBy").Create(customer).Error
}

// Count returns the current number of customers, regardless of creation date
func (r *CustomerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Customer{}).Count(&count).Error
	return count, err
}

// CountCreatedWithin returns the number of customers created on any day of the range
func (r *CustomerRepository) CountCreatedWithin(ctx context.Context, dr domain.DateRange) (int64, error) {
	var count int64
	query := ApplyDateRange(r.db.WithContext(ctx).Model(&domain.Customer{}), "created_at", dr)
	err := query.Count(&count).Error
	return count, err
}
