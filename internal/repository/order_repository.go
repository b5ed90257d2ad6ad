package repository

import (
	"context"
	"fmt"

	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and links its services. The services must
// already exist.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).
		Omit("Customer", "AccountManager", "Job", "Services.*").
		Create(order).Error
}

// ListCreatedWithin returns the orders created on any day of the range with
// services, providers, manager, user and the manager's providers loaded.
// Orders are returned oldest first so that aggregations see a stable
// encounter order.
func (r *OrderRepository) ListCreatedWithin(ctx context.Context, dr domain.DateRange) ([]domain.Order, error) {
	var orders []domain.Order
	query := r.db.WithContext(ctx).
		Preload("Services.Provider").
		Preload("AccountManager.User").
		Preload("AccountManager.ServiceProviders")
	query = ApplyDateRange(query, "created_at", dr)

	if err := query.Order("created_at ASC, id ASC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
