package repository

import (
	"context"
	"fmt"

	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
)

type AccountManagerRepository struct {
	db *gorm.DB
}

func NewAccountManagerRepository(db *gorm.DB) *AccountManagerRepository {
	return &AccountManagerRepository{db: db}
}

// Create inserts the manager and links its authorized providers, which must
// already exist
func (r *AccountManagerRepository) Create(ctx context.Context, manager *domain.AccountManager) error {
	return r.db.WithContext(ctx).
		Omit("User", "ServiceProviders.*").
		Create(manager).Error
}

// AddServiceProviders authorizes the manager for more providers
func (r *AccountManagerRepository) AddServiceProviders(ctx context.Context, manager *domain.AccountManager, providers ...domain.ServiceProvider) error {
	if err := r.db.WithContext(ctx).Model(manager).Association("ServiceProviders").Append(&providers); err != nil {
		return fmt.Errorf("failed to add service providers: %w", err)
	}
	return nil
}

// Count returns the current number of account managers
func (r *AccountManagerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.AccountManager{}).Count(&count).Error
	return count, err
}
