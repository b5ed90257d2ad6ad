package repository

import (
	"context"

	"github.com/straye-as/activity-reports/internal/domain"
	"gorm.io/gorm"
)

// CatalogRepository handles service providers and the services they offer
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) CreateProvider(ctx context.Context, provider *domain.ServiceProvider) error {
	return r.db.WithContext(ctx).Create(provider).Error
}

func (r *CatalogRepository) CreateService(ctx context.Context, service *domain.Service) error {
	return r.db.WithContext(ctx).Omit("Provider").Create(service).Error
}
