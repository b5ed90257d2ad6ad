// Package testutil provides an in-memory database and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/straye-as/activity-reports/internal/database"
	"github.com/straye-as/activity-reports/internal/domain"
	"github.com/straye-as/activity-reports/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory SQLite database with the full schema.
// The database lives until the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(sqlite.Open(dsn))
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the shared in-memory database alive and
	// serializes writers like a row lock would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db), "failed to migrate test database")
	return db
}

// Date returns midnight UTC of the given day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateUser creates a user with a generated id and the given names
func CreateUser(t *testing.T, db *gorm.DB, username, firstName, lastName string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		Email:     username + "@example.com",
	}
	require.NoError(t, repository.NewUserRepository(db).Create(context.Background(), user))
	return user
}

// CreateProvider creates a service provider
func CreateProvider(t *testing.T, db *gorm.DB, name string) *domain.ServiceProvider {
	t.Helper()
	provider := &domain.ServiceProvider{Name: name}
	require.NoError(t, repository.NewCatalogRepository(db).CreateProvider(context.Background(), provider))
	return provider
}

// CreateService creates a service priced in a decimal string such as "100.00"
func CreateService(t *testing.T, db *gorm.DB, name, price string, provider *domain.ServiceProvider) *domain.Service {
	t.Helper()
	service := &domain.Service{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		ProviderID: provider.ID,
	}
	require.NoError(t, repository.NewCatalogRepository(db).CreateService(context.Background(), service))
	service.Provider = provider
	return service
}

// CreateManager creates an account manager for user, authorized for providers
func CreateManager(t *testing.T, db *gorm.DB, user *domain.User, providers ...*domain.ServiceProvider) *domain.AccountManager {
	t.Helper()
	repo := repository.NewAccountManagerRepository(db)
	manager := &domain.AccountManager{UserID: user.ID}
	require.NoError(t, repo.Create(context.Background(), manager))

	if len(providers) > 0 {
		list := make([]domain.ServiceProvider, len(providers))
		for i, p := range providers {
			list[i] = *p
		}
		require.NoError(t, repo.AddServiceProviders(context.Background(), manager, list...))
	}
	manager.User = user
	return manager
}

// CreateCustomer creates a customer with the given creation time
func CreateCustomer(t *testing.T, db *gorm.DB, name string, createdAt time.Time) *domain.Customer {
	t.Helper()
	customer := &domain.Customer{Name: name}
	customer.CreatedAt = createdAt
	require.NoError(t, repository.NewCustomerRepository(db).Create(context.Background(), customer))
	return customer
}

// CreateOrder creates an order placed at createdAt with the given services
func CreateOrder(t *testing.T, db *gorm.DB, customer *domain.Customer, manager *domain.AccountManager, createdAt time.Time, services ...*domain.Service) *domain.Order {
	t.Helper()
	order := &domain.Order{
		CustomerID:       customer.ID,
		AccountManagerID: manager.ID,
	}
	order.CreatedAt = createdAt
	require.NoError(t, repository.NewOrderRepository(db).Create(context.Background(), order))

	if len(services) > 0 {
		list := make([]domain.Service, len(services))
		for i, s := range services {
			list[i] = *s
		}
		require.NoError(t, db.Model(order).Association("Services").Append(&list))
	}
	return order
}

// CreateJob creates a job running from start to end
func CreateJob(t *testing.T, db *gorm.DB, state domain.JobState, jobType domain.JobType, start, end time.Time, completion float64) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ExternalID:     "JOB-" + uuid.NewString()[:8],
		Name:           "job " + string(jobType),
		State:          state,
		Type:           jobType,
		StartingDate:   start,
		EndDate:        end,
		CompletionTime: completion,
	}
	require.NoError(t, repository.NewJobRepository(db).Create(context.Background(), job))
	return job
}
