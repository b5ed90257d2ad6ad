package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// BeforeCreate assigns a UUID when the caller did not
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// User is a person who can log in, author reports or act as account manager
type User struct {
	ID        string    `gorm:"type:varchar(100);primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(150);not null;uniqueIndex" json:"username"`
	FirstName string    `gorm:"type:varchar(150);column:first_name" json:"firstName,omitempty"`
	LastName  string    `gorm:"type:varchar(150);column:last_name" json:"lastName,omitempty"`
	Email     string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// FullName returns "first last" with surrounding whitespace removed
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// DisplayName returns the full name, or the username when no name is set
func (u *User) DisplayName() string {
	if name := u.FullName(); name != "" {
		return name
	}
	return u.Username
}

// JobState is the lifecycle state of a job. The set is open-ended.
type JobState string

const (
	JobStateCreated   JobState = "created"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
)

// JobType classifies a job. The set is open-ended.
type JobType string

const (
	JobTypeRegular  JobType = "regular"
	JobTypeWaferRun JobType = "wafer_run"
)

// Job is an execution job tracked by the execution system
type Job struct {
	BaseModel
	ExternalID     string    `gorm:"type:varchar(100);not null;uniqueIndex;column:job_id"`
	Name           string    `gorm:"type:varchar(200);not null;column:job_name"`
	State          JobState  `gorm:"type:varchar(50);not null;default:'created';index"`
	Type           JobType   `gorm:"type:varchar(50);not null;default:'regular';column:job_type;index"`
	StartingDate   time.Time `gorm:"not null;column:starting_date;index"`
	EndDate        time.Time `gorm:"not null;column:end_date;index"`
	CompletionTime float64   `gorm:"not null;default:0;column:completion_time"`
}

// ServiceProvider supplies services that account managers resell
type ServiceProvider struct {
	BaseModel
	Name string `gorm:"type:varchar(200);not null"`
}

// Service is a priced offering from a single provider
type Service struct {
	BaseModel
	Name        string           `gorm:"type:varchar(200);not null"`
	Description string           `gorm:"type:text"`
	Price       decimal.Decimal  `gorm:"type:numeric(10,2);not null"`
	ProviderID  uuid.UUID        `gorm:"type:uuid;not null;column:provider_id;index"`
	Provider    *ServiceProvider `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE"`
}

func (s *Service) String() string {
	if s.Provider != nil {
		return fmt.Sprintf("%s (%s)", s.Name, s.Provider.Name)
	}
	return s.Name
}

// AccountManager sells services from the providers it is authorized for
type AccountManager struct {
	BaseModel
	UserID           string            `gorm:"type:varchar(100);not null;uniqueIndex;column:user_id"`
	User             *User             `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ServiceProviders []ServiceProvider `gorm:"many2many:account_manager_service_providers"`
}

// DisplayName returns the manager's user display name, falling back to the
// manager id when the user was not loaded
func (m *AccountManager) DisplayName() string {
	if m.User != nil {
		return m.User.DisplayName()
	}
	return m.ID.String()
}

// Authorizes reports whether the manager may sell services of the given provider
func (m *AccountManager) Authorizes(providerID uuid.UUID) bool {
	for _, p := range m.ServiceProviders {
		if p.ID == providerID {
			return true
		}
	}
	return false
}

// Customer represents an organization placing orders
type Customer struct {
	BaseModel
	Name        string          `gorm:"type:varchar(200);not null;index"`
	CreatedByID *uuid.UUID      `gorm:"type:uuid;column:created_by_id;index"`
	CreatedBy   *AccountManager `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`
}

// Order is a customer purchase of one or more services through a manager
type Order struct {
	BaseModel
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null;column:customer_id;index"`
	Customer         *Customer       `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
	AccountManagerID uuid.UUID       `gorm:"type:uuid;not null;column:account_manager_id;index"`
	AccountManager   *AccountManager `gorm:"foreignKey:AccountManagerID;constraint:OnDelete:CASCADE"`
	Services         []Service       `gorm:"many2many:order_services"`
	JobID            *uuid.UUID      `gorm:"type:uuid;column:job_id;index"`
	Job              *Job            `gorm:"foreignKey:JobID;constraint:OnDelete:SET NULL"`
}

// Value returns the sum of the prices of the order's services.
// An order without services is worth exactly zero.
func (o *Order) Value() decimal.Decimal {
	total := decimal.Zero
	for _, s := range o.Services {
		total = total.Add(s.Price)
	}
	return total
}

// ProviderNames returns the distinct provider names of the order's services
// in first-seen order
func (o *Order) ProviderNames() []string {
	seen := make(map[string]struct{}, len(o.Services))
	names := make([]string, 0, len(o.Services))
	for _, s := range o.Services {
		if s.Provider == nil {
			continue
		}
		if _, ok := seen[s.Provider.Name]; ok {
			continue
		}
		seen[s.Provider.Name] = struct{}{}
		names = append(names, s.Provider.Name)
	}
	return names
}

// UnauthorizedServices returns the services whose provider the order's
// manager is not allowed to sell. Requires AccountManager.ServiceProviders
// to be loaded.
func (o *Order) UnauthorizedServices() []Service {
	if o.AccountManager == nil {
		return nil
	}
	var out []Service
	for _, s := range o.Services {
		if !o.AccountManager.Authorizes(s.ProviderID) {
			out = append(out, s)
		}
	}
	return out
}

func (o *Order) String() string {
	if o.Customer != nil {
		return fmt.Sprintf("Order #%s by %s", o.ID, o.Customer.Name)
	}
	return fmt.Sprintf("Order #%s", o.ID)
}
