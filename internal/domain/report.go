package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportArea is one independent statistics domain of a Report
type ReportArea string

const (
	ReportAreaJob   ReportArea = "job"
	ReportAreaOrder ReportArea = "order"
	ReportAreaUser  ReportArea = "user"
)

// ReportAreas lists the areas in generation order
var ReportAreas = []ReportArea{ReportAreaJob, ReportAreaOrder, ReportAreaUser}

// DefaultTitle is the title given to a Report created while computing this area
func (a ReportArea) DefaultTitle() string {
	switch a {
	case ReportAreaJob:
		return "Job Report"
	case ReportAreaOrder:
		return "Order Report"
	case ReportAreaUser:
		return "User Report"
	default:
		return "Report"
	}
}

// Report identifies one computed reporting period. The quarter range is unique.
type Report struct {
	BaseModel
	Title        string  `gorm:"type:varchar(100);not null"`
	CreatedByID  *string `gorm:"type:varchar(100);column:created_by_id;index"`
	CreatedBy    *User   `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL"`
	QuarterFrom  Quarter `gorm:"type:varchar(2);not null;column:quarter_from;uniqueIndex:idx_reports_quarter_range,priority:1"`
	YearFrom     int     `gorm:"not null;column:year_from;uniqueIndex:idx_reports_quarter_range,priority:2"`
	QuarterTo    Quarter `gorm:"type:varchar(2);not null;column:quarter_to;uniqueIndex:idx_reports_quarter_range,priority:3"`
	YearTo       int     `gorm:"not null;column:year_to;uniqueIndex:idx_reports_quarter_range,priority:4"`
	DocumentName string  `gorm:"type:varchar(255);column:document_name"`
	Document     []byte  `gorm:"column:document"`

	JobResult   *JobReportResult   `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	OrderResult *OrderReportResult `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
	UserResult  *UserReportResult  `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

// QuarterRange returns the report's natural key
func (r *Report) QuarterRange() QuarterRange {
	return QuarterRange{
		QuarterFrom: r.QuarterFrom,
		YearFrom:    r.YearFrom,
		QuarterTo:   r.QuarterTo,
		YearTo:      r.YearTo,
	}
}

// Period renders the quarter range, e.g. "Q1/2024 - Q2/2024"
func (r *Report) Period() string {
	return r.QuarterRange().String()
}

// HasDocument reports whether a document is attached
func (r *Report) HasDocument() bool {
	return len(r.Document) > 0
}

func (r *Report) String() string {
	return fmt.Sprintf("%s (%s)", r.Title, r.Period())
}

// JobReportResult stores the job statistics of a Report
type JobReportResult struct {
	ID                        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReportID                  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:report_id"`
	TotalJobs                 int64     `gorm:"not null;default:0;column:total_jobs"`
	AvgCompletionTimeRegular  *float64  `gorm:"column:avg_completion_time_regular"`
	AvgCompletionTimeWaferRun *float64  `gorm:"column:avg_completion_time_wafer_run"`
	NumCreated                int64     `gorm:"not null;default:0;column:num_created"`
	NumActive                 int64     `gorm:"not null;default:0;column:num_active"`
	NumCompleted              int64     `gorm:"not null;default:0;column:num_completed"`
}

// Apply overwrites every computed field with the given stats
func (r *JobReportResult) Apply(s *JobStats) {
	r.TotalJobs = s.TotalJobs
	r.AvgCompletionTimeRegular = s.AvgCompletionTimeRegular
	r.AvgCompletionTimeWaferRun = s.AvgCompletionTimeWaferRun
	r.NumCreated = s.NumCreated
	r.NumActive = s.NumActive
	r.NumCompleted = s.NumCompleted
}

// OrderReportResult stores the order statistics of a Report
type OrderReportResult struct {
	ID                       uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReportID                 uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex;column:report_id"`
	TotalOrders              int64           `gorm:"not null;default:0;column:total_orders"`
	TotalRevenue             decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0;column:total_revenue"`
	AverageOrderValue        decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0;column:average_order_value"`
	OrdersPerServiceProvider CountMap        `gorm:"type:jsonb;column:orders_per_service_provider"`
	OrdersPerAccountManager  CountMap        `gorm:"type:jsonb;column:orders_per_account_manager"`
}

// Apply overwrites every computed field with the given stats
func (r *OrderReportResult) Apply(s *OrderStats) {
	r.TotalOrders = s.TotalOrders
	r.TotalRevenue = s.TotalRevenue
	r.AverageOrderValue = s.AverageOrderValue
	r.OrdersPerServiceProvider = s.OrdersPerServiceProvider
	r.OrdersPerAccountManager = s.OrdersPerAccountManager
}

// UserReportResult stores the customer and account manager statistics of a Report
type UserReportResult struct {
	ID                    uuid.UUID   `gorm:"type:uuid;primaryKey"`
	ReportID              uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex;column:report_id"`
	TotalCustomers        int64       `gorm:"not null;default:0;column:total_customers"`
	NewCustomers          int64       `gorm:"not null;default:0;column:new_customers"`
	TotalAccountManagers  int64       `gorm:"not null;default:0;column:total_account_managers"`
	CustomersWithOrders   int64       `gorm:"not null;default:0;column:customers_with_orders"`
	AvgOrdersPerCustomer  float64     `gorm:"not null;default:0;column:avg_orders_per_customer"`
	TopPerformingManagers ManagerRank `gorm:"type:jsonb;column:top_performing_managers"`
}

// Apply overwrites every computed field with the given stats
func (r *UserReportResult) Apply(s *UserStats) {
	r.TotalCustomers = s.TotalCustomers
	r.NewCustomers = s.NewCustomers
	r.TotalAccountManagers = s.TotalAccountManagers
	r.CustomersWithOrders = s.CustomersWithOrders
	r.AvgOrdersPerCustomer = s.AvgOrdersPerCustomer
	r.TopPerformingManagers = s.TopPerformingManagers
}

// CountMap is a name to count distribution stored as a JSON object
type CountMap map[string]int64

// Total returns the sum of all counts
func (m CountMap) Total() int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}

// Value implements the driver.Valuer interface.
func (m CountMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface.
func (m *CountMap) Scan(value interface{}) error {
	var decoded CountMap
	if err := scanJSON(value, &decoded); err != nil {
		return err
	}
	*m = decoded
	return nil
}

// ManagerValue is one entry of the manager performance ranking
type ManagerValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ManagerRank is an ordered name to value ranking, highest value first
type ManagerRank []ManagerValue

// Names returns the manager names in rank order
func (r ManagerRank) Names() []string {
	names := make([]string, len(r))
	for i, mv := range r {
		names[i] = mv.Name
	}
	return names
}

// Get returns the value for name and whether it is ranked
func (r ManagerRank) Get(name string) (float64, bool) {
	for _, mv := range r {
		if mv.Name == name {
			return mv.Value, true
		}
	}
	return 0, false
}

// Value implements the driver.Valuer interface.
func (r ManagerRank) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface.
func (r *ManagerRank) Scan(value interface{}) error {
	var decoded ManagerRank
	if err := scanJSON(value, &decoded); err != nil {
		return err
	}
	*r = decoded
	return nil
}

// scanJSON decodes a JSON column into dest, which must be a fresh value;
// NULL leaves it untouched.
func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}

// BeforeCreate assigns a UUID when the caller did not
func (r *JobReportResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns a UUID when the caller did not
func (r *OrderReportResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns a UUID when the caller did not
func (r *UserReportResult) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
