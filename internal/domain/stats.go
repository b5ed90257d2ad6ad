package domain

import "github.com/shopspring/decimal"

// JobStats is the job summary of a period.
// Averages are nil when no job of that type is in the period; state counts
// default to zero.
type JobStats struct {
	TotalJobs                 int64    `json:"totalJobs"`
	AvgCompletionTimeRegular  *float64 `json:"avgCompletionTimeRegular"`
	AvgCompletionTimeWaferRun *float64 `json:"avgCompletionTimeWaferRun"`
	NumCreated                int64    `json:"numCreated"`
	NumActive                 int64    `json:"numActive"`
	NumCompleted              int64    `json:"numCompleted"`
}

// OrderStats is the order summary of a period
type OrderStats struct {
	TotalOrders       int64           `json:"totalOrders"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
	// OrdersPerServiceProvider counts each provider once per order
	OrdersPerServiceProvider CountMap `json:"ordersPerServiceProvider"`
	OrdersPerAccountManager  CountMap `json:"ordersPerAccountManager"`
}

// UserStats is the customer and account manager summary of a period.
// TotalCustomers and TotalAccountManagers are current totals, not limited to
// the period.
type UserStats struct {
	TotalCustomers        int64       `json:"totalCustomers"`
	NewCustomers          int64       `json:"newCustomers"`
	TotalAccountManagers  int64       `json:"totalAccountManagers"`
	CustomersWithOrders   int64       `json:"customersWithOrders"`
	AvgOrdersPerCustomer  float64     `json:"avgOrdersPerCustomer"`
	TopPerformingManagers ManagerRank `json:"topPerformingManagers"`
}
