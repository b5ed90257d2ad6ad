package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/straye-as/activity-reports/internal/domain"
	"go.uber.org/zap"
)

// TopManagersLimit is the number of managers kept in the performance ranking
const TopManagersLimit = 5

// UserStatsService computes the customer and account manager summary of a period
type UserStatsService struct {
	customers CustomerCounter
	managers  AccountManagerCounter
	orders    OrderSource
	logger    *zap.Logger
}

func NewUserStatsService(
	customers CustomerCounter,
	managers AccountManagerCounter,
	orders OrderSource,
	logger *zap.Logger,
) *UserStatsService {
	return &UserStatsService{
		customers: customers,
		managers:  managers,
		orders:    orders,
		logger:    logger,
	}
}

// Compute summarizes customers and managers for the range. Customer and
// manager totals are current totals; new customers and everything derived
// from orders are limited to the range.
func (s *UserStatsService) Compute(ctx context.Context, dr domain.DateRange) (*domain.UserStats, error) {
	totalCustomers, err := s.customers.Count(ctx)
	if err != nil {
		return nil, err
	}

	newCustomers, err := s.customers.CountCreatedWithin(ctx, dr)
	if err != nil {
		return nil, err
	}

	totalManagers, err := s.managers.Count(ctx)
	if err != nil {
		return nil, err
	}

	orders, err := s.orders.ListCreatedWithin(ctx, dr)
	if err != nil {
		return nil, err
	}

	customers := make(map[uuid.UUID]struct{})
	for _, order := range orders {
		customers[order.CustomerID] = struct{}{}
	}

	stats := &domain.UserStats{
		TotalCustomers:        totalCustomers,
		NewCustomers:          newCustomers,
		TotalAccountManagers:  totalManagers,
		CustomersWithOrders:   int64(len(customers)),
		TopPerformingManagers: rankManagers(orders, TopManagersLimit),
	}
	if stats.CustomersWithOrders > 0 {
		stats.AvgOrdersPerCustomer = float64(len(orders)) / float64(stats.CustomersWithOrders)
	}

	s.logger.Debug("computed user statistics",
		zap.String("range", dr.String()),
		zap.Int64("total_customers", stats.TotalCustomers),
		zap.Int64("customers_with_orders", stats.CustomersWithOrders),
		zap.Strings("top_managers", stats.TopPerformingManagers.Names()),
	)

	return stats, nil
}

// rankManagers accumulates order value per manager display name and returns
// the limit highest, highest first. Equal values keep first-encounter order.
func rankManagers(orders []domain.Order, limit int) domain.ManagerRank {
	rank := make(domain.ManagerRank, 0)
	index := make(map[string]int)

	for i := range orders {
		order := &orders[i]
		if order.AccountManager == nil {
			continue
		}
		name := order.AccountManager.DisplayName()
		pos, ok := index[name]
		if !ok {
			pos = len(rank)
			index[name] = pos
			rank = append(rank, domain.ManagerValue{Name: name})
		}
		rank[pos].Value += order.Value().InexactFloat64()
	}

	sort.SliceStable(rank, func(i, j int) bool {
		return rank[i].Value > rank[j].Value
	})

	if len(rank) > limit {
		rank = rank[:limit]
	}
	return rank
}
