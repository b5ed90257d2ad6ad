package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/straye-as/activity-reports/internal/domain"
	"go.uber.org/zap"
)

// OrderStatsService computes the order summary of a period
type OrderStatsService struct {
	orders OrderSource
	logger *zap.Logger
}

func NewOrderStatsService(orders OrderSource, logger *zap.Logger) *OrderStatsService {
	return &OrderStatsService{
		orders: orders,
		logger: logger,
	}
}

// Compute summarizes the orders created within the range
func (s *OrderStatsService) Compute(ctx context.Context, dr domain.DateRange) (*domain.OrderStats, error) {
	orders, err := s.orders.ListCreatedWithin(ctx, dr)
	if err != nil {
		return nil, err
	}

	stats := &domain.OrderStats{
		TotalOrders:              int64(len(orders)),
		TotalRevenue:             decimal.Zero,
		AverageOrderValue:        decimal.Zero,
		OrdersPerServiceProvider: make(domain.CountMap),
		OrdersPerAccountManager:  make(domain.CountMap),
	}

	for i := range orders {
		order := &orders[i]
		stats.TotalRevenue = stats.TotalRevenue.Add(order.Value())

		for _, name := range order.ProviderNames() {
			stats.OrdersPerServiceProvider[name]++
		}
		if order.AccountManager != nil {
			stats.OrdersPerAccountManager[order.AccountManager.DisplayName()]++
		}

		if unauthorized := order.UnauthorizedServices(); len(unauthorized) > 0 {
			s.logger.Warn("order contains services from providers its manager may not sell",
				zap.String("order_id", order.ID.String()),
				zap.String("account_manager", order.AccountManager.DisplayName()),
				zap.Int("unauthorized_services", len(unauthorized)),
			)
		}
	}

	if stats.TotalOrders > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.
			Div(decimal.NewFromInt(stats.TotalOrders)).
			RoundBank(2)
	}

	s.logger.Debug("computed order statistics",
		zap.String("range", dr.String()),
		zap.Int64("total_orders", stats.TotalOrders),
		zap.String("total_revenue", stats.TotalRevenue.StringFixed(2)),
	)

	return stats, nil
}
