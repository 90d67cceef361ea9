package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/garment-orders/internal/database"
	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
	"github.com/dejobratic/garment-orders/internal/telemetry"
)

// ObservableRepository wraps the read side with spans and query latency.
type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := observeQuery(ctx, r.metrics, "OrderRepository.GetByID", "get_order_by_id",
		[]attribute.KeyValue{attribute.String("order.id", id)},
		func(ctx context.Context) (err error) {
			order, err = r.repo.GetByID(ctx, id)
			return err
		})
	return order, err
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	var orders []domain.Order
	attrs := []attribute.KeyValue{
		attribute.Int("filter.page", filter.Page),
		attribute.Int("filter.page_size", filter.PageSize),
		attribute.Int("filter.statuses", len(filter.Statuses)),
		attribute.Bool("filter.by_buyer", filter.BuyerID != ""),
	}
	err := observeQuery(ctx, r.metrics, "OrderRepository.List", "list_orders", attrs,
		func(ctx context.Context) (err error) {
			orders, err = r.repo.List(ctx, filter)
			return err
		})
	return orders, err
}

func (r *ObservableRepository) Stats(ctx context.Context, since time.Time) (domain.OrderStats, error) {
	var stats domain.OrderStats
	err := observeQuery(ctx, r.metrics, "OrderRepository.Stats", "order_stats",
		[]attribute.KeyValue{attribute.String("stats.since", since.Format(time.DateOnly))},
		func(ctx context.Context) (err error) {
			stats, err = r.repo.Stats(ctx, since)
			return err
		})
	return stats, err
}

// ObservableUnitOfWork traces each unit of work and records its latency.
type ObservableUnitOfWork struct {
	uow     ports.UnitOfWork
	metrics *database.Metrics
}

func NewObservableUnitOfWork(uow ports.UnitOfWork, metrics *database.Metrics) *ObservableUnitOfWork {
	return &ObservableUnitOfWork{uow: uow, metrics: metrics}
}

func (u *ObservableUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return observeQuery(ctx, u.metrics, "UnitOfWork.Do", "unit_of_work", nil,
		func(ctx context.Context) error {
			return u.uow.Do(ctx, fn)
		})
}

func observeQuery(
	ctx context.Context,
	metrics *database.Metrics,
	spanName, operation string,
	attrs []attribute.KeyValue,
	fn func(ctx context.Context) error,
) error {
	ctx, span := telemetry.StartSpan(ctx, spanName, append(attrs, attribute.String("operation", operation))...)

	start := time.Now()
	err := fn(ctx)
	metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err == nil)

	telemetry.EndSpan(span, err)
	return err
}
