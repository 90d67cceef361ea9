package commands_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dejobratic/garment-orders/internal/orders/adapters/memory"
	"github.com/dejobratic/garment-orders/internal/orders/app/commands"
	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/metrics"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

type recordingCache struct {
	ports.NoopCache
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, id)
	return nil
}

type lifecycle struct {
	store  *memory.Store
	events *recordingEventBus
	cache  *recordingCache
	create commands.CreateOrderHandler
	apply  commands.TransitionOrderHandler
}

func newLifecycle(t *testing.T, stock int) *lifecycle {
	t.Helper()

	m, err := metrics.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	store := seededStore(stock, 1)
	events := &recordingEventBus{}
	cache := &recordingCache{}
	logger := discardLogger()

	return &lifecycle{
		store:  store,
		events: events,
		cache:  cache,
		create: commands.NewObservableCreateOrderHandler(newCreateHandler(store, events), logger, m),
		apply: commands.NewObservableTransitionOrderHandler(
			commands.NewTransitionOrderCommandHandler(store, events, cache, logger, clock),
			logger, m,
		),
	}
}

func (l *lifecycle) place(t *testing.T, qty int) domain.Order {
	t.Helper()
	result, err := l.create.Handle(context.Background(), createCommand(qty))
	require.NoError(t, err)
	return result.Order
}

func (l *lifecycle) do(caller domain.Caller, id string, action commands.Action, opts ...func(*commands.TransitionOrderCommand)) (*commands.TransitionResult, error) {
	cmd := commands.TransitionOrderCommand{Caller: caller, OrderID: id, Action: action}
	for _, opt := range opts {
		opt(&cmd)
	}
	return l.apply.Handle(context.Background(), cmd)
}

func (l *lifecycle) stock(t *testing.T) int {
	t.Helper()
	qty, ok := l.store.ProductQuantity("p1")
	require.True(t, ok)
	return qty
}

func withStatus(s string) func(*commands.TransitionOrderCommand) {
	return func(c *commands.TransitionOrderCommand) { c.Status = s }
}

func withNote(n string) func(*commands.TransitionOrderCommand) {
	return func(c *commands.TransitionOrderCommand) { c.Note = n }
}

func withTracking(label, location string) func(*commands.TransitionOrderCommand) {
	return func(c *commands.TransitionOrderCommand) {
		c.Label = label
		c.Location = location
	}
}

func TestHappyPathToDelivered(t *testing.T) {
	l := newLifecycle(t, 10)
	order := l.place(t, 3)
	assert.Equal(t, 7, l.stock(t))

	res, err := l.do(manager, order.ID, commands.ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Order.Status)
	require.NotNil(t, res.Order.ApprovedAt)

	for _, next := range []string{"processing", "shipped", "delivered"} {
		res, err = l.do(manager, order.ID, commands.ActionUpdateStatus, withStatus(next))
		require.NoError(t, err, next)
	}

	assert.Equal(t, domain.StatusDelivered, res.Order.Status)
	assert.Len(t, res.Order.Tracking, 5)
	assert.Equal(t, 7, l.stock(t))

	stored, err := l.store.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.Tracking, stored.Tracking)
	assert.Equal(t, []domain.OrderStatus{
		domain.StatusApproved, domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered,
	}, l.events.changed)
	assert.Len(t, l.cache.invalidated, 4)
}

func TestRejectReleasesStock(t *testing.T) {
	l := newLifecycle(t, 10)
	order := l.place(t, 4)

	res, err := l.do(admin, order.ID, commands.ActionReject, withNote("out of season"))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusRejected, res.Order.Status)
	assert.Equal(t, "out of season", res.Order.Tracking[1].Note)
	require.NotNil(t, res.Transition.Release)
	assert.Equal(t, 10, l.stock(t))
}

func TestCancel(t *testing.T) {
	t.Run("owner cancels pending order", func(t *testing.T) {
		l := newLifecycle(t, 10)
		order := l.place(t, 2)

		res, err := l.do(buyer, order.ID, commands.ActionCancel)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, res.Order.Status)
		assert.Equal(t, 10, l.stock(t))
	})

	t.Run("other buyer is unauthorized", func(t *testing.T) {
		l := newLifecycle(t, 10)
		order := l.place(t, 2)

		stranger := domain.Caller{ID: "buyer-2", Role: domain.RoleBuyer}
		_, err := l.do(stranger, order.ID, commands.ActionCancel)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Equal(t, 8, l.stock(t))
	})

	t.Run("approved order cannot be cancelled by buyer", func(t *testing.T) {
		l := newLifecycle(t, 10)
		order := l.place(t, 2)
		_, err := l.do(manager, order.ID, commands.ActionApprove)
		require.NoError(t, err)

		_, err = l.do(buyer, order.ID, commands.ActionCancel)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, 8, l.stock(t))
	})

	t.Run("manager cancels processing order and stock returns", func(t *testing.T) {
		l := newLifecycle(t, 10)
		order := l.place(t, 2)
		_, err := l.do(manager, order.ID, commands.ActionApprove)
		require.NoError(t, err)
		_, err = l.do(manager, order.ID, commands.ActionUpdateStatus, withStatus("processing"))
		require.NoError(t, err)

		res, err := l.do(manager, order.ID, commands.ActionUpdateStatus, withStatus("cancelled"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, res.Order.Status)
		assert.Equal(t, 10, l.stock(t))
	})
}

func TestTransitionFailuresLeaveStateUnchanged(t *testing.T) {
	l := newLifecycle(t, 10)
	order := l.place(t, 1)

	_, err := l.do(manager, order.ID, commands.ActionUpdateStatus, withStatus("shipped"))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = l.do(buyer, order.ID, commands.ActionApprove)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = l.do(manager, order.ID, commands.ActionUpdateStatus, withStatus("lost"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.do(manager, "", commands.ActionApprove)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = l.do(manager, "missing", commands.ActionApprove)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := l.store.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Len(t, stored.Tracking, 1)
	assert.Empty(t, l.events.changed)
	assert.Equal(t, 9, l.stock(t))
}

func TestTerminalOrdersRejectEveryAction(t *testing.T) {
	l := newLifecycle(t, 10)
	order := l.place(t, 1)
	_, err := l.do(manager, order.ID, commands.ActionReject)
	require.NoError(t, err)

	for _, status := range domain.AllStatuses {
		_, err := l.do(manager, order.ID, commands.ActionUpdateStatus, withStatus(string(status)))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition, status)
	}
	_, err = l.do(manager, order.ID, commands.ActionApprove)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 10, l.stock(t))
}

func TestAddTracking(t *testing.T) {
	l := newLifecycle(t, 10)
	order := l.place(t, 1)
	_, err := l.do(manager, order.ID, commands.ActionApprove)
	require.NoError(t, err)

	res, err := l.do(manager, order.ID, commands.ActionAddTracking, withTracking("Quality check", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, res.Order.Status)
	assert.Equal(t, "Warehouse", res.Order.Tracking[2].Location)
	assert.False(t, res.Transition.StatusChanged())

	res, err = l.do(manager, order.ID, commands.ActionAddTracking, withTracking("Processing", "Factory"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, res.Order.Status)
	assert.Equal(t, []domain.OrderStatus{domain.StatusApproved, domain.StatusProcessing}, l.events.changed)

	_, err = l.do(manager, order.ID, commands.ActionAddTracking, withTracking(" ", ""))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestConcurrentRejectReleasesOnce(t *testing.T) {
	l := newLifecycle(t, 10)
	order := l.place(t, 4)
	require.Equal(t, 6, l.stock(t))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = l.do(manager, order.ID, commands.ActionReject)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 10, l.stock(t))
}

func TestConcurrentApproveAndCancel(t *testing.T) {
	l := newLifecycle(t, 10)
	order := l.place(t, 3)

	var wg sync.WaitGroup
	var approveErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, approveErr = l.do(manager, order.ID, commands.ActionApprove)
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = l.do(buyer, order.ID, commands.ActionCancel)
	}()
	wg.Wait()

	stored, err := l.store.GetByID(context.Background(), order.ID)
	require.NoError(t, err)

	if approveErr == nil {
		assert.ErrorIs(t, cancelErr, domain.ErrInvalidTransition)
		assert.Equal(t, domain.StatusApproved, stored.Status)
		assert.Equal(t, 7, l.stock(t))
	} else {
		assert.NoError(t, cancelErr)
		assert.Equal(t, domain.StatusCancelled, stored.Status)
		assert.Equal(t, 10, l.stock(t))
	}
	assert.Len(t, stored.Tracking, 2)
}
