package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/metrics"
	"github.com/dejobratic/garment-orders/internal/telemetry"
)

type ObservableCreateOrderHandler struct {
	handler CreateOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCreateOrderHandler(handler CreateOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCreateOrderHandler {
	return &ObservableCreateOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*CreateOrderResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateOrderCommand.Handle")
	defer span.End()

	start := time.Now()
	var success bool
	defer func() {
		o.metrics.RecordOrderCreationDuration(ctx, time.Since(start).Seconds())
		o.metrics.RecordOrderCreated(ctx, success)
	}()

	o.logger.InfoContext(ctx, "creating order",
		"buyer_id", cmd.Caller.ID,
		"product_id", cmd.ProductID,
		"quantity", cmd.Quantity,
	)

	result, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create order",
			"error", domain.Detail(err),
			"kind", kindName(err),
			"buyer_id", cmd.Caller.ID,
			"product_id", cmd.ProductID,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", result.Order.ID),
		attribute.String("order.product_id", result.Order.ProductID),
		attribute.Int("order.quantity", result.Order.Quantity),
		attribute.String("order.total_amount", result.Order.TotalAmount.String()),
		attribute.Bool("order.replayed", result.Replayed),
	)

	if result.Replayed {
		o.logger.InfoContext(ctx, "returning existing order for payment reference",
			"order_id", result.Order.ID,
		)
	} else {
		o.metrics.RecordStockMovement(ctx, "reserve", result.Order.Quantity)
		o.logger.InfoContext(ctx, "order created successfully",
			"order_id", result.Order.ID,
			"buyer_id", result.Order.BuyerID,
		)
	}

	success = true
	telemetry.SetSpanSuccess(span)

	return result, nil
}

type ObservableTransitionOrderHandler struct {
	handler TransitionOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableTransitionOrderHandler(handler TransitionOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableTransitionOrderHandler {
	return &ObservableTransitionOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableTransitionOrderHandler) Handle(ctx context.Context, cmd TransitionOrderCommand) (*TransitionResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "TransitionOrderCommand.Handle")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.action", string(cmd.Action)),
		attribute.String("caller.role", string(cmd.Caller.Role)),
	)

	start := time.Now()
	result, err := o.handler.Handle(ctx, cmd)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		o.metrics.RecordTransition(ctx, string(cmd.Action), kindName(err), elapsed)
		telemetry.RecordSpanError(span, err)
		o.logger.WarnContext(ctx, "order action rejected",
			"order_id", cmd.OrderID,
			"action", cmd.Action,
			"caller_id", cmd.Caller.ID,
			"kind", kindName(err),
			"error", domain.Detail(err),
		)
		return nil, err
	}

	o.metrics.RecordTransition(ctx, string(cmd.Action), "success", elapsed)
	if r := result.Transition.Release; r != nil {
		o.metrics.RecordStockMovement(ctx, "release", r.Quantity)
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.from", string(result.Transition.From)),
		attribute.String("order.to", string(result.Transition.To)),
	)
	o.logger.InfoContext(ctx, "order action applied",
		"order_id", result.Order.ID,
		"action", cmd.Action,
		"from", result.Transition.From,
		"to", result.Transition.To,
		"released", result.Transition.Release != nil,
	)

	telemetry.SetSpanSuccess(span)
	return result, nil
}

func kindName(err error) string {
	if kind := domain.Kind(err); kind != nil {
		return kind.Error()
	}
	return "unknown"
}
