package usecase

import (
	"context"
	"errors"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/fekuna/omnipos-stock-service/internal/inventory"

var tracer = otel.Tracer(instrumentationName)

type metrics struct {
	reservations       metric.Int64Counter
	releases           metric.Int64Counter
	fulfillments       metric.Int64Counter
	insufficientStock  metric.Int64Counter
	integrityViolation metric.Int64Counter
	expired            metric.Int64Counter
	overdue            metric.Int64Counter
}

// newMetrics registers the counters on the global meter provider. A failed
// registration leaves a no-op counter in place.
func newMetrics() *metrics {
	meter := otel.Meter(instrumentationName)
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			return noop.Int64Counter{}
		}
		return c
	}
	return &metrics{
		reservations:       counter("inventory.reservations", "Stock reservations created"),
		releases:           counter("inventory.releases", "Stock reservations released"),
		fulfillments:       counter("inventory.fulfillments", "Stock reservations fulfilled"),
		insufficientStock:  counter("inventory.insufficient_stock", "Reservations rejected for insufficient stock"),
		integrityViolation: counter("inventory.integrity_violations", "Operations aborted by a ledger invariant check"),
		expired:            counter("inventory.reservations_expired", "Cart reservations expired by the sweep"),
		overdue:            counter("inventory.reservations_overdue", "Order reservations found past their expiry"),
	}
}

func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "inventory."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		// business outcomes are not span errors
		if !errors.Is(err, model.ErrInsufficientStock) && !errors.Is(err, model.ErrNotFound) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
