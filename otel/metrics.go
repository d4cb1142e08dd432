// Package otel provides OpenTelemetry integration for the event hub and
// the HTTP API.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tably-labs/tably/events"
)

// HubMetrics translates event hub fan-out outcomes into OpenTelemetry
// metrics. It implements events.Observer.
type HubMetrics struct {
	published        metric.Int64Counter
	deliveryFailures metric.Int64Counter
	fanout           metric.Int64Histogram
	subscriptions    metric.Int64UpDownCounter
}

// NewHubMetrics creates a HubMetrics that uses the given meter to create
// its instruments.
func NewHubMetrics(meter metric.Meter) (*HubMetrics, error) {
	published, err := meter.Int64Counter("tably.events.published",
		metric.WithDescription("Number of events published to the hub"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("tably.events.delivery_failures",
		metric.WithDescription("Number of per-subscriber delivery failures"),
	)
	if err != nil {
		return nil, err
	}

	fanout, err := meter.Int64Histogram("tably.events.fanout",
		metric.WithDescription("Subscriptions matched per published event"),
	)
	if err != nil {
		return nil, err
	}

	subscriptions, err := meter.Int64UpDownCounter("tably.subscriptions.active",
		metric.WithDescription("Currently registered live subscriptions"),
	)
	if err != nil {
		return nil, err
	}

	return &HubMetrics{
		published:        published,
		deliveryFailures: failures,
		fanout:           fanout,
		subscriptions:    subscriptions,
	}, nil
}

var _ events.Observer = (*HubMetrics)(nil)

// EventPublished records one publish and its fan-out width.
func (m *HubMetrics) EventPublished(kind events.Kind, matched int) {
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
	m.published.Add(ctx, 1, attrs)
	m.fanout.Record(ctx, int64(matched), attrs)
}

// DeliveryFailed records a failed delivery to one subscriber.
func (m *HubMetrics) DeliveryFailed(kind events.Kind) {
	m.deliveryFailures.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", string(kind))),
	)
}

// SubscriptionOpened increments the active subscription gauge.
func (m *HubMetrics) SubscriptionOpened() {
	m.subscriptions.Add(context.Background(), 1)
}

// SubscriptionClosed decrements the active subscription gauge.
func (m *HubMetrics) SubscriptionClosed() {
	m.subscriptions.Add(context.Background(), -1)
}
