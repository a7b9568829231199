package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/glossa-dev/glossa"

// OTelMetrics mirrors the authorization metrics onto OpenTelemetry
// instruments so they reach the OTLP collector alongside traces
type OTelMetrics struct {
	decisions     metric.Int64Counter
	cacheLookups  metric.Int64Counter
	auditPurged   metric.Int64Counter
	auditFailures metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	return NewOTelMetricsWithProvider(otel.GetMeterProvider())
}

// NewOTelMetricsWithProvider creates instruments on provider
func NewOTelMetricsWithProvider(provider metric.MeterProvider) (*OTelMetrics, error) {
	meter := provider.Meter(meterName)

	m := &OTelMetrics{}
	var err error

	m.decisions, err = meter.Int64Counter(
		"rbac.decisions",
		metric.WithDescription("Authorization decisions by check mode and result"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rbac.decisions counter: %w", err)
	}

	m.cacheLookups, err = meter.Int64Counter(
		"rbac.cache.lookups",
		metric.WithDescription("Effective permission cache lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rbac.cache.lookups counter: %w", err)
	}

	m.auditPurged, err = meter.Int64Counter(
		"audit.events.purged",
		metric.WithDescription("Audit events removed by retention cleanup"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.purged counter: %w", err)
	}

	m.auditFailures, err = meter.Int64Counter(
		"audit.cleanup.failures",
		metric.WithDescription("Failed audit retention cleanup runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.cleanup.failures counter: %w", err)
	}

	return m, nil
}

// RecordDecision counts one authorization decision
func (m *OTelMetrics) RecordDecision(check, result string) {
	m.decisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("rbac.check", check),
		attribute.String("rbac.result", result),
	))
}

// RecordCacheLookup counts one effective permission cache lookup
func (m *OTelMetrics) RecordCacheLookup(hit bool) {
	m.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Bool("cache.hit", hit),
	))
}

// RecordAuditCleanup records the outcome of a retention run
func (m *OTelMetrics) RecordAuditCleanup(purged int64, err error) {
	ctx := context.Background()
	if err != nil {
		m.auditFailures.Add(ctx, 1)
		return
	}
	m.auditPurged.Add(ctx, purged)
}
