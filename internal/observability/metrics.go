package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SCIMMetrics holds custom metrics for SCIM list operations
type SCIMMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	filterRejected  metric.Int64Counter
	resultsCount    metric.Int64Histogram
	pageSize        metric.Int64Histogram
	hydrationRows   metric.Int64Histogram
}

// InitSCIMMetrics initializes SCIM-specific metrics
func InitSCIMMetrics() (*SCIMMetrics, error) {
	meter := otel.Meter("scim-mysql")

	requestDuration, err := meter.Float64Histogram(
		"scim.request.duration",
		metric.WithDescription("Duration of SCIM requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"scim.requests.total",
		metric.WithDescription("Total number of SCIM requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"scim.errors.total",
		metric.WithDescription("Total number of SCIM error responses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"scim.requests.active",
		metric.WithDescription("Number of active SCIM requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	filterRejected, err := meter.Int64Counter(
		"scim.filter.rejected",
		metric.WithDescription("Total number of rejected SCIM filter expressions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter rejected counter: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"scim.results.count",
		metric.WithDescription("Total matches reported for SCIM list requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	pageSize, err := meter.Int64Histogram(
		"scim.page.size",
		metric.WithDescription("Number of resources returned per SCIM page"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create page size histogram: %w", err)
	}

	hydrationRows, err := meter.Int64Histogram(
		"scim.hydration.rows",
		metric.WithDescription("Number of rows read while hydrating a SCIM page"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hydration rows histogram: %w", err)
	}

	return &SCIMMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
		filterRejected:  filterRejected,
		resultsCount:    resultsCount,
		pageSize:        pageSize,
		hydrationRows:   hydrationRows,
	}, nil
}

// RecordRequest records a SCIM request with its duration and outcome
func (m *SCIMMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, resourceType string) {
	attrs := []attribute.KeyValue{
		attribute.String("resource_type", resourceType),
		attribute.Bool("has_errors", hasErrors),
	}

	// Record duration in milliseconds
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	// Increment total request counter
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	// Increment error counter if there were errors
	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("resource_type", resourceType),
		))
	}
}

// RecordFilterRejected records a filter expression that failed to parse or
// referenced an unknown attribute.
func (m *SCIMMetrics) RecordFilterRejected(ctx context.Context, resourceType string, reason string) {
	m.filterRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource_type", resourceType),
		attribute.String("reason", reason),
	))
}

// RecordResultsCount records the total number of matches for a list request
func (m *SCIMMetrics) RecordResultsCount(ctx context.Context, count int64, resourceType string) {
	m.resultsCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("resource_type", resourceType),
	))
}

// RecordPageSize records the number of resources returned in one page
func (m *SCIMMetrics) RecordPageSize(ctx context.Context, count int64, resourceType string) {
	m.pageSize.Record(ctx, count, metric.WithAttributes(
		attribute.String("resource_type", resourceType),
	))
}

// RecordHydrationRows records the rows read while assembling a page
func (m *SCIMMetrics) RecordHydrationRows(ctx context.Context, count int64, resourceType string) {
	m.hydrationRows.Record(ctx, count, metric.WithAttributes(
		attribute.String("resource_type", resourceType),
	))
}

// IncrementActiveRequests increments the active requests counter
func (m *SCIMMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *SCIMMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the SCIMMetrics instance
func InitMetrics(logger *slog.Logger) (*SCIMMetrics, error) {
	metrics, err := InitSCIMMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SCIM metrics: %w", err)
	}

	logger.Info("custom SCIM metrics initialized")
	return metrics, nil
}

type scimMetricsContextKey struct{}

// ContextWithSCIMMetrics stores SCIM metrics in the provided context.
func ContextWithSCIMMetrics(ctx context.Context, metrics *SCIMMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scimMetricsContextKey{}, metrics)
}

// SCIMMetricsFromContext retrieves SCIM metrics from the context.
func SCIMMetricsFromContext(ctx context.Context) *SCIMMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(scimMetricsContextKey{}).(*SCIMMetrics)
	return metrics
}
