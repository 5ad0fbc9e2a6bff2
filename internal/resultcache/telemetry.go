package resultcache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName names the meter and tracer of the cache.
const instrumentationName = "github.com/roach88/qcache/internal/resultcache"

// metrics holds the cache instruments.
type metrics struct {
	fetchCount  metric.Int64Counter
	storeCount  metric.Int64Counter
	errorCount  metric.Int64Counter
	purgeCount  metric.Int64Counter
	rowsPerBatch metric.Int64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	fetchCount, err := meter.Int64Counter(
		"qcache.fetch.total",
		metric.WithDescription("Total number of cache lookups by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	storeCount, err := meter.Int64Counter(
		"qcache.store.total",
		metric.WithDescription("Total number of committed result batches"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"qcache.store.errors",
		metric.WithDescription("Total number of failed stores by error code"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	purgeCount, err := meter.Int64Counter(
		"qcache.schema.purges",
		metric.WithDescription("Total number of resource purges caused by schema growth"),
		metric.WithUnit("{purge}"),
	)
	if err != nil {
		return nil, err
	}

	rowsPerBatch, err := meter.Int64Histogram(
		"qcache.store.rows",
		metric.WithDescription("Rows written per committed batch"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		fetchCount:  fetchCount,
		storeCount:  storeCount,
		errorCount:  errorCount,
		purgeCount:  purgeCount,
		rowsPerBatch: rowsPerBatch,
	}, nil
}

func resourceAttr(resource string) attribute.KeyValue {
	return attribute.String("qcache.resource", resource)
}

func (m *metrics) recordFetch(ctx context.Context, resource string, outcome Outcome) {
	m.fetchCount.Add(ctx, 1, metric.WithAttributes(
		resourceAttr(resource),
		outcomeAttr(outcome),
	))
}

func (m *metrics) recordStore(ctx context.Context, resource string, rows int) {
	opt := metric.WithAttributes(resourceAttr(resource))
	m.storeCount.Add(ctx, 1, opt)
	m.rowsPerBatch.Record(ctx, int64(rows), opt)
}

func (m *metrics) recordStoreError(ctx context.Context, resource string, err error) {
	code := "UNKNOWN"
	if ce, ok := asError(err); ok {
		code = string(ce.Code)
	}
	m.errorCount.Add(ctx, 1, metric.WithAttributes(
		resourceAttr(resource),
		attribute.String("qcache.error.code", code),
	))
}

func (m *metrics) recordPurge(ctx context.Context, resource string) {
	m.purgeCount.Add(ctx, 1, metric.WithAttributes(resourceAttr(resource)))
}

// startSpan starts an internal span for one cache operation.
func startSpan(ctx context.Context, tracer trace.Tracer, op, resource string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "qcache."+op,
		trace.WithAttributes(resourceAttr(resource)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// endSpan ends span, recording err if present.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func outcomeAttr(o Outcome) attribute.KeyValue {
	return attribute.String("qcache.outcome", o.String())
}
