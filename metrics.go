package promptkit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zero-day-ai/promptkit/llm"
)

// clientMetrics holds the OpenTelemetry instruments of a Client. They are
// created once in New and shared by every completion.
type clientMetrics struct {
	// completions counts finished CompletePrompt calls by status
	completions metric.Int64Counter

	// repairs counts repair attempts
	repairs metric.Int64Counter

	// duration records CompletePrompt latency in milliseconds
	duration metric.Float64Histogram
}

func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	m := &clientMetrics{}
	var err error

	m.completions, err = meter.Int64Counter(
		"promptkit.completions",
		metric.WithDescription("Number of prompt completions by final status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create completions counter: %w", err)
	}

	m.repairs, err = meter.Int64Counter(
		"promptkit.repairs",
		metric.WithDescription("Number of repair attempts sent to the model"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create repairs counter: %w", err)
	}

	m.duration, err = meter.Float64Histogram(
		"promptkit.completion.duration",
		metric.WithDescription("Prompt completion duration in milliseconds, repairs included"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	return m, nil
}

func (m *clientMetrics) recordCompletion(ctx context.Context, template string, status llm.Status, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("template", template),
		attribute.String("status", status.String()),
	)
	m.completions.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

func (m *clientMetrics) recordRepair(ctx context.Context, template string) {
	m.repairs.Add(ctx, 1, metric.WithAttributes(attribute.String("template", template)))
}
