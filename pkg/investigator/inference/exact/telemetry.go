package exact

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for inference runs.
var (
	tracer = otel.Tracer("investigator.inference")
	meter  = otel.Meter("investigator.inference")
)

var (
	runLatency      metric.Float64Histogram
	runTotal        metric.Int64Counter
	contradictions  metric.Int64Counter
	descentSteps    metric.Int64Histogram
	evaluationFault metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"inference_run_duration_seconds",
			metric.WithDescription("Duration of inference runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"inference_run_total",
			metric.WithDescription("Total number of inference runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		contradictions, err = meter.Int64Counter(
			"inference_contradictions_total",
			metric.WithDescription("Evidence nodes flagged as contradictory"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		descentSteps, err = meter.Int64Histogram(
			"inference_descent_iterations",
			metric.WithDescription("Gradient descent iterations per phase"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		evaluationFault, err = meter.Int64Counter(
			"inference_evaluation_faults_total",
			metric.WithDescription("Non-finite evaluation results"),
		)
		if err != nil {
			metricsErr = err
		}
	})
	return metricsErr
}

func recordRun(ctx context.Context, mode string, duration time.Duration, success bool, flagged, faults int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("success", success),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
	if flagged > 0 {
		contradictions.Add(ctx, int64(flagged))
	}
	if faults > 0 {
		evaluationFault.Add(ctx, int64(faults))
	}
}

func recordDescent(ctx context.Context, phase string, iterations int) {
	if err := initMetrics(); err != nil {
		return
	}
	descentSteps.Record(ctx, int64(iterations), metric.WithAttributes(attribute.String("phase", phase)))
}
