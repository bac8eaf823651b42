package docingest

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/docingest/internal/domain"
)

type sdkMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docingest",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK calls by operation and outcome class.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "docingest",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK call latency in seconds.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"operation"})

	var err error
	if calls, err = register(reg, calls); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return &sdkMetrics{calls: calls, duration: duration}, nil
}

// register adds c to reg. When several clients share a registry, the first client's collector wins.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("docingest: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("docingest: metric registered with type %T", are.ExistingCollector)
	}
	return existing, nil
}

// outcome buckets an error into a bounded label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrInvalidTransition):
		return "rejected"
	case errors.Is(err, domain.ErrOverloaded),
		errors.Is(err, domain.ErrTransientIO),
		errors.Is(err, domain.ErrRateLimited):
		return "unavailable"
	default:
		return "error"
	}
}

// observer records one log line and one metric sample per SDK call. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error, attrs ...any) {
	if o == nil {
		return
	}
	took := time.Since(start)
	class := outcome(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, class).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(took.Seconds())
	}
	if o.logger == nil {
		return
	}

	args := append([]any{"op", op, "duration", took}, attrs...)
	switch class {
	case "ok":
		o.logger.Debug("docingest call", args...)
	case "not_found", "forbidden", "rejected":
		o.logger.Info("docingest call rejected", append(args, "outcome", class, "error", err)...)
	default:
		o.logger.Warn("docingest call failed", append(args, "outcome", class, "error", err)...)
	}
}
