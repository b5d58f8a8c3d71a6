package playback

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type engineMetrics struct {
	segments   metric.Int64Counter
	responses  metric.Int64Counter
	superseded metric.Int64Counter

	liveHandles metric.Registration
}

func newEngineMetrics(resources ResourceManager) engineMetrics {
	fallback := noop.NewMeterProvider().Meter(scopeName)
	m := engineMetrics{}

	var err error
	if m.segments, err = meter.Int64Counter("ema_voice.segments",
		metric.WithDescription("Segments that left the queue, by outcome"),
		metric.WithUnit("{segment}")); err != nil {
		logger.Warn("failed to create segments counter", "error", err)
		m.segments, _ = fallback.Int64Counter("ema_voice.segments")
	}
	if m.responses, err = meter.Int64Counter("ema_voice.responses",
		metric.WithDescription("Responses that finished playing, by outcome"),
		metric.WithUnit("{response}")); err != nil {
		logger.Warn("failed to create responses counter", "error", err)
		m.responses, _ = fallback.Int64Counter("ema_voice.responses")
	}
	if m.superseded, err = meter.Int64Counter("ema_voice.sessions_superseded",
		metric.WithDescription("Sessions torn down by a newer recording"),
		metric.WithUnit("{session}")); err != nil {
		logger.Warn("failed to create superseded counter", "error", err)
		m.superseded, _ = fallback.Int64Counter("ema_voice.sessions_superseded")
	}

	counter, ok := resources.(interface{ Live() int })
	if !ok {
		return m
	}
	gauge, err := meter.Int64ObservableGauge("ema_voice.live_handles",
		metric.WithDescription("Audio handles acquired and not yet released"),
		metric.WithUnit("{handle}"))
	if err != nil {
		logger.Warn("failed to create live handles gauge", "error", err)
		return m
	}
	if m.liveHandles, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(counter.Live()))
		return nil
	}, gauge); err != nil {
		logger.Warn("failed to observe live handles", "error", err)
	}
	return m
}

func (m engineMetrics) segment(outcome string) {
	m.segments.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m engineMetrics) response(outcome string) {
	m.responses.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m engineMetrics) unregister() {
	if m.liveHandles != nil {
		if err := m.liveHandles.Unregister(); err != nil {
			logger.Warn("failed to unregister live handles gauge", "error", err)
		}
	}
}
