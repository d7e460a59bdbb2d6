package decoder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/ieee0824/ctcdecode-go/decoder"

type metrics struct {
	timesteps  metric.Int64Counter
	utterances metric.Int64Counter
	pruned     metric.Int64Counter
	duration   metric.Float64Histogram
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	var (
		m   metrics
		err error
	)
	if m.timesteps, err = meter.Int64Counter("ctcdecode.timesteps",
		metric.WithDescription("Timesteps expanded by the beam search")); err != nil {
		return nil, err
	}
	if m.utterances, err = meter.Int64Counter("ctcdecode.utterances",
		metric.WithDescription("Decode calls, by whether they finalized the utterance")); err != nil {
		return nil, err
	}
	if m.pruned, err = meter.Int64Counter("ctcdecode.pruned_nodes",
		metric.WithDescription("Trie nodes removed from the beam")); err != nil {
		return nil, err
	}
	if m.duration, err = meter.Float64Histogram("ctcdecode.decode.duration",
		metric.WithDescription("Wall time of one decode call"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *metrics) record(ctx context.Context, timesteps, pruned int, final bool, elapsed time.Duration) {
	ctx = context.WithoutCancel(ctx)
	m.timesteps.Add(ctx, int64(timesteps))
	m.pruned.Add(ctx, int64(pruned))
	m.utterances.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", final)))
	m.duration.Record(ctx, elapsed.Seconds())
}
