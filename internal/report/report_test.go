package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/internal/wire"
)

type stubReporter struct {
	name         string
	err          error
	latency      []Sample
	unrecognized []Sample
}

func (s *stubReporter) Name() string { return s.name }

func (s *stubReporter) ReportLatency(ctx context.Context, sample Sample) error {
	s.latency = append(s.latency, sample)
	return s.err
}

func (s *stubReporter) ReportUnrecognized(ctx context.Context, sample Sample) error {
	s.unrecognized = append(s.unrecognized, sample)
	return s.err
}

func TestSampleLatencyMicros(t *testing.T) {
	s := Sample{Latency: 41250 * time.Nanosecond}
	assert.InDelta(t, 41.25, s.LatencyMicros(), 1e-9)

	s.Latency = -1500 * time.Nanosecond
	assert.InDelta(t, -1.5, s.LatencyMicros(), 1e-9)
}

func TestWriterReporter_LatencyLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewWriterReporter(&buf, logger.NewNullLogger())

	err := r.ReportLatency(context.Background(), Sample{
		Flow:     wire.FlowControl,
		Sequence: 199,
		Count:    200,
		Latency:  41250 * time.Nanosecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "flow=control seq=199 count=200 latency_us=41.250\n", buf.String())
}

func TestWriterReporter_UnrecognizedStaysOffMeasurementStream(t *testing.T) {
	var buf bytes.Buffer
	r := NewWriterReporter(&buf, logger.NewNullLogger())

	err := r.ReportUnrecognized(context.Background(), Sample{Flow: wire.Flow(99), Sequence: 3})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestMultiReporter_FanOut(t *testing.T) {
	a := &stubReporter{name: "a"}
	b := &stubReporter{name: "b"}
	m := NewMultiReporter(logger.NewNullLogger(), a, b)

	ctx := context.Background()
	require.NoError(t, m.ReportLatency(ctx, Sample{Flow: wire.FlowLogging, Sequence: 1}))
	require.NoError(t, m.ReportUnrecognized(ctx, Sample{Flow: wire.Flow(7)}))

	for _, r := range []*stubReporter{a, b} {
		require.Len(t, r.latency, 1)
		assert.Equal(t, uint64(1), r.latency[0].Sequence)
		require.Len(t, r.unrecognized, 1)
		assert.Equal(t, wire.Flow(7), r.unrecognized[0].Flow)
	}
}

func TestMultiReporter_ErrorsAreNotFatal(t *testing.T) {
	failing := &stubReporter{name: "failing-test", err: errors.New("sink unavailable")}
	ok := &stubReporter{name: "ok"}
	m := NewMultiReporter(logger.NewNullLogger(), failing, ok)

	err := m.ReportLatency(context.Background(), Sample{Flow: wire.FlowControl})
	assert.NoError(t, err)
	assert.Len(t, ok.latency, 1, "healthy reporter still receives the sample")
	assert.Len(t, failing.latency, 1)
}
