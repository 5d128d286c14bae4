// Package report delivers receiver samples. Measurement lines and
// diagnostics are kept on separate streams: latency samples are data,
// unrecognized flow tags are diagnostics.
package report

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/internal/metrics"
	"github.com/zsiec/flowprobe/internal/wire"
)

// Sample is one reported observation.
type Sample struct {
	Flow       wire.Flow
	Sequence   uint64
	Count      uint64 // packets of this flow received so far; 0 for unrecognized flows
	SendTimeNs int64
	Latency    time.Duration
	Source     string
	ReceivedAt time.Time
}

// LatencyMicros returns the latency in fractional microseconds.
func (s Sample) LatencyMicros() float64 {
	return float64(s.Latency.Nanoseconds()) / 1000.0
}

// Reporter receives decimated latency samples and every unrecognized packet.
type Reporter interface {
	Name() string
	ReportLatency(ctx context.Context, s Sample) error
	ReportUnrecognized(ctx context.Context, s Sample) error
}

// WriterReporter writes latency lines to the measurement stream and sends
// unrecognized packets to the diagnostic logger.
type WriterReporter struct {
	mu     sync.Mutex
	out    io.Writer
	logger logger.Logger
}

// NewWriterReporter creates a reporter writing measurement lines to out.
func NewWriterReporter(out io.Writer, log logger.Logger) *WriterReporter {
	return &WriterReporter{
		out:    out,
		logger: log.WithField("component", "reporter"),
	}
}

func (w *WriterReporter) Name() string { return "writer" }

func (w *WriterReporter) ReportLatency(ctx context.Context, s Sample) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := fmt.Fprintf(w.out, "flow=%s seq=%d count=%d latency_us=%.3f\n",
		s.Flow, s.Sequence, s.Count, s.LatencyMicros())
	return err
}

func (w *WriterReporter) ReportUnrecognized(ctx context.Context, s Sample) error {
	w.logger.WithFields(map[string]interface{}{
		"flow_tag": uint8(s.Flow),
		"sequence": s.Sequence,
		"source":   s.Source,
	}).Warn("Received packet with unrecognized flow tag")
	return nil
}

// MultiReporter fans samples out to several reporters. A failing reporter
// is logged and counted but never stops the others or the receive loop.
type MultiReporter struct {
	reporters []Reporter
	logger    logger.Logger
}

// NewMultiReporter creates a fan-out over reporters.
func NewMultiReporter(log logger.Logger, reporters ...Reporter) *MultiReporter {
	return &MultiReporter{
		reporters: reporters,
		logger:    log.WithField("component", "reporter"),
	}
}

func (m *MultiReporter) Name() string { return "multi" }

func (m *MultiReporter) ReportLatency(ctx context.Context, s Sample) error {
	for _, r := range m.reporters {
		m.check(r, r.ReportLatency(ctx, s))
	}
	return nil
}

func (m *MultiReporter) ReportUnrecognized(ctx context.Context, s Sample) error {
	for _, r := range m.reporters {
		m.check(r, r.ReportUnrecognized(ctx, s))
	}
	return nil
}

func (m *MultiReporter) check(r Reporter, err error) {
	if err == nil {
		return
	}
	metrics.RecordReporterError(r.Name())
	m.logger.WithError(err).WithField("reporter", r.Name()).Warn("Failed to deliver sample")
}
