package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sender metrics
	packetsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_packets_sent_total",
		Help: "Total probe packets sent",
	}, []string{"flow"})

	sendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_send_errors_total",
		Help: "Total failed send calls",
	}, []string{"flow"})

	sendLateness = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowprobe_send_lateness_seconds",
		Help:    "How far past its scheduled deadline each packet was sent",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12), // 1µs to ~4s
	}, []string{"flow"})

	markingFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_marking_failures_total",
		Help: "Total failures to apply the priority marking to a socket",
	}, []string{"flow"})

	// Receiver metrics
	packetsReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_packets_received_total",
		Help: "Total valid probe packets received",
	}, []string{"flow"})

	datagramsMalformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowprobe_datagrams_malformed_total",
		Help: "Total datagrams discarded for having the wrong size",
	})

	packetsUnrecognizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowprobe_packets_unrecognized_total",
		Help: "Total well-sized packets carrying an unknown flow tag",
	})

	latencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flowprobe_latency_seconds",
		Help:    "One-way latency relative to the embedded send timestamp",
		Buckets: prometheus.ExponentialBuckets(10e-6, 2, 16), // 10µs to ~330ms
	}, []string{"flow"})

	packetsLostTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_packets_lost_total",
		Help: "Sequence numbers skipped over, per flow",
	}, []string{"flow"})

	packetsReorderedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_packets_reordered_total",
		Help: "Packets arriving behind the highest sequence seen, per flow",
	}, []string{"flow"})

	senderRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_sender_restarts_total",
		Help: "Sequence resets interpreted as a new sender run, per flow",
	}, []string{"flow"})

	reporterErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowprobe_reporter_errors_total",
		Help: "Total failures to deliver a sample to a reporter",
	}, []string{"reporter"})
)

// RecordSent counts one transmitted packet and how late it left relative to
// its deadline.
func RecordSent(flow string, lateness time.Duration) {
	packetsSentTotal.WithLabelValues(flow).Inc()
	if lateness < 0 {
		lateness = 0
	}
	sendLateness.WithLabelValues(flow).Observe(lateness.Seconds())
}

// RecordSendError counts a failed send call
func RecordSendError(flow string) {
	sendErrorsTotal.WithLabelValues(flow).Inc()
}

// RecordMarkingFailure counts a socket that could not be marked
func RecordMarkingFailure(flow string) {
	markingFailuresTotal.WithLabelValues(flow).Inc()
}

// RecordReceived counts a classified packet and observes its latency.
func RecordReceived(flow string, latency time.Duration) {
	packetsReceivedTotal.WithLabelValues(flow).Inc()
	latencySeconds.WithLabelValues(flow).Observe(latency.Seconds())
}

func RecordMalformed() {
	datagramsMalformedTotal.Inc()
}

func RecordUnrecognized() {
	packetsUnrecognizedTotal.Inc()
}

// RecordLoss adds n skipped sequence numbers for flow
func RecordLoss(flow string, n uint64) {
	packetsLostTotal.WithLabelValues(flow).Add(float64(n))
}

func RecordReorder(flow string) {
	packetsReorderedTotal.WithLabelValues(flow).Inc()
}

func RecordRestart(flow string) {
	senderRestartsTotal.WithLabelValues(flow).Inc()
}

func RecordReporterError(reporter string) {
	reporterErrorsTotal.WithLabelValues(reporter).Inc()
}
