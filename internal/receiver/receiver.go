// Package receiver implements the latency-measuring receive loop.
//
// Latency is the receiver's elapsed time since Serve started minus the
// sender's elapsed time carried in the packet. The two epochs are assumed to
// coincide: the figures are only meaningful when sender and receiver are
// started together on one host or run on synchronised clocks. Negative
// values are reported as-is.
package receiver

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/flowprobe/internal/config"
	"github.com/zsiec/flowprobe/internal/errors"
	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/internal/metrics"
	"github.com/zsiec/flowprobe/internal/netutil"
	"github.com/zsiec/flowprobe/internal/report"
	"github.com/zsiec/flowprobe/internal/wire"
)

// readBufferSize is large enough that an oversized datagram arrives with a
// length other than wire.WireSize instead of being silently clipped to it.
const readBufferSize = 2048

// Config describes the receiving socket and reporting cadence.
type Config struct {
	ListenAddr       string
	Port             int
	ReportEvery      uint64
	ReadBufferSize   int
	ReuseAddr        bool
	PollInterval     time.Duration
	RestartThreshold uint64
}

// ConfigFrom builds a Config from the receiver section and a listen port.
func ConfigFrom(rc config.ReceiverConfig, port int) Config {
	return Config{
		ListenAddr:       rc.ListenAddr,
		Port:             port,
		ReportEvery:      rc.ReportEvery,
		ReadBufferSize:   rc.ReadBufferSize,
		ReuseAddr:        rc.ReuseAddr,
		PollInterval:     rc.PollInterval,
		RestartThreshold: rc.RestartThreshold,
	}
}

// FlowStats is the per-flow part of Stats.
type FlowStats struct {
	Received uint64 `json:"received"`
	TrackerStats
}

// Stats is a point-in-time view of the receiver counters.
type Stats struct {
	ListenAddr   string    `json:"listen_addr"`
	Serving      bool      `json:"serving"`
	Control      FlowStats `json:"control"`
	Logging      FlowStats `json:"logging"`
	Malformed    uint64    `json:"malformed"`
	Unrecognized uint64    `json:"unrecognized"`
}

type flowState struct {
	received atomic.Uint64
	tracker  *SequenceTracker
}

func (f *flowState) snapshot() FlowStats {
	return FlowStats{
		Received:     f.received.Load(),
		TrackerStats: f.tracker.Stats(),
	}
}

// Receiver reads probe packets from one UDP socket. It keeps no per-peer
// state; all senders of a flow share its counters.
type Receiver struct {
	cfg      Config
	logger   logger.Logger
	reporter report.Reporter

	mu   sync.Mutex
	conn *net.UDPConn

	serving atomic.Bool
	flows   map[wire.Flow]*flowState

	malformed    atomic.Uint64
	unrecognized atomic.Uint64
}

// New validates cfg and creates a receiver that reports to reporter.
func New(cfg Config, log logger.Logger, reporter report.Reporter) (*Receiver, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid listen port: %d", cfg.Port))
	}
	if cfg.ReportEvery == 0 {
		return nil, errors.NewValidationError("report interval must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.NewValidationError("poll interval must be positive")
	}
	if reporter == nil {
		return nil, errors.NewValidationError("reporter is required")
	}

	flows := make(map[wire.Flow]*flowState, len(wire.KnownFlows))
	for _, f := range wire.KnownFlows {
		flows[f] = &flowState{tracker: NewSequenceTracker(cfg.RestartThreshold)}
	}

	return &Receiver{
		cfg:      cfg,
		logger:   logger.WithComponent(log, "receiver"),
		reporter: reporter,
		flows:    flows,
	}, nil
}

// Listen binds the receiving socket. Address reuse failures are warnings;
// a bind failure is a fatal setup error.
func (r *Receiver) Listen(ctx context.Context) error {
	addr := net.JoinHostPort(r.cfg.ListenAddr, strconv.Itoa(r.cfg.Port))

	conn, err := netutil.ListenUDP(ctx, addr, r.cfg.ReuseAddr, func(err error) {
		r.logger.WithError(err).Warn("Failed to enable address reuse, continuing without it")
	})
	if err != nil {
		return errors.NewSetupError(err, fmt.Sprintf("failed to bind %s", addr), true)
	}

	if r.cfg.ReadBufferSize > 0 {
		if err := conn.SetReadBuffer(r.cfg.ReadBufferSize); err != nil {
			r.logger.WithError(err).Warn("Failed to set socket read buffer size")
		}
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	r.logger.WithField("addr", conn.LocalAddr().String()).Info("Receiver listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (r *Receiver) Addr() *net.UDPAddr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Serving reports whether Serve is running.
func (r *Receiver) Serving() bool {
	return r.serving.Load()
}

// Close releases the socket.
func (r *Receiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// Serve runs the receive loop until ctx is cancelled or the socket fails.
// The latency epoch is captured once on entry. Cancellation returns nil; a
// receive error returns a fatal transport error.
func (r *Receiver) Serve(ctx context.Context) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return errors.NewSetupError(nil, "receiver is not listening", true)
	}

	r.serving.Store(true)
	defer r.serving.Store(false)

	start := time.Now()
	buf := make([]byte, readBufferSize)

	for {
		if ctx.Err() != nil {
			r.logger.Info("Receiver stopped")
			return nil
		}

		if err := conn.SetReadDeadline(time.Now().Add(r.cfg.PollInterval)); err != nil {
			return errors.NewTransportError(err, "failed to set read deadline")
		}

		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			r.logger.WithError(err).Error("Receive failed")
			return errors.NewTransportError(err, "receive failed")
		}

		source := ""
		if from != nil {
			source = from.String()
		}
		if err := r.Handle(ctx, buf[:n], source, time.Since(start)); err != nil && !errors.IsType(err, errors.ErrorTypeMalformed) {
			r.logger.WithError(err).Warn("Failed to report sample")
		}
	}
}

// Handle processes one datagram received elapsed after the receiver epoch.
// A datagram of the wrong size is discarded with a non-fatal malformed
// error and leaves every flow counter untouched. Any other error comes from
// the reporter; the packet has still been counted.
func (r *Receiver) Handle(ctx context.Context, datagram []byte, source string, elapsed time.Duration) error {
	pkt, err := wire.Unmarshal(datagram)
	if err != nil {
		r.malformed.Add(1)
		metrics.RecordMalformed()
		r.logger.WithFields(logger.Fields{
			"size":     len(datagram),
			"expected": wire.WireSize,
			"source":   source,
		}).Warn("Discarding datagram of unexpected size")
		return err
	}

	latency := elapsed - time.Duration(pkt.SendTimeNs)
	sample := report.Sample{
		Flow:       pkt.Flow,
		Sequence:   pkt.Sequence,
		SendTimeNs: pkt.SendTimeNs,
		Latency:    latency,
		Source:     source,
		ReceivedAt: time.Now(),
	}

	state, known := r.flows[pkt.Flow]
	if !known {
		r.unrecognized.Add(1)
		metrics.RecordUnrecognized()
		return r.reporter.ReportUnrecognized(ctx, sample)
	}

	count := state.received.Add(1)
	flow := pkt.Flow.String()
	metrics.RecordReceived(flow, latency)
	r.track(state, pkt)

	if count%r.cfg.ReportEvery != 0 {
		return nil
	}
	sample.Count = count
	return r.reporter.ReportLatency(ctx, sample)
}

func (r *Receiver) track(state *flowState, pkt wire.FlowPacket) {
	flow := pkt.Flow.String()
	event, lost := state.tracker.Process(pkt.Sequence)

	switch event {
	case SeqGap:
		metrics.RecordLoss(flow, lost)
	case SeqReordered:
		metrics.RecordReorder(flow)
	case SeqRestart:
		metrics.RecordRestart(flow)
		r.logger.WithFields(logger.Fields{
			"flow":     flow,
			"sequence": pkt.Sequence,
		}).Info("Sender restart detected")
	case SeqDuplicate:
		r.logger.WithFields(logger.Fields{
			"flow":     flow,
			"sequence": pkt.Sequence,
		}).Debug("Duplicate sequence number")
	}
}

// Stats returns a snapshot of the receiver counters.
func (r *Receiver) Stats() Stats {
	s := Stats{
		Serving:      r.serving.Load(),
		Control:      r.flows[wire.FlowControl].snapshot(),
		Logging:      r.flows[wire.FlowLogging].snapshot(),
		Malformed:    r.malformed.Load(),
		Unrecognized: r.unrecognized.Load(),
	}
	if addr := r.Addr(); addr != nil {
		s.ListenAddr = addr.String()
	}
	return s
}
