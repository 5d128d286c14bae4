// Package sender implements the time-triggered probe transmitter.
//
// Deadlines are absolute: packet i is due at start + (i+1)*period no matter
// how long earlier iterations took, so per-iteration overhead never
// accumulates into drift. A sender that falls behind sends immediately until
// it has caught up with the schedule.
package sender

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/flowprobe/internal/config"
	"github.com/zsiec/flowprobe/internal/errors"
	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/internal/metrics"
	"github.com/zsiec/flowprobe/internal/wire"
)

// Config describes one sender run.
type Config struct {
	Destination string
	Port        int
	Period      time.Duration
	Count       uint64
	Flow        wire.Flow

	// Mark requests that TOS be applied to the socket before sending.
	Mark bool
	TOS  int

	WriteBufferSize int
}

// MarkingPolicy returns the marking a flow asks for: control traffic gets
// the configured elevated TOS, logging traffic stays unmarked unless a
// non-zero logging TOS is configured.
func MarkingPolicy(flow wire.Flow, cfg config.SenderConfig) (mark bool, tos int) {
	switch flow {
	case wire.FlowControl:
		return true, cfg.ControlTOS
	default:
		return cfg.LoggingTOS != 0, cfg.LoggingTOS
	}
}

// Result summarises a run. FirstSend and LastSend are offsets from the run
// start, matching the timestamps carried in the packets.
type Result struct {
	RunID     string
	Sent      uint64
	FirstSend time.Duration
	LastSend  time.Duration
	Cancelled bool
}

// Sender emits Count packets of one flow, one per Period.
type Sender struct {
	cfg    Config
	raddr  *net.UDPAddr
	logger logger.Logger
	dial   Dialer
}

// New validates cfg. Destination must be an IP literal; anything else is an
// invalid-destination error and nothing is opened.
func New(cfg Config, log logger.Logger) (*Sender, error) {
	ip := net.ParseIP(cfg.Destination)
	if ip == nil {
		return nil, errors.NewInvalidDestinationError(cfg.Destination)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid destination port: %d", cfg.Port))
	}
	if cfg.Period <= 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("period must be positive, got %s", cfg.Period))
	}
	if !cfg.Flow.Known() {
		return nil, errors.NewValidationError(fmt.Sprintf("cannot send flow %s", cfg.Flow))
	}
	if cfg.Mark && (cfg.TOS < 0 || cfg.TOS > 0xff) {
		return nil, errors.NewValidationError(fmt.Sprintf("traffic class out of range: %d", cfg.TOS))
	}

	s := &Sender{
		cfg:   cfg,
		raddr: &net.UDPAddr{IP: ip, Port: cfg.Port},
		logger: log.WithFields(map[string]interface{}{
			"component":   "sender",
			"flow":        cfg.Flow.String(),
			"destination": net.JoinHostPort(cfg.Destination, strconv.Itoa(cfg.Port)),
		}),
	}
	s.dial = s.dialUDP
	return s, nil
}

// SetDialer replaces how the outbound socket is opened.
func (s *Sender) SetDialer(d Dialer) {
	s.dial = d
}

// Run opens the socket, applies the marking and sends the configured number
// of packets. It returns early only on a send failure, which is fatal and
// not retried, or when ctx is cancelled, which yields the partial result
// with Cancelled set and a nil error.
func (s *Sender) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.New().String()}
	log := s.logger.WithField("run_id", res.RunID)
	flow := s.cfg.Flow.String()

	conn, err := s.dial(ctx, s.raddr)
	if err != nil {
		return res, errors.NewSetupError(err, "failed to open UDP socket", true)
	}
	defer conn.Close()

	s.applyMarking(conn, log)

	log.WithFields(map[string]interface{}{
		"period":  s.cfg.Period,
		"packets": s.cfg.Count,
	}).Info("Sending probe packets")

	buf := make([]byte, wire.WireSize)
	start := time.Now()
	next := start

	for seq := uint64(0); seq < s.cfg.Count; seq++ {
		next = next.Add(s.cfg.Period)
		if err := sleepUntil(ctx, next); err != nil {
			res.Cancelled = true
			log.WithField("sent", res.Sent).Info("Sender cancelled")
			return res, nil
		}

		now := time.Now()
		sendTime := now.Sub(start)
		pkt := wire.FlowPacket{
			Flow:       s.cfg.Flow,
			Sequence:   seq,
			SendTimeNs: sendTime.Nanoseconds(),
		}
		if _, err := pkt.MarshalTo(buf); err != nil {
			return res, err
		}

		if _, err := conn.Write(buf); err != nil {
			metrics.RecordSendError(flow)
			return res, errors.NewTransportError(err, fmt.Sprintf("send failed at sequence %d", seq))
		}

		metrics.RecordSent(flow, now.Sub(next))
		if res.Sent == 0 {
			res.FirstSend = sendTime
		}
		res.LastSend = sendTime
		res.Sent++
	}

	log.WithFields(map[string]interface{}{
		"sent":    res.Sent,
		"elapsed": res.LastSend,
	}).Info("Done sending")
	return res, nil
}

// applyMarking requests the configured traffic class. Failure leaves the
// socket unmarked and the run continues.
func (s *Sender) applyMarking(conn Conn, log logger.Logger) {
	if !s.cfg.Mark {
		return
	}

	m, ok := conn.(Marker)
	if !ok {
		metrics.RecordMarkingFailure(s.cfg.Flow.String())
		log.Warn("Connection does not support priority marking; sending unmarked")
		return
	}

	if err := m.SetTrafficClass(s.cfg.TOS); err != nil {
		metrics.RecordMarkingFailure(s.cfg.Flow.String())
		log.WithError(errors.NewSetupError(err, "failed to apply priority marking", false)).
			Warn("Sending unmarked")
		return
	}

	log.WithField("tos", fmt.Sprintf("0x%02x", s.cfg.TOS)).Debug("Priority marking applied")
}

// sleepUntil blocks until the absolute deadline or ctx is done.
func sleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
