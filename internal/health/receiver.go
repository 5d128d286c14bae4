package health

import (
	"context"
	"fmt"

	"github.com/zsiec/flowprobe/internal/receiver"
)

// ReceiverSource is the part of the receiver the checker looks at.
type ReceiverSource interface {
	Serving() bool
	Stats() receiver.Stats
}

// ReceiverChecker reports down while the receive loop is not running, and
// degraded when most of the traffic it sees is invalid.
type ReceiverChecker struct {
	source ReceiverSource
}

// NewReceiverChecker creates a checker for source.
func NewReceiverChecker(source ReceiverSource) *ReceiverChecker {
	return &ReceiverChecker{source: source}
}

func (c *ReceiverChecker) Name() string {
	return "receiver"
}

func (c *ReceiverChecker) Check(ctx context.Context) error {
	if !c.source.Serving() {
		return fmt.Errorf("receive loop is not running")
	}

	s := c.source.Stats()
	valid := s.Control.Received + s.Logging.Received
	invalid := s.Malformed + s.Unrecognized
	if invalid > valid {
		return Degraded(fmt.Errorf("invalid datagrams (%d) outnumber valid packets (%d)", invalid, valid))
	}
	return nil
}
