package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/zsiec/flowprobe/internal/wire"
)

const usageText = `Usage:
  flowprobe [flags] server <port>
  flowprobe [flags] client control <server_ip> <port> <period_us> <num_packets>
  flowprobe [flags] client logging <server_ip> <port> <period_us> <num_packets>

Latency figures assume sender and receiver share a time origin: run both on
one host started together, or on hosts with synchronised clocks.

Flags:
`

// maxPeriodUs is the largest period whose nanosecond value fits a time.Duration.
const maxPeriodUs = math.MaxInt64 / int64(time.Microsecond)

type mode int

const (
	modeServer mode = iota
	modeClient
)

// invocation is a validated command line.
type invocation struct {
	mode mode
	port int

	// client only
	flow        wire.Flow
	destination string
	period      time.Duration
	count       uint64
}

// usageError is a malformed command line; main prints usage and exits 1.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// parseArgs validates the positional arguments without touching the network.
func parseArgs(args []string) (*invocation, error) {
	if len(args) == 0 {
		return nil, usagef("missing mode")
	}

	switch args[0] {
	case "server":
		if len(args) != 2 {
			return nil, usagef("server takes exactly one argument: <port>")
		}
		port, err := parsePort(args[1])
		if err != nil {
			return nil, err
		}
		return &invocation{mode: modeServer, port: port}, nil

	case "client":
		if len(args) < 2 {
			return nil, usagef("client requires a flow: control or logging")
		}
		flow, err := wire.ParseFlow(args[1])
		if err != nil {
			return nil, usagef("unknown client flow mode: %s (expected 'control' or 'logging')", args[1])
		}
		if len(args) != 6 {
			return nil, usagef("client %s takes <server_ip> <port> <period_us> <num_packets>", args[1])
		}
		port, err := parsePort(args[3])
		if err != nil {
			return nil, err
		}
		periodUs, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			return nil, usagef("invalid period_us %q: not an integer", args[4])
		}
		if periodUs <= 0 {
			return nil, usagef("invalid period_us %d: must be positive", periodUs)
		}
		if periodUs > maxPeriodUs {
			return nil, usagef("invalid period_us %d: exceeds %d", periodUs, maxPeriodUs)
		}
		count, err := strconv.ParseUint(args[5], 10, 64)
		if err != nil {
			return nil, usagef("invalid num_packets %q", args[5])
		}
		return &invocation{
			mode:        modeClient,
			port:        port,
			flow:        flow,
			destination: args[2],
			period:      time.Duration(periodUs) * time.Microsecond,
			count:       count,
		}, nil

	default:
		return nil, usagef("unknown mode: %s", args[0])
	}
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, usagef("invalid port %q: expected 1-65535", s)
	}
	return port, nil
}

func printUsage(w io.Writer, printFlags func()) {
	fmt.Fprint(w, usageText)
	printFlags()
}
