// Package wire defines the probe datagram and its flow classification.
//
// A FlowPacket travels as a fixed 17-byte record, big-endian, no padding:
//
//	offset 0   flow        uint8
//	offset 1   sequence    uint64
//	offset 9   send_time   int64, ns since the sender's run start
//
// The format carries no version; its length is the only validity check.
package wire

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/zsiec/flowprobe/internal/errors"
)

const (
	flowOffset     = 0
	sequenceOffset = 1
	sendTimeOffset = 9

	// WireSize is the exact length of an encoded FlowPacket.
	WireSize = 17
)

// Flow tags a packet with its traffic class.
type Flow uint8

const (
	FlowControl Flow = 1
	FlowLogging Flow = 2
)

// KnownFlows lists the flows a receiver keeps counters for.
var KnownFlows = []Flow{FlowControl, FlowLogging}

// Known reports whether f is one of the defined flow tags.
func (f Flow) Known() bool {
	return f == FlowControl || f == FlowLogging
}

func (f Flow) String() string {
	switch f {
	case FlowControl:
		return "control"
	case FlowLogging:
		return "logging"
	default:
		return "unknown(" + strconv.Itoa(int(f)) + ")"
	}
}

// ParseFlow maps a flow name as used on the command line to its tag.
func ParseFlow(s string) (Flow, error) {
	switch strings.ToLower(s) {
	case "control":
		return FlowControl, nil
	case "logging":
		return FlowLogging, nil
	default:
		return 0, fmt.Errorf("unknown flow %q (expected 'control' or 'logging')", s)
	}
}

// FlowPacket is one probe datagram.
type FlowPacket struct {
	Flow       Flow
	Sequence   uint64
	SendTimeNs int64
}

// Marshal encodes the packet into a new WireSize buffer.
func (p FlowPacket) Marshal() []byte {
	buf := make([]byte, WireSize)
	p.put(buf)
	return buf
}

// MarshalTo encodes the packet into buf, which must hold at least WireSize
// bytes. It returns the number of bytes written.
func (p FlowPacket) MarshalTo(buf []byte) (int, error) {
	if len(buf) < WireSize {
		return 0, fmt.Errorf("buffer too small: %d bytes, need %d", len(buf), WireSize)
	}
	p.put(buf)
	return WireSize, nil
}

func (p FlowPacket) put(buf []byte) {
	buf[flowOffset] = byte(p.Flow)
	binary.BigEndian.PutUint64(buf[sequenceOffset:sendTimeOffset], p.Sequence)
	binary.BigEndian.PutUint64(buf[sendTimeOffset:WireSize], uint64(p.SendTimeNs))
}

// Unmarshal decodes a datagram. Any length other than WireSize yields a
// malformed-datagram error and the bytes are not interpreted.
func Unmarshal(b []byte) (FlowPacket, error) {
	if len(b) != WireSize {
		return FlowPacket{}, errors.NewMalformedError(
			fmt.Sprintf("unexpected datagram size: %d bytes, want %d", len(b), WireSize)).
			WithDetails(map[string]interface{}{"size": len(b)})
	}

	return FlowPacket{
		Flow:       Flow(b[flowOffset]),
		Sequence:   binary.BigEndian.Uint64(b[sequenceOffset:sendTimeOffset]),
		SendTimeNs: int64(binary.BigEndian.Uint64(b[sendTimeOffset:WireSize])),
	}, nil
}
