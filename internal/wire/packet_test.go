package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/flowprobe/internal/errors"
)

func TestFlowPacket_RoundTrip(t *testing.T) {
	packets := []FlowPacket{
		{Flow: FlowControl, Sequence: 0, SendTimeNs: 0},
		{Flow: FlowLogging, Sequence: 1, SendTimeNs: 1_000_000},
		{Flow: FlowControl, Sequence: math.MaxUint64, SendTimeNs: math.MaxInt64},
		{Flow: FlowLogging, Sequence: 42, SendTimeNs: math.MinInt64},
		{Flow: FlowLogging, Sequence: 7, SendTimeNs: -1},
		{Flow: Flow(0), Sequence: 3, SendTimeNs: 5},
		{Flow: Flow(99), Sequence: 1 << 40, SendTimeNs: 123456789},
		{Flow: Flow(255), Sequence: 0x0102030405060708, SendTimeNs: 0x0807060504030201},
	}

	for _, p := range packets {
		t.Run(p.Flow.String(), func(t *testing.T) {
			buf := p.Marshal()
			require.Len(t, buf, WireSize)

			got, err := Unmarshal(buf)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestFlowPacket_Layout(t *testing.T) {
	p := FlowPacket{Flow: FlowLogging, Sequence: 0x0102030405060708, SendTimeNs: -2}

	buf := p.Marshal()

	assert.Equal(t, []byte{
		0x02,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfe,
	}, buf)
}

func TestFlowPacket_MarshalTo(t *testing.T) {
	p := FlowPacket{Flow: FlowControl, Sequence: 9, SendTimeNs: 10}

	buf := make([]byte, 64)
	n, err := p.MarshalTo(buf)
	require.NoError(t, err)
	assert.Equal(t, WireSize, n)
	assert.Equal(t, p.Marshal(), buf[:n])

	_, err = p.MarshalTo(make([]byte, WireSize-1))
	assert.Error(t, err)
}

func TestUnmarshal_RejectsWrongSize(t *testing.T) {
	sizes := []int{0, 1, 16, 18, 24, 1500}

	for _, size := range sizes {
		_, err := Unmarshal(make([]byte, size))
		require.Error(t, err, "size %d", size)
		assert.True(t, errors.IsType(err, errors.ErrorTypeMalformed), "size %d", size)
		assert.False(t, errors.IsFatal(err))
	}
}

func TestFlow(t *testing.T) {
	assert.Equal(t, "control", FlowControl.String())
	assert.Equal(t, "logging", FlowLogging.String())
	assert.Equal(t, "unknown(99)", Flow(99).String())

	assert.True(t, FlowControl.Known())
	assert.True(t, FlowLogging.Known())
	assert.False(t, Flow(0).Known())
	assert.False(t, Flow(99).Known())

	f, err := ParseFlow("control")
	require.NoError(t, err)
	assert.Equal(t, FlowControl, f)

	f, err = ParseFlow("LOGGING")
	require.NoError(t, err)
	assert.Equal(t, FlowLogging, f)

	_, err = ParseFlow("video")
	assert.Error(t, err)
}
