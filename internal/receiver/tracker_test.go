package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceTracker(t *testing.T) {
	tests := []struct {
		name      string
		threshold uint64
		seqs      []uint64
		events    []SequenceEvent
		want      TrackerStats
	}{
		{
			name:      "in order",
			threshold: 1000,
			seqs:      []uint64{0, 1, 2, 3},
			events:    []SequenceEvent{SeqFirst, SeqInOrder, SeqInOrder, SeqInOrder},
			want:      TrackerStats{HighestSequence: 3},
		},
		{
			name:      "gap counts loss",
			threshold: 1000,
			seqs:      []uint64{0, 1, 5},
			events:    []SequenceEvent{SeqFirst, SeqInOrder, SeqGap},
			want:      TrackerStats{HighestSequence: 5, Lost: 3},
		},
		{
			name:      "late arrival moves from lost to reordered",
			threshold: 1000,
			seqs:      []uint64{0, 2, 1},
			events:    []SequenceEvent{SeqFirst, SeqGap, SeqReordered},
			want:      TrackerStats{HighestSequence: 2, Reordered: 1},
		},
		{
			name:      "duplicates",
			threshold: 1000,
			seqs:      []uint64{0, 1, 2, 2, 1},
			events:    []SequenceEvent{SeqFirst, SeqInOrder, SeqInOrder, SeqDuplicate, SeqDuplicate},
			want:      TrackerStats{HighestSequence: 2, Duplicates: 2},
		},
		{
			name:      "restart",
			threshold: 10,
			seqs:      []uint64{0, 50, 0, 1},
			events:    []SequenceEvent{SeqFirst, SeqGap, SeqRestart, SeqInOrder},
			want:      TrackerStats{HighestSequence: 1, Lost: 49, Restarts: 1},
		},
		{
			name:      "short run repeated",
			threshold: 1000,
			seqs:      []uint64{0, 1, 2, 3, 4, 0, 1, 2, 3, 4},
			events: []SequenceEvent{
				SeqFirst, SeqInOrder, SeqInOrder, SeqInOrder, SeqInOrder,
				SeqRestart, SeqInOrder, SeqInOrder, SeqInOrder, SeqInOrder,
			},
			want: TrackerStats{HighestSequence: 4, Restarts: 1},
		},
		{
			name:      "new run after a gap",
			threshold: 1000,
			seqs:      []uint64{0, 3, 0, 1},
			events:    []SequenceEvent{SeqFirst, SeqGap, SeqRestart, SeqInOrder},
			want:      TrackerStats{HighestSequence: 1, Lost: 2, Restarts: 1},
		},
		{
			name:      "first packet mid-run is not loss",
			threshold: 1000,
			seqs:      []uint64{500, 501},
			events:    []SequenceEvent{SeqFirst, SeqInOrder},
			want:      TrackerStats{HighestSequence: 501},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewSequenceTracker(tt.threshold)
			for i, seq := range tt.seqs {
				event, _ := tr.Process(seq)
				assert.Equal(t, tt.events[i], event, "sequence %d (index %d)", seq, i)
			}
			assert.Equal(t, tt.want, tr.Stats())
		})
	}
}

func TestSequenceTracker_GapReturnsLostCount(t *testing.T) {
	tr := NewSequenceTracker(100)
	tr.Process(10)
	event, lost := tr.Process(20)
	assert.Equal(t, SeqGap, event)
	assert.Equal(t, uint64(9), lost)
}

func TestSequenceTracker_MissingWindowIsBounded(t *testing.T) {
	tr := NewSequenceTracker(10)
	tr.Process(0)
	tr.Process(5)

	assert.LessOrEqual(t, len(tr.missing), 10)

	// A large jump only remembers the trailing window.
	tr.Process(1_000_000)
	assert.LessOrEqual(t, len(tr.missing), 10)

	event, _ := tr.Process(999_995)
	assert.Equal(t, SeqReordered, event)
}

func TestSequenceEventString(t *testing.T) {
	assert.Equal(t, "gap", SeqGap.String())
	assert.Equal(t, "restart", SeqRestart.String())
	assert.Equal(t, "unknown", SequenceEvent(42).String())
}
