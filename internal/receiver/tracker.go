package receiver

import "sync"

const defaultMissingWindow = 1024

// SequenceEvent classifies one sequence number against what a flow has seen.
type SequenceEvent int

const (
	SeqFirst SequenceEvent = iota
	SeqInOrder
	SeqGap
	SeqReordered
	SeqDuplicate
	SeqRestart
)

func (e SequenceEvent) String() string {
	switch e {
	case SeqFirst:
		return "first"
	case SeqInOrder:
		return "in_order"
	case SeqGap:
		return "gap"
	case SeqReordered:
		return "reordered"
	case SeqDuplicate:
		return "duplicate"
	case SeqRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// TrackerStats is a snapshot of a SequenceTracker.
type TrackerStats struct {
	HighestSequence uint64 `json:"highest_sequence"`
	Lost            uint64 `json:"lost"`
	Reordered       uint64 `json:"reordered"`
	Duplicates      uint64 `json:"duplicates"`
	Restarts        uint64 `json:"restarts"`
}

// SequenceTracker follows the sequence numbers of one flow. It only
// observes; packets are never held back or reordered.
//
// Skipped sequence numbers count as lost until they show up late, at which
// point they are moved to reordered. Every sender run starts at sequence 0,
// so a 0 behind the highest seen, or any sequence number more than
// restartThreshold behind it, is taken as a new sender run.
type SequenceTracker struct {
	mu sync.Mutex

	initialized bool
	highest     uint64

	lost       uint64
	reordered  uint64
	duplicates uint64
	restarts   uint64

	// Sequence numbers counted as lost within restartThreshold of highest.
	missing          map[uint64]struct{}
	restartThreshold uint64
}

// NewSequenceTracker creates a tracker. A zero threshold disables restart
// detection.
func NewSequenceTracker(restartThreshold uint64) *SequenceTracker {
	return &SequenceTracker{
		missing:          make(map[uint64]struct{}),
		restartThreshold: restartThreshold,
	}
}

// Process records seq and returns how it was classified along with the
// number of sequence numbers newly counted as lost.
func (t *SequenceTracker) Process(seq uint64) (SequenceEvent, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		t.initialized = true
		t.highest = seq
		return SeqFirst, 0
	}

	switch {
	case seq == t.highest:
		t.duplicates++
		return SeqDuplicate, 0

	case seq > t.highest:
		gap := seq - t.highest - 1
		if gap > 0 {
			t.lost += gap
			t.rememberMissing(t.highest+1, seq)
		}
		t.highest = seq
		t.pruneMissing()
		if gap > 0 {
			return SeqGap, gap
		}
		return SeqInOrder, 0

	default:
		_, late := t.missing[seq]
		if (seq == 0 && !late) || (t.restartThreshold > 0 && t.highest-seq > t.restartThreshold) {
			t.restarts++
			t.highest = seq
			t.missing = make(map[uint64]struct{})
			return SeqRestart, 0
		}
		if late {
			delete(t.missing, seq)
			t.lost--
			t.reordered++
			return SeqReordered, 0
		}
		t.duplicates++
		return SeqDuplicate, 0
	}
}

// window is how far behind highest a late arrival can still be matched.
func (t *SequenceTracker) window() uint64 {
	if t.restartThreshold == 0 {
		return defaultMissingWindow
	}
	return t.restartThreshold
}

// rememberMissing records [from, to) as missing, clipped to the window.
func (t *SequenceTracker) rememberMissing(from, to uint64) {
	if w := t.window(); to-from > w {
		from = to - w
	}
	for s := from; s < to; s++ {
		t.missing[s] = struct{}{}
	}
}

func (t *SequenceTracker) pruneMissing() {
	w := t.window()
	if uint64(len(t.missing)) <= w {
		return
	}
	for s := range t.missing {
		if t.highest-s > w {
			delete(t.missing, s)
		}
	}
}

// Stats returns a snapshot of the tracker.
func (t *SequenceTracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return TrackerStats{
		HighestSequence: t.highest,
		Lost:            t.lost,
		Reordered:       t.reordered,
		Duplicates:      t.duplicates,
		Restarts:        t.restarts,
	}
}
