package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/flowprobe/internal/logger"
	"github.com/zsiec/flowprobe/internal/receiver"
)

type mockChecker struct {
	name  string
	err   error
	delay time.Duration
}

func (m *mockChecker) Name() string {
	return m.name
}

func (m *mockChecker) Check(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

type fakeReceiver struct {
	serving bool
	stats   receiver.Stats
}

func (f *fakeReceiver) Serving() bool          { return f.serving }
func (f *fakeReceiver) Stats() receiver.Stats { return f.stats }

func TestManager_RunChecks(t *testing.T) {
	m := NewManager(logger.NewNullLogger())
	m.Register(&mockChecker{name: "ok"})
	m.Register(&mockChecker{name: "broken", err: errors.New("broken")})
	m.Register(&mockChecker{name: "slow-but-fine", err: Degraded(errors.New("lagging"))})

	results := m.RunChecks(context.Background())
	require.Len(t, results, 3)

	assert.Equal(t, StatusOK, results["ok"].Status)
	assert.Empty(t, results["ok"].Message)
	assert.Equal(t, StatusDown, results["broken"].Status)
	assert.Equal(t, "broken", results["broken"].Message)
	assert.Equal(t, StatusDegraded, results["slow-but-fine"].Status)
	assert.Equal(t, "lagging", results["slow-but-fine"].Message)

	assert.Equal(t, StatusDown, m.GetOverallStatus())
	assert.Len(t, m.GetResults(), 3)
}

func TestManager_OverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     Status
	}{
		{"no checks", nil, StatusDown},
		{"all ok", []Checker{&mockChecker{name: "a"}, &mockChecker{name: "b"}}, StatusOK},
		{"one degraded", []Checker{&mockChecker{name: "a"}, &mockChecker{name: "b", err: Degraded(errors.New("x"))}}, StatusDegraded},
		{"degraded and down", []Checker{&mockChecker{name: "a", err: errors.New("x")}, &mockChecker{name: "b", err: Degraded(errors.New("y"))}}, StatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(logger.NewNullLogger())
			for _, c := range tt.checkers {
				m.Register(c)
			}
			m.RunChecks(context.Background())
			assert.Equal(t, tt.want, m.GetOverallStatus())
		})
	}
}

func TestManager_CheckTimeout(t *testing.T) {
	m := NewManager(logger.NewNullLogger())
	m.checkTimeout = 20 * time.Millisecond
	m.Register(&mockChecker{name: "hung", delay: time.Second})

	results := m.RunChecks(context.Background())
	assert.Equal(t, StatusDown, results["hung"].Status)
	assert.Equal(t, "Health check timed out", results["hung"].Message)
}

func TestManager_PeriodicChecksStop(t *testing.T) {
	m := NewManager(logger.NewNullLogger())
	m.Register(&mockChecker{name: "ok"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.StartPeriodicChecks(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(m.GetResults()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic checks did not stop")
	}
}

func TestReceiverChecker(t *testing.T) {
	tests := []struct {
		name     string
		receiver *fakeReceiver
		wantErr  bool
		degraded bool
	}{
		{"not serving", &fakeReceiver{}, true, false},
		{"serving idle", &fakeReceiver{serving: true}, false, false},
		{
			name: "mostly valid",
			receiver: &fakeReceiver{serving: true, stats: receiver.Stats{
				Control:   receiver.FlowStats{Received: 10},
				Malformed: 2,
			}},
		},
		{
			name: "mostly invalid",
			receiver: &fakeReceiver{serving: true, stats: receiver.Stats{
				Logging:      receiver.FlowStats{Received: 1},
				Unrecognized: 5,
			}},
			wantErr:  true,
			degraded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewReceiverChecker(tt.receiver)
			assert.Equal(t, "receiver", c.Name())

			err := c.Check(context.Background())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var d *degradedError
			assert.Equal(t, tt.degraded, errors.As(err, &d))
		})
	}
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisChecker(client)
	assert.Equal(t, "redis", c.Name())
	assert.NoError(t, c.Check(context.Background()))

	mr.Close()
	err := c.Check(context.Background())
	require.Error(t, err)
	var d *degradedError
	assert.True(t, errors.As(err, &d))
}

func TestCheckerFunc(t *testing.T) {
	running := false
	c := NewCheckerFunc("sender", func(ctx context.Context) error {
		if !running {
			return errors.New("sender finished")
		}
		return nil
	})

	assert.Equal(t, "sender", c.Name())
	assert.Error(t, c.Check(context.Background()))
	running = true
	assert.NoError(t, c.Check(context.Background()))
}
