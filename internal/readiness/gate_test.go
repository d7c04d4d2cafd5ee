package readiness

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProbe fails the first failures calls, then succeeds.
type flakyProbe struct {
	failures int
	calls    int
}

func (p *flakyProbe) probe(context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func newTestGate(probe Probe, buf *bytes.Buffer) (*Gate, *[]time.Duration) {
	g := New(probe, slog.New(slog.NewTextHandler(buf, nil)))
	var sleeps []time.Duration
	g.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return g, &sleeps
}

func TestAwaitReady_SucceedsOnAttemptK(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		failures    int
	}{
		{"first attempt", 5, 0},
		{"third attempt", 5, 2},
		{"last attempt", 4, 3},
		{"single attempt budget", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := &flakyProbe{failures: tt.failures}
			g, sleeps := newTestGate(p.probe, &buf)

			res, err := g.AwaitReady(tt.maxAttempts, time.Second)

			require.NoError(t, err)
			k := tt.failures + 1
			assert.Equal(t, k, res.Attempts)
			assert.Equal(t, k, p.calls)
			assert.Len(t, *sleeps, k-1)
			assert.Equal(t, time.Duration(k-1)*time.Second, res.Waited)
		})
	}
}

func TestAwaitReady_ExhaustsAfterExactlyN(t *testing.T) {
	var buf bytes.Buffer
	p := &flakyProbe{failures: 100}
	g, sleeps := newTestGate(p.probe, &buf)

	_, err := g.AwaitReady(4, 500*time.Millisecond)

	require.ErrorIs(t, err, ErrExhaustedRetries)
	assert.Equal(t, 4, p.calls)
	assert.Len(t, *sleeps, 3, "no sleep after the final attempt")
	for _, d := range *sleeps {
		assert.Equal(t, 500*time.Millisecond, d)
	}
}

func TestAwaitReady_FailsTwiceThenSucceedsWithZeroDelay(t *testing.T) {
	var buf bytes.Buffer
	p := &flakyProbe{failures: 2}
	g, _ := newTestGate(p.probe, &buf)

	res, err := g.AwaitReady(3, 0)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
}

func TestAwaitReady_LogsBySeverity(t *testing.T) {
	var buf bytes.Buffer
	p := &flakyProbe{failures: 1}
	g, _ := newTestGate(p.probe, &buf)

	_, err := g.AwaitReady(3, 0)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "level=WARN msg=\"datastore unavailable\" attempt=1")
	assert.Contains(t, out, "level=INFO msg=\"datastore available\" attempt=2")

	buf.Reset()
	p = &flakyProbe{failures: 10}
	g, _ = newTestGate(p.probe, &buf)
	_, err = g.AwaitReady(2, 0)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "level=ERROR msg=\"could not connect to datastore\"")
}

func TestAwaitReady_InvalidArgs(t *testing.T) {
	var buf bytes.Buffer
	p := &flakyProbe{}
	g, _ := newTestGate(p.probe, &buf)

	_, err := g.AwaitReady(0, time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgs)

	_, err = g.AwaitReady(3, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgs)
	assert.Zero(t, p.calls)
}

func TestAwaitReady_ProbeGetsDeadline(t *testing.T) {
	var buf bytes.Buffer
	var hadDeadline bool
	g, _ := newTestGate(func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return nil
	}, &buf)
	g.ProbeTimeout = time.Second

	_, err := g.AwaitReady(1, 0)

	require.NoError(t, err)
	assert.True(t, hadDeadline)
}

func TestMustAwaitReady_ExitsWithUnavailableCode(t *testing.T) {
	var buf bytes.Buffer
	p := &flakyProbe{failures: 10}
	g, _ := newTestGate(p.probe, &buf)
	code := -1
	g.exit = func(c int) { code = c }

	g.MustAwaitReady(3, 0)

	assert.Equal(t, ExitCodeUnavailable, code)
	assert.Equal(t, 3, p.calls)
}

func TestMustAwaitReady_NoExitOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	p := &flakyProbe{failures: 1}
	g, _ := newTestGate(p.probe, &buf)
	exited := false
	g.exit = func(int) { exited = true }

	res := g.MustAwaitReady(3, 0)

	assert.False(t, exited)
	assert.Equal(t, 2, res.Attempts)
}

func TestSQLProbe(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("dial tcp: connection refused"))
	mock.ExpectPing()

	var buf bytes.Buffer
	g, _ := newTestGate(SQLProbe(db), &buf)
	res, err := g.AwaitReady(3, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
