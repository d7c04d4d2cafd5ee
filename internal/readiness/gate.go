// Package readiness blocks process startup until the datastore accepts
// connections.  It retries a lightweight probe a bounded number of times
// with a fixed delay and reports exhaustion as a fatal condition.
package readiness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const (
	// DefaultMaxAttempts and DefaultDelay match the wait_for_db defaults.
	DefaultMaxAttempts = 30
	DefaultDelay       = 2 * time.Second
	// DefaultProbeTimeout bounds a single probe attempt.
	DefaultProbeTimeout = 5 * time.Second

	// ExitCodeUnavailable is the process status used when the datastore
	// never became reachable.  1 is a generic failure (log.Fatal) and 2 is
	// a Go runtime panic, so 3 is unambiguous for orchestrators.
	ExitCodeUnavailable = 3
)

var (
	// ErrExhaustedRetries is returned when every attempt failed.
	ErrExhaustedRetries = errors.New("readiness: datastore unavailable after max attempts")
	// ErrInvalidArgs is returned for a non-positive attempt count or a
	// negative delay.
	ErrInvalidArgs = errors.New("readiness: max attempts must be positive and delay non-negative")
)

// Probe attempts a single connection to the dependency.  A non-nil error is
// treated as a transient failure.
type Probe func(ctx context.Context) error

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SQLProbe returns a probe pinging db.
func SQLProbe(db *sql.DB) Probe {
	return PingProbe(db)
}

// PingProbe adapts any Pinger to a Probe.
func PingProbe(p Pinger) Probe {
	return func(ctx context.Context) error { return p.PingContext(ctx) }
}

// Result describes a successful wait.
type Result struct {
	Attempts int           // attempt number on which the probe succeeded
	Waited   time.Duration // total time spent sleeping between attempts
}

// Gate waits for a dependency to become reachable.
type Gate struct {
	Probe        Probe
	Logger       *slog.Logger
	ProbeTimeout time.Duration

	sleep func(time.Duration)
	exit  func(int)
}

// New returns a Gate using probe.  logger may be nil.
func New(probe Probe, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		Probe:        probe,
		Logger:       logger,
		ProbeTimeout: DefaultProbeTimeout,
		sleep:        time.Sleep,
		exit:         os.Exit,
	}
}

// AwaitReady probes up to maxAttempts times, sleeping delay between failed
// attempts.  It never sleeps after the final attempt, so the worst case
// blocking time is (maxAttempts-1)*delay plus probe time.  There is no
// cancellation: nothing else runs until this returns.
func (g *Gate) AwaitReady(maxAttempts int, delay time.Duration) (Result, error) {
	if maxAttempts <= 0 || delay < 0 {
		return Result{}, ErrInvalidArgs
	}

	var waited time.Duration
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := g.probeOnce()
		if err == nil {
			g.Logger.Info("datastore available", "attempt", attempt, "max_attempts", maxAttempts)
			return Result{Attempts: attempt, Waited: waited}, nil
		}

		g.Logger.Warn("datastore unavailable",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"retry_in", delay.String(),
			"error", err,
		)
		if attempt < maxAttempts {
			g.sleep(delay)
			waited += delay
		}
	}

	g.Logger.Error("could not connect to datastore", "max_attempts", maxAttempts)
	return Result{Attempts: maxAttempts, Waited: waited}, fmt.Errorf("%w (%d)", ErrExhaustedRetries, maxAttempts)
}

// MustAwaitReady calls AwaitReady and terminates the process with
// ExitCodeUnavailable when the datastore never became reachable.
func (g *Gate) MustAwaitReady(maxAttempts int, delay time.Duration) Result {
	res, err := g.AwaitReady(maxAttempts, delay)
	if err != nil {
		if errors.Is(err, ErrExhaustedRetries) {
			g.exit(ExitCodeUnavailable)
		} else {
			g.Logger.Error("readiness gate misconfigured", "error", err)
			g.exit(1)
		}
	}
	return res
}

func (g *Gate) probeOnce() error {
	timeout := g.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Probe(ctx)
}
