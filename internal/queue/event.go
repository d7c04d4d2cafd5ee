// Package queue defines message payloads exchanged over the message broker
// and the consumer that persists them.
package queue

import (
	"fmt"
	"time"
)

// SecurityQueue is the durable queue carrying authentication security events.
const SecurityQueue = "auth.security"

// SecurityEventKind names what happened.
type SecurityEventKind string

const (
	// EventRefreshReuse means a refresh token was presented after it had
	// already been rotated or revoked, usually a sign of token theft.
	EventRefreshReuse SecurityEventKind = "refresh_reuse_detected"
	// EventLogoutAll means a user revoked every session.
	EventLogoutAll SecurityEventKind = "logout_all"
)

// SecurityEvent is published when the session layer observes something an
// operator should be able to audit later.  It carries enough to correlate
// with application logs without querying the primary database.
type SecurityEvent struct {
	Kind       SecurityEventKind `json:"kind"`
	UserID     uint64            `json:"user_id"`
	JTI        string            `json:"jti,omitempty"`
	Revoked    int64             `json:"revoked,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// LogLine renders the event as a single human-friendly line.
func (e SecurityEvent) LogLine() string {
	line := fmt.Sprintf("[%s] %s | user_id=%d",
		e.OccurredAt.UTC().Format(time.RFC3339), e.Kind, e.UserID)
	if e.JTI != "" {
		line += " | jti=" + e.JTI
	}
	if e.Kind == EventLogoutAll {
		line += fmt.Sprintf(" | revoked=%d", e.Revoked)
	}
	return line + "\n"
}
