// CLAUDE:SUMMARY Storage Manager: durable tour availability and session-scoped shown flags with fail-soft semantics.
// Package tourstate persists the two pieces of tour state: a durable
// availability flag and per-tour "shown" flags scoped to the browser
// session. Backend failures never propagate: they are logged and a safe
// default is used.
package tourstate

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Persisted key layout.
const (
	AvailabilityKey = "hb-tour-available"
	ShownPrefix     = "hb-tour-shown-"
	WelcomePrefix   = "hb-welcome-"
)

// sessionPrefixes are the session-scoped key families.
var sessionPrefixes = []string{ShownPrefix, WelcomePrefix}

// Store is the tour state contract used by orchestrators.
type Store interface {
	Availability(ctx context.Context) bool
	SetAvailability(ctx context.Context, enabled bool)
	MarkShown(ctx context.Context, tourID string)
	WasShown(ctx context.Context, tourID string) bool
	ClearAll(ctx context.Context)
}

var _ Store = (*Manager)(nil)

// Manager implements Store over a durable and a session Backend.
type Manager struct {
	durable Backend
	session Backend
	logger  *slog.Logger
}

// NewManager wires a Manager. A nil backend is replaced with Memory.
func NewManager(durable, session Backend, logger *slog.Logger) *Manager {
	if durable == nil {
		durable = NewMemory()
	}
	if session == nil {
		session = NewMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{durable: durable, session: session, logger: logger}
}

// Availability reports whether tours are enabled. Missing, unreadable or
// malformed values count as enabled.
func (m *Manager) Availability(ctx context.Context) bool {
	v, ok, err := m.durable.Get(ctx, AvailabilityKey)
	if err != nil {
		m.logger.Warn("tourstate: read availability failed", "error", err)
		return true
	}
	if !ok {
		return true
	}
	switch strings.TrimSpace(v) {
	case "true":
		return true
	case "false":
		return false
	default:
		m.logger.Warn("tourstate: malformed availability", "value", v)
		return true
	}
}

// SetAvailability stores the flag as a JSON boolean.
func (m *Manager) SetAvailability(ctx context.Context, enabled bool) {
	if err := m.durable.Set(ctx, AvailabilityKey, strconv.FormatBool(enabled)); err != nil {
		m.logger.Warn("tourstate: write availability failed", "enabled", enabled, "error", err)
	}
}

// MarkShown records that tourID completed in this session.
func (m *Manager) MarkShown(ctx context.Context, tourID string) {
	if tourID == "" {
		return
	}
	if err := m.session.Set(ctx, ShownPrefix+tourID, "true"); err != nil {
		m.logger.Warn("tourstate: mark shown failed", "tour", tourID, "error", err)
	}
}

// WasShown reports whether tourID completed in this session. Read failures
// count as not shown.
func (m *Manager) WasShown(ctx context.Context, tourID string) bool {
	v, ok, err := m.session.Get(ctx, ShownPrefix+tourID)
	if err != nil {
		m.logger.Warn("tourstate: read shown flag failed", "tour", tourID, "error", err)
		return false
	}
	return ok && v == "true"
}

// ClearAll removes the availability flag from the durable backend and every
// shown/welcome flag from the session backend. Other keys are left alone.
func (m *Manager) ClearAll(ctx context.Context) {
	if err := m.durable.Delete(ctx, AvailabilityKey); err != nil {
		m.logger.Warn("tourstate: delete failed", "backend", "durable", "key", AvailabilityKey, "error", err)
	}
	keys, err := m.session.Keys(ctx)
	if err != nil {
		m.logger.Warn("tourstate: list keys failed", "backend", "session", "error", err)
		return
	}
	for _, k := range keys {
		if !sessionKey(k) {
			continue
		}
		if err := m.session.Delete(ctx, k); err != nil {
			m.logger.Warn("tourstate: delete failed", "backend", "session", "key", k, "error", err)
		}
	}
}

func sessionKey(key string) bool {
	for _, p := range sessionPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// NewSessionID returns a time-sortable session identifier (UUID v7).
func NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}
