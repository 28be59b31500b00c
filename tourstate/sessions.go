package tourstate

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Sessions hands out one Store per browser session. Every store shares the
// same durable backend.
type Sessions interface {
	Open(sessionID string) Store
	End(ctx context.Context, sessionID string) error
	// Prune drops sessions not written since before and reports how many
	// entries went away.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// MemorySessions keeps all state in process memory. A session only takes
// memory once something is written to it.
type MemorySessions struct {
	durable Backend
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*memorySession
}

type memorySession struct {
	flags   map[string]string
	touched time.Time
}

// NewMemorySessions returns an empty MemorySessions.
func NewMemorySessions(logger *slog.Logger) *MemorySessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemorySessions{
		durable:  NewMemory(),
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*memorySession),
	}
}

func (s *MemorySessions) Open(sessionID string) Store {
	return NewManager(s.durable, &sessionBackend{owner: s, id: sessionID}, s.logger)
}

func (s *MemorySessions) End(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessions) Prune(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.touched.Before(before) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many sessions hold state.
func (s *MemorySessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sessionBackend is the Backend view of one session id. Reads never create
// the session; Set does.
type sessionBackend struct {
	owner *MemorySessions
	id    string
}

func (b *sessionBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	sess, ok := b.owner.sessions[b.id]
	if !ok {
		return "", false, nil
	}
	v, ok := sess.flags[key]
	return v, ok, nil
}

func (b *sessionBackend) Set(_ context.Context, key, value string) error {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	sess, ok := b.owner.sessions[b.id]
	if !ok {
		sess = &memorySession{flags: make(map[string]string)}
		b.owner.sessions[b.id] = sess
	}
	sess.flags[key] = value
	sess.touched = b.owner.now()
	return nil
}

func (b *sessionBackend) Delete(_ context.Context, key string) error {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	sess, ok := b.owner.sessions[b.id]
	if !ok {
		return nil
	}
	delete(sess.flags, key)
	if len(sess.flags) == 0 {
		delete(b.owner.sessions, b.id)
	}
	return nil
}

func (b *sessionBackend) Keys(context.Context) ([]string, error) {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	sess, ok := b.owner.sessions[b.id]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(sess.flags))
	for k := range sess.flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Sessions adapts s to the Sessions interface.
func (s *SQLite) Sessions(logger *slog.Logger) Sessions {
	return sqliteSessions{s: s, logger: logger}
}

type sqliteSessions struct {
	s      *SQLite
	logger *slog.Logger
}

func (x sqliteSessions) Open(sessionID string) Store {
	return NewManager(x.s.Durable(), x.s.Session(sessionID), x.logger)
}

func (x sqliteSessions) End(ctx context.Context, sessionID string) error {
	return x.s.EndSession(ctx, sessionID)
}

func (x sqliteSessions) Prune(ctx context.Context, before time.Time) (int64, error) {
	return x.s.PruneSessions(ctx, before)
}
