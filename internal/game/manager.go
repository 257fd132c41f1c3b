package game

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stealthdragons/dragon-server/internal/catalog"
)

// SessionInfo describes a running session for status reporting.
type SessionInfo struct {
	Summary
	CreatedAt time.Time
}

type managedSession struct {
	session   *Session
	cancel    context.CancelFunc
	createdAt time.Time
}

// Manager owns the running sessions and their event loops.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*managedSession
	wg       sync.WaitGroup

	catalog  *catalog.Catalog
	opts     Options
	sched    Scheduler
	notifier Notifier
	logger   *zap.Logger
}

// NewManager creates a session manager. Every session it creates shares
// the catalog, rules options, scheduler and notifier.
func NewManager(cat *catalog.Catalog, opts Options, sched Scheduler, notifier Notifier, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*managedSession),
		catalog:  cat,
		opts:     opts,
		sched:    sched,
		notifier: notifier,
		logger:   logger,
	}
}

// Create starts a new session loop bound to ctx.
func (m *Manager) Create(ctx context.Context) *Session {
	id := uuid.New().String()
	s := NewSession(id, m.catalog, m.opts, m.sched, m.notifier, m.logger)

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.sessions[id] = &managedSession{session: s, cancel: cancel, createdAt: time.Now()}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.Run(runCtx)
	}()

	m.logger.Info("session created", zap.String("session_id", id))
	return s
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return ms.session, true
}

// Remove stops the session loop and forgets the session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	ms.cancel()
	m.logger.Info("session removed", zap.String("session_id", id))
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns all sessions, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, ms := range m.sessions {
		infos = append(infos, SessionInfo{Summary: ms.session.Summary(), CreatedAt: ms.createdAt})
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Shutdown stops every session loop and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for id, ms := range m.sessions {
		ms.cancel()
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
