package reporter

import (
	"context"
	"errors"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Manager keeps at most one running Reporter per profile. Reporters are
// started lazily the first time a profile is touched, so only families that
// are actually active hold a change-stream subscription.
type Manager struct {
	ctx   context.Context
	build func() *Reporter

	mu      sync.Mutex
	cancels map[primitive.ObjectID]context.CancelFunc
}

// NewManager creates a Manager. build constructs a fresh Reporter for each
// profile; ctx bounds the lifetime of everything the manager starts.
func NewManager(ctx context.Context, build func() *Reporter) *Manager {
	return &Manager{
		ctx:     ctx,
		build:   build,
		cancels: map[primitive.ObjectID]context.CancelFunc{},
	}
}

// EnsureRunning starts a Reporter for the profile unless one is already
// running.
func (m *Manager) EnsureRunning(profileID primitive.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cancels[profileID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[profileID] = cancel

	r := m.build()
	go func() {
		err := r.Run(ctx, profileID)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("reporter for profile %s stopped: %v", profileID.Hex(), err)
		}
		m.mu.Lock()
		delete(m.cancels, profileID)
		m.mu.Unlock()
	}()
}

// StopAll cancels every running reporter.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
	}
}
