package chat

import (
	"sync"

	"github.com/shynlabs/shyn/internal/types"
)

// Manager hands out one controller per user, building them lazily from a
// shared dependency set.
type Manager struct {
	deps Deps

	mu          sync.Mutex
	controllers map[int]*Controller
}

// NewManager returns an empty registry over deps.
func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps, controllers: make(map[int]*Controller)}
}

// For returns the user's controller, creating it on first use.
func (m *Manager) For(user types.User) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[user.ID]; ok {
		return c
	}
	c := NewController(user, m.deps)
	m.controllers[user.ID] = c
	return c
}

// Close shuts down every controller.
func (m *Manager) Close() {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.controllers = make(map[int]*Controller)
	m.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
}
