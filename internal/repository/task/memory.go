package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
)

// Memory keeps tasks in process. Entries older than the TTL are dropped on access.
type Memory struct {
	mu    sync.Mutex
	tasks map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

type memoryEntry struct {
	task    task.Task
	expires time.Time
}

// NewMemory creates an in-process task repository.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{tasks: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Save stores t.
func (m *Memory) Save(_ context.Context, t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict()
	m.tasks[t.ID] = memoryEntry{task: t, expires: m.now().Add(m.ttl)}
	return nil
}

// Get returns the task or domain.ErrNotFound.
func (m *Memory) Get(_ context.Context, id string) (task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evict()
	e, ok := m.tasks[id]
	if !ok {
		return task.Task{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return e.task, nil
}

func (m *Memory) evict() {
	now := m.now()
	for id, e := range m.tasks {
		if now.After(e.expires) {
			delete(m.tasks, id)
		}
	}
}
