// Package task stores async ingestion task records.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
)

// DefaultTTL keeps finished tasks pollable for a day.
const DefaultTTL = 24 * time.Hour

var keyPrefix = domain.KeyPrefix + "task:"

// store is the consumer interface for task records.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Repo keeps tasks as JSON strings with a TTL.
type Repo struct {
	store store
	ttl   time.Duration
}

// New creates a Redis-backed task repository.
func New(s store, ttl time.Duration) *Repo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Repo{store: s, ttl: ttl}
}

// Save writes t, refreshing its TTL.
func (r *Repo) Save(ctx context.Context, t task.Task) error {
	data, err := encode(t)
	if err != nil {
		return err
	}
	if err := r.store.SetWithTTL(ctx, key(t.ID), data, r.ttl); err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// Get loads a task. Unknown or expired ids return domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id string) (task.Task, error) {
	data, err := r.store.Get(ctx, key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return task.Task{}, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
		}
		return task.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return decode(data)
}

func key(id string) string { return keyPrefix + id }
