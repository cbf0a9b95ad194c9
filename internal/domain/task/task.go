// Package task models background ingestion runs that callers poll by id.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

// Task statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the pollable record of one async ingestion.
type Task struct {
	ID        string
	Tenant    string
	Status    Status
	Message   string
	Error     string
	Kind      string
	Stage     string
	Records   int
	Upserted  int
	Failed    int
	Count     uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a pending task with a random id.
func New(tenant string, now time.Time) Task {
	return Task{
		ID:        uuid.NewString(),
		Tenant:    tenant,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidID reports whether id looks like a task id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
