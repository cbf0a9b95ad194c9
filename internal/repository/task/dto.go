package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
)

// record is the JSON form stored under the task key.
type record struct {
	ID        string `json:"id"`
	Tenant    string `json:"tenant"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Records   int    `json:"records"`
	Upserted  int    `json:"upserted"`
	Failed    int    `json:"failed"`
	Count     uint64 `json:"count"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

func encode(t task.Task) ([]byte, error) {
	b, err := json.Marshal(record{
		ID:        t.ID,
		Tenant:    t.Tenant,
		Status:    string(t.Status),
		Message:   t.Message,
		Error:     t.Error,
		Kind:      t.Kind,
		Stage:     t.Stage,
		Records:   t.Records,
		Upserted:  t.Upserted,
		Failed:    t.Failed,
		Count:     t.Count,
		CreatedAt: t.CreatedAt.UnixMilli(),
		UpdatedAt: t.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	return b, nil
}

func decode(data []byte) (task.Task, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return task.Task{}, fmt.Errorf("unmarshal task: %w", err)
	}
	return task.Task{
		ID:        r.ID,
		Tenant:    r.Tenant,
		Status:    task.Status(r.Status),
		Message:   r.Message,
		Error:     r.Error,
		Kind:      r.Kind,
		Stage:     r.Stage,
		Records:   r.Records,
		Upserted:  r.Upserted,
		Failed:    r.Failed,
		Count:     r.Count,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}, nil
}
