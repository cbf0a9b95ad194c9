package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
	"github.com/MatiasPrietoHernan/Retriever/internal/domain/task"
	taskrepo "github.com/MatiasPrietoHernan/Retriever/internal/repository/task"
)

// --- Mocks ---

type fakeRunner struct {
	rep     Report
	err     error
	started chan struct{}
	block   chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, req Request) (Report, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return Report{Tenant: req.Tenant, Status: StatusFailed, Stage: StageFeedFetch, Kind: domain.KindInternal}, ctx.Err()
		}
	}
	rep := f.rep
	rep.Tenant = req.Tenant
	return rep, f.err
}

type fakeLease struct {
	mu       sync.Mutex
	held     map[string]string
	tryErr   error
	unlocked []string
}

func newFakeLease() *fakeLease { return &fakeLease{held: make(map[string]string)} }

func (l *fakeLease) TryLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tryErr != nil {
		return false, l.tryErr
	}
	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = token
	return true, nil
}

func (l *fakeLease) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	l.unlocked = append(l.unlocked, key)
	return nil
}

// --- Jobs ---

func TestJobs_SubmitCompletes(t *testing.T) {
	repo := taskrepo.NewMemory(time.Hour)
	run := &fakeRunner{rep: Report{
		Status: StatusSuccess, Stage: StageDone, Message: MsgCompleted,
		Records: 3, Upserted: 3, Count: 3,
	}}
	jobs := NewJobs(run, repo, nil)

	tk, err := jobs.Submit(context.Background(), req("acme"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if tk.Status != task.StatusPending || !task.ValidID(tk.ID) || tk.Tenant != "acme" {
		t.Errorf("submitted task = %+v", tk)
	}

	jobs.Close()

	got, err := jobs.Get(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != task.StatusCompleted || got.Message != MsgCompleted || got.Count != 3 || got.Upserted != 3 {
		t.Errorf("final task = %+v", got)
	}
	if got.Error != "" {
		t.Errorf("Error = %q, want empty", got.Error)
	}
}

func TestJobs_FailedRunRecordsError(t *testing.T) {
	repo := taskrepo.NewMemory(time.Hour)
	run := &fakeRunner{
		rep: Report{Status: StatusFailed, Stage: StageFeedFetch, Kind: domain.KindTransport, Message: MsgFeedStatus},
		err: fmt.Errorf("fetch feed: %w", domain.ErrTransport),
	}
	jobs := NewJobs(run, repo, nil)

	tk, err := jobs.Submit(context.Background(), req("acme"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	jobs.Close()

	got, _ := jobs.Get(context.Background(), tk.ID)
	if got.Status != task.StatusFailed || got.Kind != string(domain.KindTransport) || got.Stage != string(StageFeedFetch) {
		t.Errorf("final task = %+v", got)
	}
	if got.Message != MsgFeedStatus || got.Error == "" {
		t.Errorf("message/error = %q/%q", got.Message, got.Error)
	}
}

func TestJobs_RunOutlivesCallerContext(t *testing.T) {
	repo := taskrepo.NewMemory(time.Hour)
	run := &fakeRunner{
		rep:     Report{Status: StatusSuccess, Stage: StageDone, Message: MsgCompleted},
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	jobs := NewJobs(run, repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	tk, err := jobs.Submit(ctx, req("acme"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-run.started
	cancel()

	got, _ := jobs.Get(context.Background(), tk.ID)
	if got.Status != task.StatusRunning {
		t.Errorf("status while running = %q", got.Status)
	}

	close(run.block)
	jobs.Close()

	got, _ = jobs.Get(context.Background(), tk.ID)
	if got.Status != task.StatusCompleted {
		t.Errorf("status = %q, caller cancellation must not stop the job", got.Status)
	}
}

func TestJobs_CloseCancelsRunning(t *testing.T) {
	repo := taskrepo.NewMemory(time.Hour)
	run := &fakeRunner{started: make(chan struct{}), block: make(chan struct{})}
	jobs := NewJobs(run, repo, nil)

	tk, err := jobs.Submit(context.Background(), req("acme"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-run.started
	jobs.Close()

	got, _ := jobs.Get(context.Background(), tk.ID)
	if got.Status != task.StatusFailed {
		t.Errorf("status = %q, want failed after shutdown", got.Status)
	}

	if _, err := jobs.Submit(context.Background(), req("acme")); err == nil {
		t.Error("Submit after Close should fail")
	}
}

func TestJobs_SubmitRacingClose(t *testing.T) {
	repo := taskrepo.NewMemory(time.Hour)
	jobs := NewJobs(&fakeRunner{}, repo, nil)

	const submitters = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []string
	)
	start := make(chan struct{})
	for range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			tk, err := jobs.Submit(context.Background(), req("acme"))
			if err != nil {
				if !errors.Is(err, errJobsClosed) {
					t.Errorf("unexpected Submit error: %v", err)
				}
				return
			}
			mu.Lock()
			accepted = append(accepted, tk.ID)
			mu.Unlock()
		}()
	}
	close(start)
	jobs.Close()
	wg.Wait()

	// Every accepted job finished before Close returned or was refused.
	for _, id := range accepted {
		got, err := repo.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if got.Status != task.StatusCompleted && got.Status != task.StatusFailed {
			t.Errorf("task %s left in %q", id, got.Status)
		}
	}
}

func TestJobs_SubmitValidates(t *testing.T) {
	jobs := NewJobs(&fakeRunner{}, taskrepo.NewMemory(time.Hour), nil)
	defer jobs.Close()

	_, err := jobs.Submit(context.Background(), Request{Tenant: "acme"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestJobs_GetUnknown(t *testing.T) {
	jobs := NewJobs(&fakeRunner{}, taskrepo.NewMemory(time.Hour), nil)
	defer jobs.Close()

	for _, id := range []string{"not-a-uuid", "6f1c1e9a-3a52-4c8e-9d0b-2f6a7c1d5e44"} {
		if _, err := jobs.Get(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get(%q): expected ErrNotFound, got %v", id, err)
		}
	}
}

// --- TenantLock ---

func TestTenantLock_InProcess(t *testing.T) {
	l := NewTenantLock(nil, 0, nil)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "acme")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, "acme"); !errors.Is(err, domain.ErrIngestionInProgress) {
		t.Errorf("second Acquire: expected ErrIngestionInProgress, got %v", err)
	}
	other, err := l.Acquire(ctx, "globex")
	if err != nil {
		t.Fatalf("other tenant: %v", err)
	}
	other()

	release()
	again, err := l.Acquire(ctx, "acme")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}

func TestTenantLock_Lease(t *testing.T) {
	lease := newFakeLease()
	ctx := context.Background()
	a := NewTenantLock(lease, time.Minute, nil)
	b := NewTenantLock(lease, time.Minute, nil)

	release, err := a.Acquire(ctx, "acme")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := b.Acquire(ctx, "acme"); !errors.Is(err, domain.ErrIngestionInProgress) {
		t.Errorf("other replica: expected ErrIngestionInProgress, got %v", err)
	}

	release()
	if len(lease.unlocked) != 1 || lease.unlocked[0] != "retriever:ingest_lock:acme" {
		t.Errorf("unlocked = %v", lease.unlocked)
	}

	releaseB, err := b.Acquire(ctx, "acme")
	if err != nil {
		t.Fatalf("Acquire after lease release: %v", err)
	}
	releaseB()
}

func TestTenantLock_LeaseErrorReleasesLocal(t *testing.T) {
	lease := newFakeLease()
	lease.tryErr = fmt.Errorf("redis down: %w", domain.ErrTransport)
	l := NewTenantLock(lease, time.Minute, nil)

	if _, err := l.Acquire(context.Background(), "acme"); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	lease.mu.Lock()
	lease.tryErr = nil
	lease.mu.Unlock()
	release, err := l.Acquire(context.Background(), "acme")
	if err != nil {
		t.Fatalf("local lock leaked after lease error: %v", err)
	}
	release()
}
