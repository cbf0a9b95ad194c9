package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/domain"
)

// DefaultLeaseTTL bounds how long a crashed replica can block a tenant.
const DefaultLeaseTTL = 30 * time.Minute

var leaseKeyPrefix = domain.KeyPrefix + "ingest_lock:"

// TenantLock serializes runs per tenant. The in-process set covers one
// replica; the optional lease covers several.
type TenantLock struct {
	mu     sync.Mutex
	held   map[string]struct{}
	lease  Lease
	ttl    time.Duration
	logger *zap.Logger
}

// NewTenantLock creates a lock. lease may be nil.
func NewTenantLock(lease Lease, ttl time.Duration, logger *zap.Logger) *TenantLock {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenantLock{held: make(map[string]struct{}), lease: lease, ttl: ttl, logger: logger}
}

// Acquire takes the tenant or fails with ErrIngestionInProgress. The returned
// release func must be called exactly once.
func (l *TenantLock) Acquire(ctx context.Context, tenant string) (func(), error) {
	l.mu.Lock()
	if _, busy := l.held[tenant]; busy {
		l.mu.Unlock()
		return nil, fmt.Errorf("tenant %s: %w", tenant, domain.ErrIngestionInProgress)
	}
	l.held[tenant] = struct{}{}
	l.mu.Unlock()

	local := func() {
		l.mu.Lock()
		delete(l.held, tenant)
		l.mu.Unlock()
	}
	if l.lease == nil {
		return local, nil
	}

	key := leaseKeyPrefix + tenant
	token := uuid.NewString()
	ok, err := l.lease.TryLock(ctx, key, token, l.ttl)
	if err != nil {
		local()
		return nil, fmt.Errorf("acquire lease for %s: %w", tenant, err)
	}
	if !ok {
		local()
		return nil, fmt.Errorf("tenant %s (held by another replica): %w", tenant, domain.ErrIngestionInProgress)
	}

	return func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.lease.Unlock(uctx, key, token); err != nil {
			l.logger.Warn("Failed to release ingestion lease", zap.String("tenant", tenant), zap.Error(err))
		}
		local()
	}, nil
}
