package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MatiasPrietoHernan/Retriever/internal/logger"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "healthy"
	// Degraded indicates an optional component is failing; search still works.
	Degraded Status = "degraded"
	// Unhealthy indicates search or ingestion cannot work.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names.
const (
	ComponentVectorStore = "vector_store"
	ComponentEmbedding   = "embedding"
	ComponentCache       = "cache"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status     Status
	Collection string
	Checks     map[string]CheckResult
}

type component struct {
	name     string
	required bool
	check    func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	collection string
	timeout    time.Duration
	components []component
}

// New creates a Service reporting collection as the default collection.
// embedding and cache can be nil.
func New(collection string, store Pinger, embedding Prober, cache Pinger) *Service {
	s := &Service{collection: collection, timeout: DefaultCheckTimeout}
	s.components = append(s.components, component{ComponentVectorStore, true, store.Ping})
	if embedding != nil {
		s.components = append(s.components, component{ComponentEmbedding, true, embedding.HealthCheck})
	}
	if cache != nil {
		s.components = append(s.components, component{ComponentCache, false, cache.Ping})
	}
	return s
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(s.components))
		status = Healthy
	)
	log := logger.FromContext(ctx)

	for _, c := range s.components {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			err := c.check(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				checks[c.name] = CheckOK
				return
			}
			log.Warn("Health check failed", zap.String("component", c.name), zap.Error(err))
			checks[c.name] = CheckError
			switch {
			case c.required:
				status = Unhealthy
			case status == Healthy:
				status = Degraded
			}
		}()
	}
	wg.Wait()

	return Report{Status: status, Collection: s.collection, Checks: checks}
}
