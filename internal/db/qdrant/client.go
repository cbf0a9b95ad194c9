// Package qdrant implements the vector store gateway on Qdrant over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/MatiasPrietoHernan/Retriever/internal/db"
)

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

// DefaultMaxMessageSize bounds gRPC messages; a full-refresh upsert carries every point at once.
const DefaultMaxMessageSize = 64 << 20

// Config holds connection parameters for a Qdrant store.
type Config struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	MaxMessageSize int
	// PayloadIndexes creates keyword/float indexes on the filterable metadata fields.
	PayloadIndexes bool
	Logger         *zap.Logger
}

// Store implements db.VectorStore on Qdrant.
type Store struct {
	client         *qdrant.Client
	payloadIndexes bool
	logger         *zap.Logger

	mu   sync.RWMutex
	dims map[string]int // dense size of collections created by this process
}

// NewStore creates a Qdrant store. The connection is lazy; use WaitForReady to block on it.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	}
	if !cfg.UseTLS {
		qcfg.GrpcOptions = append(qcfg.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{
		client:         client,
		payloadIndexes: cfg.PayloadIndexes,
		logger:         cfg.Logger,
		dims:           make(map[string]int),
	}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return wrapErr(db.OpHealth, err)
	}
	return nil
}

// Close shuts down the gRPC connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close qdrant client: %w", err)
	}
	return nil
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for qdrant: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) rememberDims(name string, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size > 0 {
		s.dims[name] = size
	} else {
		delete(s.dims, name)
	}
}

func (s *Store) knownDims(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dims[name]
	return d, ok
}
