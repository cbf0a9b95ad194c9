package health

import "context"

// Pinger is a backing store checked by a round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober checks an upstream provider without side effects.
type Prober interface {
	HealthCheck(ctx context.Context) error
}
