package services

import (
	"context"
	"fmt"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService reports whether the database and redis answer within timeout.
type HealthService struct {
	db      Pinger
	redis   Pinger
	timeout time.Duration
}

func NewHealthService(db, redis Pinger) *HealthService {
	return &HealthService{db: db, redis: redis, timeout: 2 * time.Second}
}

func (s *HealthService) Check(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status := map[string]string{
		"database": ping(ctx, s.db),
		"redis":    ping(ctx, s.redis),
	}
	return status
}

// Get returns an error naming a dependency that is down. Disabled
// dependencies do not count.
func (s *HealthService) Get(ctx context.Context) error {
	for name, st := range s.Check(ctx) {
		if st != "ok" && st != "disabled" {
			return fmt.Errorf("%s: %s", name, st)
		}
	}
	return nil
}

func ping(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}
