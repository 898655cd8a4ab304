package services

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type healthComponent struct {
	name string
	p    Pinger
}

// HealthService pings the database and any optional backends added with
// Add. Every component is checked even after one fails.
type HealthService struct {
	components []healthComponent
}

func NewHealthService(db Pinger) *HealthService {
	return &HealthService{components: []healthComponent{{name: "postgres", p: db}}}
}

func (s *HealthService) Add(name string, p Pinger) *HealthService {
	s.components = append(s.components, healthComponent{name: name, p: p})
	return s
}

func (s *HealthService) Check(ctx context.Context) error {
	var errs []error
	for _, c := range s.components {
		cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := c.p.Ping(cctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
