package services

import (
	"context"
	"errors"
	"time"

	"github.com/everwear/api/internal/repositories"
)

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Environment      string
	StartedAt        time.Time
	Clock            func() time.Time
}

type systemService struct {
	healthRepo  repositories.HealthRepository
	environment string
	startedAt   time.Time
	clock       func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the health probe service.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	startedAt := deps.StartedAt
	if startedAt.IsZero() {
		startedAt = clock().UTC()
	}

	return &systemService{
		healthRepo:  deps.HealthRepository,
		environment: deps.Environment,
		startedAt:   startedAt,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Healthz reports process liveness without touching any backend.
func (s *systemService) Healthz(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:      "ok",
		Environment: s.environment,
		StartedAt:   s.startedAt,
		CheckedAt:   s.clock(),
	}
}

// Readyz probes backend dependencies. A failing probe carries the dependency
// error so the caller can log it.
func (s *systemService) Readyz(ctx context.Context) (HealthStatus, error) {
	status := HealthStatus{
		Status:      "ok",
		Environment: s.environment,
		StartedAt:   s.startedAt,
		CheckedAt:   s.clock(),
	}
	if err := s.healthRepo.Check(ctx); err != nil {
		status.Status = "unavailable"
		return status, err
	}
	return status, nil
}
