package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubHealthRepo struct {
	err error
}

func (s *stubHealthRepo) Check(ctx context.Context) error {
	return s.err
}

func TestHealthzReportsOK(t *testing.T) {
	started := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepo{err: errors.New("firestore down")},
		Environment:      "test",
		StartedAt:        started,
		Clock:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	status := svc.Healthz(context.Background())
	if status.Status != "ok" {
		t.Fatalf("liveness must not depend on backends, got %q", status.Status)
	}
	if status.Environment != "test" {
		t.Fatalf("unexpected environment %q", status.Environment)
	}
	if !status.StartedAt.Equal(started) || !status.CheckedAt.Equal(now) {
		t.Fatalf("unexpected timestamps %+v", status)
	}
}

func TestReadyzPropagatesDependencyFailure(t *testing.T) {
	repo := &stubHealthRepo{}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo})
	if err != nil {
		t.Fatalf("new system service: %v", err)
	}

	if status, err := svc.Readyz(context.Background()); err != nil || status.Status != "ok" {
		t.Fatalf("expected healthy readiness, got %+v err=%v", status, err)
	}

	repo.err = errors.New("firestore down")
	status, err := svc.Readyz(context.Background())
	if err == nil {
		t.Fatalf("expected readiness error")
	}
	if status.Status != "unavailable" {
		t.Fatalf("expected unavailable, got %q", status.Status)
	}
}

func TestNewSystemServiceRequiresHealthRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatalf("expected constructor error")
	}
}
