package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/checker"
	"github.com/pulsewatch/pulsewatch/internal/models"
)

// fakeStore is an in-memory MonitorStore for engine tests.
type fakeStore struct {
	mu       sync.Mutex
	monitors map[string]*models.Monitor
	saveErr  error
	findErr  error
	saves    int
}

func newFakeStore(monitors ...*models.Monitor) *fakeStore {
	s := &fakeStore{monitors: make(map[string]*models.Monitor)}
	for _, m := range monitors {
		s.monitors[m.ID] = m
	}
	return s
}

func (s *fakeStore) FindDue(ctx context.Context, now time.Time) ([]*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var due []*models.Monitor
	for _, m := range s.monitors {
		if !m.Enabled {
			continue
		}
		if m.NextDue == nil || !m.NextDue.After(now) {
			due = append(due, m)
		}
	}
	return due, nil
}

func (s *fakeStore) FindAll(ctx context.Context) ([]*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	all := make([]*models.Monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		all = append(all, m)
	}
	return all, nil
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*models.Monitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.monitors[id], nil
}

func (s *fakeStore) Save(ctx context.Context, monitor *models.Monitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.monitors[monitor.ID] = monitor
	return nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// fakeResolver returns canned entitlements per user. Users without an
// entry get an active free plan.
type fakeResolver struct {
	mu           sync.Mutex
	entitlements map[string]models.Entitlement
	err          error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{entitlements: make(map[string]models.Entitlement)}
}

func (r *fakeResolver) set(userID string, e models.Entitlement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entitlements[userID] = e
}

func (r *fakeResolver) Resolve(ctx context.Context, userID string) (models.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return models.Entitlement{}, r.err
	}
	if e, ok := r.entitlements[userID]; ok {
		return e, nil
	}
	return models.Entitlement{Active: true, Plan: models.PlanFree}, nil
}

// stubChecker is a registrable checker with a canned outcome, used by
// scheduler tests. Its protocol names never collide with real ones.
type stubChecker struct {
	name     string
	outcome  checker.Outcome
	panicMsg string
}

func (c *stubChecker) Name() string { return c.name }

func (c *stubChecker) Validate(monitor *models.Monitor) error { return nil }

func (c *stubChecker) Check(ctx context.Context, monitor *models.Monitor) checker.Outcome {
	if c.panicMsg != "" {
		panic(c.panicMsg)
	}
	return c.outcome
}

func init() {
	checker.Register(&stubChecker{
		name:    "stub-ok",
		outcome: checker.Outcome{Success: true, LatencyMs: 12, Message: "stub ok"},
	})
	checker.Register(&stubChecker{
		name:    "stub-fail",
		outcome: checker.Outcome{LatencyMs: 30, Message: "stub failed"},
	})
	checker.Register(&stubChecker{
		name:     "stub-panic",
		panicMsg: "boom",
	})
}

func testMonitor(id, userID string, interval int) *models.Monitor {
	return &models.Monitor{
		ID:              id,
		UserID:          userID,
		Name:            fmt.Sprintf("monitor %s", id),
		Type:            "stub-ok",
		URL:             "https://example.com",
		IntervalMinutes: interval,
		Enabled:         true,
		LastStatus:      models.StatusPending,
		CreatedAt:       time.Now().Add(-time.Hour),
	}
}

func pastTime(d time.Duration) *time.Time {
	t := time.Now().Add(-d)
	return &t
}
