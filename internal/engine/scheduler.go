package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/checker"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// Errors surfaced by the manual trigger API.
var (
	ErrMonitorNotFound    = errors.New("monitor not found")
	ErrEntitlementInvalid = errors.New("subscription inactive or expired")
)

// Broadcaster receives recorded check results for live subscribers. May
// be nil.
type Broadcaster interface {
	Broadcast(event string, payload any) error
}

// Scheduler owns the recurring triggers and the engine lifecycle. It
// moves between exactly two states, stopped and running.
type Scheduler struct {
	cron        *cron.Cron
	store       store.MonitorStore
	resolver    store.EntitlementResolver
	scanner     *Scanner
	dispatcher  *Dispatcher
	recorder    *Recorder
	metrics     *Metrics
	broadcaster Broadcaster
	logger      *zap.Logger
	cfg         config.SchedulerConfig

	mu        sync.Mutex
	running   bool
	scanEntry cron.EntryID
}

// NewScheduler creates a stopped scheduler. Zero values in cfg fall back
// to the production defaults.
func NewScheduler(st store.MonitorStore, resolver store.EntitlementResolver, metrics *Metrics, broadcaster Broadcaster, logger *zap.Logger, cfg config.SchedulerConfig) *Scheduler {
	if cfg.ScanSpec == "" {
		cfg.ScanSpec = "@every 1m"
	}
	if cfg.RefreshSpec == "" {
		cfg.RefreshSpec = "@every 1h"
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "30 3 * * *"
	}
	if cfg.HealthSpec == "" {
		cfg.HealthSpec = "@every 3m"
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = defaultChunkSize
	}

	return &Scheduler{
		cron:        cron.New(),
		store:       st,
		resolver:    resolver,
		scanner:     NewScanner(st, resolver, logger),
		dispatcher:  NewDispatcher(cfg.ChunkSize, cfg.ChunkPause, logger),
		recorder:    NewRecorder(st, resolver, logger),
		metrics:     metrics,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
	}
}

// Start transitions the scheduler to running, verifies the store is
// reachable and installs the recurring triggers. Starting an already
// running scheduler is a no-op. The initial load is the only fatal
// path: its error is returned so the host process can decide whether
// to retry or abort.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("scheduler already running")
		return nil
	}

	monitors, err := s.store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("initial monitor load: %w", err)
	}
	s.logger.Info("loaded monitor population", zap.Int("monitors", len(monitors)))

	// Entries survive cron.Stop, so drop leftovers from a previous run.
	for _, entry := range s.cron.Entries() {
		s.cron.Remove(entry.ID)
	}
	s.scanEntry = 0

	s.running = true
	if err := s.refreshLocked(); err != nil {
		s.running = false
		return err
	}

	if _, err := s.cron.AddFunc(s.cfg.RefreshSpec, func() { s.refreshPopulation(context.Background()) }); err != nil {
		s.running = false
		return fmt.Errorf("install refresh trigger: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.SweepSpec, func() { s.retentionSweep(context.Background()) }); err != nil {
		s.running = false
		return fmt.Errorf("install retention-sweep trigger: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.HealthSpec, func() { s.healthCheck() }); err != nil {
		s.running = false
		return fmt.Errorf("install health-check trigger: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("scan", s.cfg.ScanSpec),
		zap.Int("chunk_size", s.cfg.ChunkSize))
	return nil
}

// Shutdown cancels all recurring triggers. Idempotent. In-flight checks
// are not aborted; only future scheduling stops.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	s.logger.Info("scheduler stopped")
}

// RefreshSchedules re-derives the due-scan trigger. Safe while running;
// a warning no-op when stopped.
func (s *Scheduler) RefreshSchedules() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Warn("refresh requested while scheduler is stopped")
		return nil
	}
	return s.refreshLocked()
}

func (s *Scheduler) refreshLocked() error {
	if s.scanEntry != 0 {
		s.cron.Remove(s.scanEntry)
		s.scanEntry = 0
	}
	id, err := s.cron.AddFunc(s.cfg.ScanSpec, func() { s.runDueScan(context.Background()) })
	if err != nil {
		return fmt.Errorf("install due-scan trigger: %w", err)
	}
	s.scanEntry = id
	s.logger.Info("due-scan trigger installed", zap.String("spec", s.cfg.ScanSpec))
	return nil
}

// Running reports whether the scheduler is in the running state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the metrics snapshot decorated with liveness info.
func (s *Scheduler) Status() Snapshot {
	snapshot := s.metrics.Snapshot()
	s.mu.Lock()
	snapshot.Running = s.running
	s.mu.Unlock()
	snapshot.ActiveJobs = len(s.cron.Entries())
	return snapshot
}

// runDueScan is the primary work loop: scan, dispatch, record. A fault
// here must never take down the trigger loop.
func (s *Scheduler) runDueScan(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("due scan panicked", zap.Any("panic", rec))
		}
	}()

	now := time.Now()
	due, err := s.scanner.Due(ctx, now)
	if err != nil {
		s.logger.Error("due scan failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Info("dispatching due monitors", zap.Int("due", len(due)))
	s.dispatcher.Run(ctx, due, func(ctx context.Context, monitor *models.Monitor) {
		if err := s.executeCheck(ctx, monitor); err != nil {
			s.logger.Error("failed to persist check outcome",
				zap.String("monitor_id", monitor.ID),
				zap.Error(err))
		}
	})
}

// executeCheck runs one monitor's check end to end and returns the
// persistence error, if any. A panicking checker is downgraded to an
// error outcome so siblings and later scans are unaffected.
func (s *Scheduler) executeCheck(ctx context.Context, monitor *models.Monitor) error {
	outcome := s.safeCheck(ctx, monitor)
	s.metrics.Record(outcome)

	if !outcome.Success {
		s.logger.Warn("check failed",
			zap.String("monitor_id", monitor.ID),
			zap.String("type", monitor.Type),
			zap.String("message", outcome.Message))
	}

	err := s.recorder.Record(ctx, monitor, outcome, time.Now())

	if s.broadcaster != nil {
		_ = s.broadcaster.Broadcast("check_result", map[string]any{
			"monitor_id": monitor.ID,
			"status":     monitor.LastStatus,
			"latency_ms": outcome.LatencyMs,
			"message":    outcome.Message,
			"uptime":     monitor.Uptime,
		})
	}

	return err
}

func (s *Scheduler) safeCheck(ctx context.Context, monitor *models.Monitor) (outcome checker.Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("check panicked",
				zap.String("monitor_id", monitor.ID),
				zap.Any("panic", rec))
			outcome = checker.Outcome{Message: fmt.Sprintf("internal error: %v", rec)}
		}
	}()

	c, ok := checker.Lookup(monitor.Type)
	if !ok {
		return checker.Outcome{Message: fmt.Sprintf("unknown monitor type: %s", monitor.Type)}
	}
	return c.Check(ctx, monitor)
}

// TriggerCheck runs one monitor's check immediately, outside the normal
// due scan. The entitlement gate still applies, and a persistence
// failure is surfaced to the caller.
func (s *Scheduler) TriggerCheck(ctx context.Context, monitorID string) error {
	monitor, err := s.store.FindByID(ctx, monitorID)
	if err != nil {
		return err
	}
	if monitor == nil {
		return fmt.Errorf("monitor %s: %w", monitorID, ErrMonitorNotFound)
	}

	entitlement, err := s.resolver.Resolve(ctx, monitor.UserID)
	if err != nil {
		return fmt.Errorf("resolve entitlement: %w", err)
	}
	if !entitlement.Valid(time.Now()) {
		return fmt.Errorf("monitor %s: %w", monitorID, ErrEntitlementInvalid)
	}

	return s.executeCheck(ctx, monitor)
}

// refreshPopulation re-validates the monitor population and backfills
// missing next due times. Maintenance only, it runs no checks.
func (s *Scheduler) refreshPopulation(ctx context.Context) {
	monitors, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.Error("population refresh failed", zap.Error(err))
		return
	}

	enabled, backfilled := 0, 0
	for _, monitor := range monitors {
		if !monitor.Enabled {
			continue
		}
		enabled++
		if monitor.NextDue != nil {
			continue
		}

		anchor := monitor.CreatedAt
		if monitor.LastChecked != nil {
			anchor = *monitor.LastChecked
		}
		next := monitor.ScheduleNext(anchor)
		monitor.NextDue = &next
		if err := s.store.Save(ctx, monitor); err != nil {
			s.logger.Error("failed to backfill next due time",
				zap.String("monitor_id", monitor.ID),
				zap.Error(err))
			continue
		}
		backfilled++
	}

	s.logger.Info("schedule refresh complete",
		zap.Int("monitors", len(monitors)),
		zap.Int("enabled", enabled),
		zap.Int("backfilled", backfilled))
}

// retentionSweep applies tier retention caps across the whole monitor
// population, bounding storage even for monitors that have not run in a
// long time.
func (s *Scheduler) retentionSweep(ctx context.Context) {
	monitors, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return
	}

	swept, dropped := 0, 0
	for _, monitor := range monitors {
		entitlement, err := s.resolver.Resolve(ctx, monitor.UserID)
		if err != nil {
			s.logger.Warn("entitlement lookup failed during sweep",
				zap.String("monitor_id", monitor.ID),
				zap.Error(err))
			continue
		}

		retention := entitlement.RetentionCap()
		if len(monitor.Logs) <= retention {
			continue
		}

		dropped += len(monitor.Logs) - retention
		monitor.Logs = TruncateLogs(monitor.Logs, retention)
		monitor.Uptime = UptimePercent(monitor.Logs)
		if err := s.store.Save(ctx, monitor); err != nil {
			s.logger.Error("failed to persist swept monitor",
				zap.String("monitor_id", monitor.ID),
				zap.Error(err))
			continue
		}
		swept++
	}

	s.logger.Info("retention sweep complete",
		zap.Int("monitors", len(monitors)),
		zap.Int("swept", swept),
		zap.Int("entries_dropped", dropped))
}

// healthCheck verifies the scheduler is still running with its triggers
// installed, attempting a self-heal refresh when the due-scan entry has
// gone missing.
func (s *Scheduler) healthCheck() {
	s.mu.Lock()
	running := s.running
	scanValid := s.scanEntry != 0 && s.cron.Entry(s.scanEntry).Valid()
	s.mu.Unlock()

	if !running {
		return
	}

	if !scanValid {
		s.logger.Warn("due-scan trigger missing, attempting self-heal refresh")
		if err := s.RefreshSchedules(); err != nil {
			s.logger.Error("self-heal refresh failed", zap.Error(err))
		}
		return
	}

	snapshot := s.Status()
	s.logger.Info("scheduler health check ok",
		zap.Int("active_jobs", snapshot.ActiveJobs),
		zap.Int64("total_checks", snapshot.TotalChecks),
		zap.Int("in_flight", s.dispatcher.InFlight()))
}
