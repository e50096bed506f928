package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

const (
	defaultChunkSize  = 10
	defaultChunkPause = time.Second
)

// Dispatcher runs due monitors with bounded concurrency. Chunking is
// load-shedding only: a chunk's checks run in parallel, chunks run in
// sequence with a pause in between.
type Dispatcher struct {
	chunkSize int
	pacer     *rate.Limiter
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// NewDispatcher creates a batch dispatcher. A pause of zero disables
// inter-chunk pacing.
func NewDispatcher(chunkSize int, pause time.Duration, logger *zap.Logger) *Dispatcher {
	if chunkSize < 1 {
		chunkSize = defaultChunkSize
	}
	var pacer *rate.Limiter
	if pause > 0 {
		pacer = rate.NewLimiter(rate.Every(pause), 1)
	}
	return &Dispatcher{
		chunkSize: chunkSize,
		pacer:     pacer,
		logger:    logger,
		running:   make(map[string]struct{}),
	}
}

// Run executes run for every monitor, at most chunkSize at a time. A
// monitor whose previous check is still in flight is skipped rather
// than run concurrently with itself. Run returns once every chunk has
// settled.
func (d *Dispatcher) Run(ctx context.Context, monitors []*models.Monitor, run func(ctx context.Context, monitor *models.Monitor)) {
	for start := 0; start < len(monitors); start += d.chunkSize {
		if d.pacer != nil {
			if err := d.pacer.Wait(ctx); err != nil {
				return
			}
		}

		end := start + d.chunkSize
		if end > len(monitors) {
			end = len(monitors)
		}

		var wg sync.WaitGroup
		for _, monitor := range monitors[start:end] {
			if !d.acquire(monitor.ID) {
				d.logger.Warn("previous check still in flight, skipping",
					zap.String("monitor_id", monitor.ID))
				continue
			}

			wg.Add(1)
			go func(m *models.Monitor) {
				defer wg.Done()
				defer d.release(m.ID)
				run(ctx, m)
			}(monitor)
		}
		wg.Wait()
	}
}

// acquire marks a monitor as in flight. It returns false when the
// monitor is already running.
func (d *Dispatcher) acquire(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.running[id]; exists {
		return false
	}
	d.running[id] = struct{}{}
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.running, id)
}

// InFlight returns the number of checks currently executing.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.running)
}
