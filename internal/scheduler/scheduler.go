// Package scheduler provides heap-based scheduling of recurring maintenance
// jobs (compaction stages, prunes).
//
// The scheduler uses a min-heap keyed on next-due time. A single runner
// executes due jobs sequentially; maintenance jobs mutate shared tables, so
// running them concurrently would only fight over the writer lock.
//
// Key features:
//   - O(log n) add/remove operations
//   - Jitter on the first run to spread startup load
//   - Graceful shutdown with drain timeout
package scheduler

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skillvault/skillvault/config"
	"github.com/skillvault/skillvault/internal/logging"
)

var log = logging.Component("scheduler")

// =============================================================================
// Types
// =============================================================================

// JobFunc is the body of a scheduled job.
type JobFunc func(context.Context)

// jobItem represents an item in the scheduler heap.
type jobItem struct {
	name      string
	fn        JobFunc
	nextRunMs int64 // Unix ms when the job is next due
	interval  time.Duration
	deleted   bool
	index     int // Heap index for O(log n) updates
}

// =============================================================================
// Heap Implementation
// =============================================================================

type jobHeap []*jobItem

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	return h[i].nextRunMs < h[j].nextRunMs
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*jobItem)
	item.index = n
	*h = append(*h, item)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	*h = old[0 : n-1]
	return item
}

func (h jobHeap) peek() *jobItem {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// =============================================================================
// Scheduler Configuration
// =============================================================================

// Config holds scheduler configuration.
type Config struct {
	// TickInterval is how often the scheduler checks for due jobs.
	TickInterval time.Duration

	// DrainTimeout is how long to wait for an in-flight job during shutdown.
	DrainTimeout time.Duration

	// Jitter delays the first run of each job by a random fraction of its
	// interval. Off by default to keep tests deterministic.
	Jitter bool
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		TickInterval: config.DefaultSchedulerTickInterval,
		DrainTimeout: time.Duration(config.DefaultDrainTimeoutSec) * time.Second,
		Jitter:       true,
	}
}

// =============================================================================
// Scheduler
// =============================================================================

// Scheduler runs recurring jobs from a min-heap.
//
// Scheduler is safe for concurrent use.
type Scheduler struct {
	mu      sync.Mutex
	heap    jobHeap
	heapIdx map[string]*jobItem

	shutdown chan struct{}
	wg       sync.WaitGroup
	started  atomic.Bool

	// Wakeup signal for immediate processing
	wakeup chan struct{}

	tickInterval time.Duration
	drainTimeout time.Duration
	jitter       bool

	jobsRun    atomic.Int64
	jobRunning atomic.Bool
}

// New creates a new Scheduler.
func New(cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Scheduler{
		heap:         make(jobHeap, 0),
		heapIdx:      make(map[string]*jobItem),
		shutdown:     make(chan struct{}),
		wakeup:       make(chan struct{}, 1),
		tickInterval: cfg.TickInterval,
		drainTimeout: cfg.DrainTimeout,
		jitter:       cfg.Jitter,
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start starts the scheduler loop.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Info("scheduler started", "jobs", s.Len())
}

// Stop stops the scheduler gracefully, waiting for an in-flight job up to
// the drain timeout.
func (s *Scheduler) Stop() {
	if !s.started.Load() {
		return
	}

	log.Info("scheduler stopping")
	close(s.shutdown)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("scheduler stopped gracefully")
	case <-time.After(s.drainTimeout):
		log.Warn("scheduler drain timeout", "job_running", s.jobRunning.Load())
	}
}

// =============================================================================
// Job Management
// =============================================================================

// Add registers a recurring job. The first run is due one interval from now,
// minus optional jitter. Adding a name twice is a no-op.
func (s *Scheduler) Add(name string, interval time.Duration, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.heapIdx[name]; ok {
		return
	}

	delay := interval
	if s.jitter && interval > 0 {
		delay = time.Duration(rand.Int63n(int64(interval)))
	}

	item := &jobItem{
		name:      name,
		fn:        fn,
		nextRunMs: time.Now().Add(delay).UnixMilli(),
		interval:  interval,
	}

	heap.Push(&s.heap, item)
	s.heapIdx[name] = item
	s.signalWakeup()

	log.Debug("job added", "name", name, "interval", interval)
}

// Remove unregisters a job. A currently running invocation finishes.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.heapIdx[name]
	if !ok {
		return
	}

	item.deleted = true
	if item.index >= 0 {
		heap.Remove(&s.heap, item.index)
	}
	delete(s.heapIdx, name)

	log.Debug("job removed", "name", name)
}

// RunNow moves a job to the front of the queue.
func (s *Scheduler) RunNow(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.heapIdx[name]
	if !ok {
		return
	}

	item.nextRunMs = time.Now().UnixMilli()
	heap.Fix(&s.heap, item.index)
	s.signalWakeup()
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

// JobsRun returns the total number of completed job invocations.
func (s *Scheduler) JobsRun() int64 {
	return s.jobsRun.Load()
}

// =============================================================================
// Schedule Loop
// =============================================================================

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		<-s.shutdown
		cancel()
	}()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
		case <-s.wakeup:
		}

		s.runDue(ctx)
	}
}

// runDue executes every job whose due time has passed. Jobs run outside the
// heap lock; the item is rescheduled before its function runs so panics or
// slow bodies cannot stall the queue bookkeeping.
func (s *Scheduler) runDue(ctx context.Context) {
	now := time.Now().UnixMilli()

	for {
		s.mu.Lock()
		item := s.heap.peek()
		if item == nil || item.nextRunMs > now {
			s.mu.Unlock()
			return
		}

		item.nextRunMs = time.Now().Add(item.interval).UnixMilli()
		heap.Fix(&s.heap, item.index)
		name, fn, deleted := item.name, item.fn, item.deleted
		s.mu.Unlock()

		if deleted {
			continue
		}

		select {
		case <-s.shutdown:
			return
		default:
		}

		s.jobRunning.Store(true)
		started := time.Now()
		fn(ctx)
		s.jobRunning.Store(false)
		s.jobsRun.Add(1)

		log.Debug("job finished", "name", name, "took", time.Since(started))
	}
}

func (s *Scheduler) signalWakeup() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}
