package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/store"
)

// Default scheduling parameters.
const (
	DefaultPullInterval = 2 * time.Minute
	DefaultPushDebounce = 1200 * time.Millisecond
	DefaultPullDebounce = 400 * time.Millisecond

	queueDepth = 16
)

// SyncAPI is the slice of Client the scheduler drives.
type SyncAPI interface {
	Pull(ctx context.Context) (PullOutcome, error)
	Push(ctx context.Context) error
}

// Connectivity reports whether the runtime currently has network access.
type Connectivity interface {
	Online() bool
}

// AlwaysOnline is the Connectivity of environments without an offline signal.
type AlwaysOnline struct{}

// Online always reports true.
func (AlwaysOnline) Online() bool { return true }

// SchedulerConfig tunes the scheduler's timers. Zero fields take defaults.
type SchedulerConfig struct {
	PullInterval time.Duration
	PushDebounce time.Duration
	PullDebounce time.Duration
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.PullInterval <= 0 {
		c.PullInterval = DefaultPullInterval
	}
	if c.PushDebounce <= 0 {
		c.PushDebounce = DefaultPushDebounce
	}
	if c.PullDebounce <= 0 {
		c.PullDebounce = DefaultPullDebounce
	}
	return c
}

// Scheduler is the long-lived coordinator of sync operations. One instance
// per process, owned by the application's startup sequence.
//
// All pulls and pushes are funneled through a single-lane FIFO queue
// drained by one worker goroutine, so operations never overlap no matter
// how many triggers fire at once. Operation failures are logged and
// swallowed at the queue level; a failed attempt never poisons the next.
type Scheduler struct {
	client SyncAPI
	store  *store.Store
	online Connectivity
	cfg    SchedulerConfig
	log    *zap.Logger

	mu        sync.Mutex
	running   bool
	jobs      chan job
	stopCh    chan struct{}
	unsub     func()
	pushTimer *time.Timer
	pullTimer *time.Timer
	prevFP    string
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// NewScheduler constructs a stopped scheduler.
func NewScheduler(client SyncAPI, st *store.Store, online Connectivity, cfg SchedulerConfig, log *zap.Logger) *Scheduler {
	if online == nil {
		online = AlwaysOnline{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		client: client,
		store:  st,
		online: online,
		cfg:    cfg.withDefaults(),
		log:    log,
	}
}

// Start brings the scheduler to Running. Idempotent.
//
// It waits for store hydration, performs an initial pull (a NotFound
// bootstraps the chain from local data), pushes to reconcile local-only
// entities upward, then arms the periodic pull, the change-triggered
// debounced push and the debounced activity pull. A hydration failure is
// logged and returned; it must not block the host application.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	if err := s.store.Init(ctx); err != nil {
		s.mu.Unlock()
		s.log.Warn("sync start skipped: store hydration failed", zap.Error(err))
		return err
	}

	s.running = true
	s.jobs = make(chan job, queueDepth)
	s.stopCh = make(chan struct{})

	tasks, workspaces := s.store.Snapshot()
	s.prevFP = Fingerprint(tasks, workspaces)

	go s.worker(ctx, s.jobs)
	go s.tick(s.stopCh)

	s.unsub = s.store.Subscribe(s.onStoreChange)
	s.mu.Unlock()

	// Initial reconciliation runs through the queue like everything else.
	s.enqueue(job{name: "initial", run: func(ctx context.Context) error {
		outcome, err := s.client.Pull(ctx)
		if err != nil {
			s.log.Warn("initial pull failed", zap.Error(err))
		}
		_ = outcome // NotFound and Ok both push: bootstrap or upward reconcile
		return s.client.Push(ctx)
	}})
	return nil
}

// Stop tears down timers and listeners and closes the queue. Idempotent.
// An in-flight operation is not cancelled; it completes and its result is
// discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	if s.pushTimer != nil {
		s.pushTimer.Stop()
		s.pushTimer = nil
	}
	if s.pullTimer != nil {
		s.pullTimer.Stop()
		s.pullTimer = nil
	}
	close(s.jobs)
}

// Running reports the lifecycle state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NotifyActive signals that the application regained visibility or focus.
// Schedules a debounced pull.
func (s *Scheduler) NotifyActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.pullTimer == nil {
		s.pullTimer = time.AfterFunc(s.cfg.PullDebounce, s.firePull)
		return
	}
	s.pullTimer.Reset(s.cfg.PullDebounce)
}

// onStoreChange queues a debounced push, but only when the content
// fingerprint of tasks and workspaces actually moved.
func (s *Scheduler) onStoreChange() {
	tasks, workspaces := s.store.Snapshot()
	fp := Fingerprint(tasks, workspaces)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || fp == s.prevFP {
		return
	}
	s.prevFP = fp
	if s.pushTimer == nil {
		s.pushTimer = time.AfterFunc(s.cfg.PushDebounce, s.firePush)
		return
	}
	s.pushTimer.Reset(s.cfg.PushDebounce)
}

func (s *Scheduler) firePush() {
	if !s.store.Hydrated() {
		return
	}
	s.enqueue(job{name: "push", run: s.client.Push})
}

func (s *Scheduler) firePull() {
	if !s.store.Hydrated() || !s.online.Online() {
		return
	}
	s.enqueue(job{name: "pull", run: func(ctx context.Context) error {
		_, err := s.client.Pull(ctx)
		return err
	}})
}

// tick drives the periodic pull. Skipped while offline or not hydrated.
func (s *Scheduler) tick(stop <-chan struct{}) {
	t := time.NewTicker(s.cfg.PullInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.firePull()
		}
	}
}

// enqueue appends a job to the single-lane queue unless stopped. A full
// queue drops the job; the periodic pull will catch up later.
func (s *Scheduler) enqueue(j job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	select {
	case s.jobs <- j:
	default:
		s.log.Warn("sync queue full, dropping operation", zap.String("op", j.name))
	}
}

// worker drains the queue one job at a time, in FIFO order. The context is
// the one handed to Start; a worker from a previous run never sees the new
// one. Errors are logged and swallowed so one failed attempt never blocks
// the chain.
func (s *Scheduler) worker(ctx context.Context, jobs <-chan job) {
	for j := range jobs {
		if err := j.run(ctx); err != nil {
			s.log.Warn("sync operation failed", zap.String("op", j.name), zap.Error(err))
		}
	}
}
