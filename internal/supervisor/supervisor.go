package supervisor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/ops"
	"main/pkg/backoff"
	"main/pkg/exception"
)

// Health is the fleet summary served by the health endpoint.
type Health struct {
	Status    string        `json:"status"`
	Degraded  bool          `json:"degraded"`
	Workers   []WorkerState `json:"workers"`
	CheckedAt time.Time     `json:"checkedAt"`
}

// Supervisor launches and babysits the configured workers. One monitor
// goroutine owns all restart decisions; everything else only reads
// worker state through snapshots.
type Supervisor struct {
	cfg     ops.SupervisorSettings
	metrics *obs.Metrics
	restart backoff.Backoff
	now     func() time.Time

	mu       sync.Mutex
	workers  map[string]*worker
	order    []*worker
	started  bool
	degraded bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a supervisor with the workers from cfg pre-registered.
func New(cfg ops.SupervisorSettings, metrics *obs.Metrics) (*Supervisor, error) {
	s := &Supervisor{
		cfg:     cfg,
		metrics: metrics,
		restart: backoff.Backoff{
			Min:    cfg.RestartBackoffMin,
			Max:    cfg.RestartBackoffMax,
			Factor: 2,
			Jitter: 0.2,
		},
		now:     time.Now,
		workers: make(map[string]*worker),
	}
	for _, spec := range cfg.Workers {
		if err := s.Register(spec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register adds a worker definition. Registration closes once StartAll
// has run.
func (s *Supervisor) Register(spec ops.WorkerConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return exception.ErrSupervisorStarted
	}
	if _, ok := s.workers[spec.Name]; ok {
		return errors.Wrap(exception.ErrDuplicateWorker, spec.Name)
	}
	w := newWorker(spec)
	s.workers[spec.Name] = w
	s.order = append(s.order, w)
	return nil
}

// StartAll launches every registered worker in ascending priority order
// and starts the monitor. A required worker that fails to spawn aborts
// the launch and stops anything already running; optional failures are
// logged and left to the restart budget.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return exception.ErrSupervisorStarted
	}
	s.started = true
	sort.SliceStable(s.order, func(i, j int) bool {
		return s.order[i].spec.Priority < s.order[j].spec.Priority
	})
	order := s.order
	s.mu.Unlock()

	for i, w := range order {
		if i > 0 && s.cfg.StartStagger > 0 {
			time.Sleep(s.cfg.StartStagger)
		}
		if err := w.start(s.now()); err != nil {
			if w.spec.Required {
				logs.Errorf("supervisor: required worker %s failed to start: %v", w.spec.Name, err)
				s.stopWorkers(order[:i])
				return errors.Wrap(exception.ErrRequiredWorkerFailed, w.spec.Name)
			}
			logs.Warnf("supervisor: optional worker %s failed to start: %v", w.spec.Name, err)
			continue
		}
		logs.Infof("supervisor: started %s", w)
	}

	monitorCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.monitor(monitorCtx)
	}()
	return nil
}

// StopAll shuts the fleet down in reverse priority order: interrupt,
// wait out the grace period, then kill stragglers.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	order := make([]*worker, len(s.order))
	copy(order, s.order)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	reversed := make([]*worker, len(order))
	for i, w := range order {
		reversed[len(order)-1-i] = w
	}
	s.stopWorkers(reversed)
}

func (s *Supervisor) stopWorkers(workers []*worker) {
	for _, w := range workers {
		w.signalStop()
	}

	deadline := s.now().Add(s.cfg.StopGrace)
	for s.now().Before(deadline) {
		allDown := true
		for _, w := range workers {
			if !w.stopped() {
				allDown = false
				break
			}
		}
		if allDown {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, w := range workers {
		if !w.stopped() {
			logs.Warnf("supervisor: killing %s after grace period", w.spec.Name)
			w.kill()
		}
	}
}

// Err reports whether a required worker has permanently exhausted its
// restart budget.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.degraded {
		return exception.ErrSystemDegraded
	}
	return nil
}

// HealthSnapshot reports every worker plus the fleet-wide status.
func (s *Supervisor) HealthSnapshot() Health {
	now := s.now()
	s.mu.Lock()
	order := make([]*worker, len(s.order))
	copy(order, s.order)
	degraded := s.degraded
	s.mu.Unlock()

	health := Health{
		Status:    "healthy",
		Degraded:  degraded,
		Workers:   make([]WorkerState, 0, len(order)),
		CheckedAt: now,
	}
	for _, w := range order {
		health.Workers = append(health.Workers, w.state(now))
	}
	if degraded {
		health.Status = "degraded"
	}
	return health
}

// WorkerByName returns the state of one worker.
func (s *Supervisor) WorkerByName(name string) (WorkerState, error) {
	s.mu.Lock()
	w, ok := s.workers[name]
	s.mu.Unlock()
	if !ok {
		return WorkerState{}, errors.Wrap(exception.ErrUnknownWorker, name)
	}
	return w.state(s.now()), nil
}

// monitor is the single restart loop. Each tick it scans for exited
// workers and restarts them once their backoff elapses, until the
// restart budget runs out.
func (s *Supervisor) monitor(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Supervisor) sweep() {
	now := s.now()
	s.mu.Lock()
	order := make([]*worker, len(s.order))
	copy(order, s.order)
	s.mu.Unlock()

	for _, w := range order {
		s.checkWorker(w, now)
	}
}

func (s *Supervisor) checkWorker(w *worker, now time.Time) {
	w.mu.Lock()
	if !w.exited || w.status.Terminal() {
		w.mu.Unlock()
		return
	}

	if w.restarts >= w.spec.MaxRestarts {
		w.status = enum.WorkerExhausted
		required := w.spec.Required
		name := w.spec.Name
		lastExit := w.lastExit
		w.mu.Unlock()

		logs.Errorf("supervisor: %s exhausted its restart budget, last exit: %s", name, lastExit)
		if required {
			s.mu.Lock()
			s.degraded = true
			s.mu.Unlock()
		}
		return
	}

	if w.nextRestart.IsZero() {
		delay := s.restart.Next(w.restarts)
		w.nextRestart = now.Add(delay)
		w.mu.Unlock()
		logs.Warnf("supervisor: %s exited, restart %d/%d in %s",
			w.spec.Name, w.restarts+1, w.spec.MaxRestarts, delay.Truncate(time.Millisecond))
		return
	}
	if now.Before(w.nextRestart) {
		w.mu.Unlock()
		return
	}

	w.restarts++
	w.mu.Unlock()

	s.metrics.IncWorkerRestart(w.spec.Name)
	if err := w.start(now); err != nil {
		logs.Errorf("supervisor: restart of %s failed: %v", w.spec.Name, err)
		return
	}
	logs.Infof("supervisor: restarted %s", w.spec.Name)
}
