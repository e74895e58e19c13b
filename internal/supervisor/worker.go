package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/model/enum"
	"main/internal/ops"
	"main/pkg/exception"
)

// WorkerState is a point-in-time view of one managed worker.
type WorkerState struct {
	Name        string            `json:"name"`
	Status      enum.WorkerStatus `json:"status"`
	PID         int               `json:"pid,omitempty"`
	Priority    int               `json:"priority"`
	Required    bool              `json:"required"`
	Restarts    int               `json:"restarts"`
	MaxRestarts int               `json:"maxRestarts"`
	StartedAt   time.Time         `json:"startedAt,omitzero"`
	Uptime      string            `json:"uptime,omitempty"`
	LastExit    string            `json:"lastExit,omitempty"`
	NextRestart time.Time         `json:"nextRestart,omitzero"`
}

// worker tracks one child process. The supervisor's monitor goroutine is
// the only writer for restart bookkeeping; the wait goroutine only
// records the exit.
type worker struct {
	spec ops.WorkerConfig

	mu          sync.Mutex
	status      enum.WorkerStatus
	cmd         *exec.Cmd
	restarts    int
	startedAt   time.Time
	lastExit    string
	exited      bool
	nextRestart time.Time
}

func newWorker(spec ops.WorkerConfig) *worker {
	return &worker{spec: spec, status: enum.WorkerStopped}
}

// start spawns the child process and begins reaping it.
func (w *worker) start(now time.Time) error {
	cmd := exec.Command(w.spec.Command, w.spec.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	for key, value := range w.spec.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	w.mu.Lock()
	w.status = enum.WorkerStarting
	w.mu.Unlock()

	if err := cmd.Start(); err != nil {
		w.mu.Lock()
		w.status = enum.WorkerCrashed
		w.exited = true
		w.lastExit = err.Error()
		w.nextRestart = time.Time{}
		w.mu.Unlock()
		return errors.Wrap(exception.ErrSpawnFailed, w.spec.Name)
	}

	w.mu.Lock()
	w.cmd = cmd
	w.status = enum.WorkerRunning
	w.startedAt = now
	w.exited = false
	w.lastExit = ""
	w.nextRestart = time.Time{}
	w.mu.Unlock()

	go func() {
		err := cmd.Wait()
		w.mu.Lock()
		defer w.mu.Unlock()
		w.exited = true
		if err != nil {
			w.lastExit = err.Error()
		} else {
			w.lastExit = "exit status 0"
		}
		if w.status == enum.WorkerRunning || w.status == enum.WorkerStarting {
			w.status = enum.WorkerCrashed
		}
	}()
	return nil
}

// signalStop asks the process to terminate gracefully.
func (w *worker) signalStop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status == enum.WorkerRunning || w.status == enum.WorkerStarting {
		w.status = enum.WorkerStopped
	}
	if w.cmd != nil && w.cmd.Process != nil && !w.exited {
		_ = w.cmd.Process.Signal(os.Interrupt)
	}
}

// kill forcefully terminates the process if it is still alive.
func (w *worker) kill() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd != nil && w.cmd.Process != nil && !w.exited {
		_ = w.cmd.Process.Kill()
	}
}

func (w *worker) stopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exited || w.cmd == nil
}

func (w *worker) state(now time.Time) WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := WorkerState{
		Name:        w.spec.Name,
		Status:      w.status,
		Priority:    w.spec.Priority,
		Required:    w.spec.Required,
		Restarts:    w.restarts,
		MaxRestarts: w.spec.MaxRestarts,
		StartedAt:   w.startedAt,
		LastExit:    w.lastExit,
		NextRestart: w.nextRestart,
	}
	if w.cmd != nil && w.cmd.Process != nil {
		state.PID = w.cmd.Process.Pid
	}
	if w.status == enum.WorkerRunning && !w.startedAt.IsZero() {
		state.Uptime = now.Sub(w.startedAt).Truncate(time.Second).String()
	}
	return state
}

func (w *worker) String() string {
	return fmt.Sprintf("%s(priority=%d)", w.spec.Name, w.spec.Priority)
}
