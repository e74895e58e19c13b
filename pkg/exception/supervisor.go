package exception

import "github.com/yanun0323/errors"

// Supervisor configuration and lifecycle errors.
var (
	ErrDuplicateWorker      = errors.New("supervisor: duplicate worker name")
	ErrUnknownWorker        = errors.New("supervisor: unknown worker")
	ErrSupervisorStarted    = errors.New("supervisor: already started")
	ErrSpawnFailed          = errors.New("supervisor: worker spawn failed")
	ErrRequiredWorkerFailed = errors.New("supervisor: required worker failed to start")
	ErrSystemDegraded       = errors.New("supervisor: required worker exhausted restart budget")
)
