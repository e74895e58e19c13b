package enum

// WorkerStatus is the lifecycle state of a managed worker process.
type WorkerStatus uint8

const (
	_workerStatus_beg WorkerStatus = iota
	WorkerStarting
	WorkerRunning
	WorkerCrashed
	WorkerStopped
	WorkerExhausted
	_workerStatus_end
)

func (w WorkerStatus) IsAvailable() bool {
	return w > _workerStatus_beg && w < _workerStatus_end
}

// Terminal reports whether no further transitions happen from this state.
func (w WorkerStatus) Terminal() bool {
	return w == WorkerStopped || w == WorkerExhausted
}

func (w WorkerStatus) String() string {
	switch w {
	case WorkerStarting:
		return "starting"
	case WorkerRunning:
		return "running"
	case WorkerCrashed:
		return "crashed"
	case WorkerStopped:
		return "stopped"
	case WorkerExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

func (w WorkerStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + w.String() + `"`), nil
}

// ParseWorkerStatus maps the wire representation to a WorkerStatus.
func ParseWorkerStatus(s string) WorkerStatus {
	switch s {
	case "starting":
		return WorkerStarting
	case "running":
		return WorkerRunning
	case "crashed":
		return WorkerCrashed
	case "stopped":
		return WorkerStopped
	case "exhausted":
		return WorkerExhausted
	default:
		return _workerStatus_beg
	}
}

func (w *WorkerStatus) UnmarshalJSON(data []byte) error {
	trimmed := string(data)
	if len(trimmed) >= 2 && trimmed[0] == '"' {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	*w = ParseWorkerStatus(trimmed)
	return nil
}
