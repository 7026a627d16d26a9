package runner

import (
	"sync"
	"time"
)

const (
	StatusQueued    = "Queued"
	StatusRunning   = "Running"
	StatusUpToDate  = "UpToDate"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

type ExecutionStatus struct {
	Status    string
	StartTime time.Time
	EndTime   time.Time
	LogLines  []string
}

// StatusManager tracks per-target execution state. The runner writes
// it from the single ensure goroutine; the optional UI reads snapshots
// concurrently.
type StatusManager interface {
	SetStatus(name, status string)
	MarkStarted(name string)
	MarkFinished(name, status string)
	AppendLog(name, line string)
	Status(name string) ExecutionStatus
	Snapshot() map[string]ExecutionStatus
}

type statusManager struct {
	statusMap map[string]*ExecutionStatus
	mu        sync.Mutex
}

func NewStatusManager() StatusManager {
	return &statusManager{
		statusMap: make(map[string]*ExecutionStatus),
	}
}

func (sm *statusManager) get(name string) *ExecutionStatus {
	if _, exists := sm.statusMap[name]; !exists {
		sm.statusMap[name] = &ExecutionStatus{Status: StatusQueued}
	}
	return sm.statusMap[name]
}

func (sm *statusManager) SetStatus(name, status string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.get(name).Status = status
}

func (sm *statusManager) MarkStarted(name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	status := sm.get(name)
	status.Status = StatusRunning
	status.StartTime = time.Now()
}

func (sm *statusManager) MarkFinished(name, state string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	status := sm.get(name)
	status.Status = state
	status.EndTime = time.Now()
}

func (sm *statusManager) AppendLog(name, line string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	status := sm.get(name)
	status.LogLines = append(status.LogLines, line)
	if len(status.LogLines) > 100 {
		status.LogLines = status.LogLines[len(status.LogLines)-100:]
	}
}

func (sm *statusManager) Status(name string) ExecutionStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	status := sm.get(name)
	out := *status
	out.LogLines = append([]string(nil), status.LogLines...)
	return out
}

func (sm *statusManager) Snapshot() map[string]ExecutionStatus {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make(map[string]ExecutionStatus, len(sm.statusMap))
	for name, status := range sm.statusMap {
		copied := *status
		copied.LogLines = append([]string(nil), status.LogLines...)
		out[name] = copied
	}
	return out
}
