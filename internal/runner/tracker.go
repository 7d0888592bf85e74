// Package runner orchestrates a wind calculation end to end: meshing,
// solving and extraction, with one run in flight at a time and a tracker
// the status endpoint polls for coarse progress.
package runner

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/AzatSkyArchLab/wind-cfd-service/internal/domain"
)

// State is the lifecycle phase of the single calculation slot.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateError     State = "error"
	StateStopped   State = "stopped"
)

// Progress bands per pipeline stage. Solving interpolates between its band
// and the extraction band using the solver log.
const (
	progressPrepare   = 5
	progressCase      = 10
	progressBlockMesh = 20
	progressSnappy    = 30
	progressSolve     = 45
	progressExtract   = 90
	progressDone      = 100
)

// logTailBytes bounds how much of the solver log is read per status poll.
const logTailBytes = 4096

// Status is the externally visible run state.
type Status struct {
	State           State  `json:"status"`
	Progress        int    `json:"progress"`
	Message         string `json:"message"`
	Error           string `json:"error,omitempty"`
	Iteration       int    `json:"iteration,omitempty"`
	TotalIterations int    `json:"total_iterations,omitempty"`
}

// Tracker guards the single calculation slot and reports its progress.
// While the solver runs, Snapshot refines the progress band by tailing the
// solver log for the latest iteration marker.
type Tracker struct {
	mu         sync.Mutex
	status     Status
	solveLog   string
	totalIters int
}

func NewTracker() *Tracker {
	return &Tracker{status: Status{State: StateIdle}}
}

// Begin claims the calculation slot. Only one run may be in flight;
// a second attempt gets ErrBusy.
func (t *Tracker) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State == StateRunning {
		return domain.ErrBusy
	}
	t.status = Status{State: StateRunning, Progress: progressPrepare, Message: "preparing calculation"}
	t.solveLog = ""
	t.totalIters = 0
	return nil
}

// SetPhase advances the coarse progress band.
func (t *Tracker) SetPhase(progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State != StateRunning {
		return
	}
	t.status.Progress = progress
	t.status.Message = message
	t.solveLog = ""
}

// BeginSolve enters the solver band and arms log-based refinement.
func (t *Tracker) BeginSolve(logPath string, totalIters int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State != StateRunning {
		return
	}
	t.status.Progress = progressSolve
	t.status.Message = "running solver"
	t.status.TotalIterations = totalIters
	t.solveLog = logPath
	t.totalIters = totalIters
}

// EndSolve leaves the solver band; subsequent snapshots stop tailing.
func (t *Tracker) EndSolve() {
	t.SetPhase(progressExtract, "extracting results")
}

// Complete marks the run finished. A stop request issued during the run
// wins over the completion.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State == StateStopped {
		return
	}
	t.status = Status{State: StateCompleted, Progress: progressDone, Message: "calculation completed"}
	t.solveLog = ""
}

// Fail marks the run failed with a user-facing message. A stop request
// issued during the run wins over the failure.
func (t *Tracker) Fail(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State == StateStopped {
		return
	}
	t.status = Status{State: StateError, Message: "calculation failed", Error: msg}
	t.solveLog = ""
}

// Stop records a stop request. Cancellation is cooperative: an external
// step already in flight runs to completion, but the run's final state
// stays stopped.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{State: StateStopped, Message: "calculation stopped"}
	t.solveLog = ""
}

// Reset forces the slot back to idle, discarding any terminal state.
// Used by cleanup, which invalidates whatever the last run produced.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{State: StateIdle}
	t.solveLog = ""
	t.totalIters = 0
}

// Stopped reports whether a stop was requested.
func (t *Tracker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.State == StateStopped
}

// ConsumeCompleted resets a finished slot back to idle and reports whether
// it did so. Called when a result is served, so the status endpoint reports
// completion exactly once per run.
func (t *Tracker) ConsumeCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.State != StateCompleted {
		return false
	}
	t.status = Status{State: StateIdle}
	return true
}

// Snapshot returns the current status. During solving it refines the
// progress band from the solver log tail, capped just below the extraction
// band. The log read happens outside the lock so slow disk never stalls
// the run's own state transitions.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	st := t.status
	solveLog := t.solveLog
	totalIters := t.totalIters
	t.mu.Unlock()

	if st.State == StateRunning && solveLog != "" && totalIters > 0 {
		if iter, ok := lastIteration(solveLog); ok {
			st.Iteration = iter
			span := progressExtract - progressSolve
			p := progressSolve + span*iter/totalIters
			if p >= progressExtract {
				p = progressExtract - 1
			}
			if p > st.Progress {
				st.Progress = p
			}
		}
	}
	return st
}

// lastIteration tails the solver log and returns the most recent
// "Time = N" marker.
func lastIteration(path string) (int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, false
	}
	offset := info.Size() - logTailBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, info.Size()-offset)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return 0, false
	}
	buf = buf[:n]

	lines := strings.Split(string(buf), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		rest, ok := strings.CutPrefix(strings.TrimSpace(lines[i]), "Time = ")
		if !ok {
			continue
		}
		if iter, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			return iter, true
		}
	}
	return 0, false
}
