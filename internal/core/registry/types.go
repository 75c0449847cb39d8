package registry

import (
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
	"github.com/google/uuid"
)

// Status represents the current state of a proposal
type Status string

const (
	StatusPending   Status = "pending"   // Waiting for a decision
	StatusApproved  Status = "approved"  // Authorized, not yet started
	StatusRejected  Status = "rejected"  // Rejected or timed out
	StatusExecuting Status = "executing" // Process spawned or about to be
	StatusExecuted  Status = "executed"  // Process ran to completion
	StatusFailed    Status = "failed"    // Spawn, capture, timeout or cancel
)

// validTransitions is the whole state machine. Terminal states have no entry.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusExecuting},
	StatusExecuting: {StatusExecuted, StatusFailed},
}

// CanTransitionTo checks if a status transition is valid
func (s Status) CanTransitionTo(next Status) bool {
	for _, status := range validTransitions[s] {
		if status == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition is defined out of s.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusExecuted || s == StatusFailed
}

// Proposal is a request to run one shell command, tracked by ID.
type Proposal struct {
	ID          string            `json:"id"`
	Command     string            `json:"command"`
	WorkingDir  string            `json:"working_dir"`
	Description string            `json:"description"`
	Risk        security.RiskTier `json:"risk"`
	Status      Status            `json:"status"`
	Result      *ExecutionResult  `json:"result,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	seq uint64
}

// ExecutionResult holds the captured outcome of one process run.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

const defaultFailReason = "execution failed"

// Outcome is the final verdict handed to Finalize: either a completed run
// or a failure reason, never both.
type Outcome struct {
	result *ExecutionResult
	reason string
}

// Executed builds an outcome for a process that ran to completion.
func Executed(result ExecutionResult) Outcome {
	return Outcome{result: &result}
}

// Failed builds an outcome for a run that could not complete.
func Failed(reason string) Outcome {
	if reason == "" {
		reason = defaultFailReason
	}
	return Outcome{reason: reason}
}

// Status returns the terminal status the outcome maps to.
func (o Outcome) Status() Status {
	if o.result != nil {
		return StatusExecuted
	}
	return StatusFailed
}

// newProposal creates a new proposal with pending status
func newProposal(command, workingDir, description string, risk security.RiskTier, now time.Time) *Proposal {
	return &Proposal{
		ID:          uuid.New().String(),
		Command:     command,
		WorkingDir:  workingDir,
		Description: description,
		Risk:        risk,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// snapshot returns a copy that shares no memory with the registry.
func (p *Proposal) snapshot() Proposal {
	cp := *p
	if p.Result != nil {
		r := *p.Result
		cp.Result = &r
	}
	return cp
}

// IsSafe reports whether the proposal may skip a human decision under the
// "dangerous" confirm level.
func (p Proposal) IsSafe() bool {
	return p.Risk != security.RiskHigh
}
