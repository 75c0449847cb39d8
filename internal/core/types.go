package core

import (
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/execution"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
)

const (
	// DefaultDecisionTimeout is how long a proposal may stay pending.
	DefaultDecisionTimeout = 600 * time.Second
	// DefaultRetentionMaxAge and DefaultRetentionMaxCount bound terminal
	// proposals kept for inspection.
	DefaultRetentionMaxAge   = 300 * time.Second
	DefaultRetentionMaxCount = 100
)

// Options holds the engine configuration.
type Options struct {
	ExecutionTimeout  time.Duration
	DecisionTimeout   time.Duration
	DefaultWorkingDir string
	MaxConcurrent     int
	Shell             string

	Policy security.SecurityPolicy
	// Rules are added to the built-in classification rules, after any rules
	// loaded from Policy.RulesFile.
	Rules []security.Rule

	Retention registry.RetentionPolicy

	// ProposalsPerSecond limits Propose; zero disables the limit.
	ProposalsPerSecond float64
	Burst              int
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		ExecutionTimeout: execution.DefaultTimeout,
		DecisionTimeout:  DefaultDecisionTimeout,
		MaxConcurrent:    execution.DefaultMaxConcurrent,
		Shell:            execution.DefaultShell,
		Policy:           *security.DefaultPolicy(),
		Retention: registry.RetentionPolicy{
			MaxAge:   DefaultRetentionMaxAge,
			MaxCount: DefaultRetentionMaxCount,
		},
		Burst: 1,
	}
}

// Presenter receives lifecycle notifications. Calls are made from engine
// goroutines and must not block for long.
type Presenter interface {
	ProposalCreated(p registry.Proposal)
	ProposalStateChanged(p registry.Proposal)
	ExecutionCompleted(id string, result execution.Result)
}

// NopPresenter ignores every notification.
type NopPresenter struct{}

func (NopPresenter) ProposalCreated(registry.Proposal) {}
func (NopPresenter) ProposalStateChanged(registry.Proposal) {}
func (NopPresenter) ExecutionCompleted(string, execution.Result) {}

// Statistics is a point-in-time count of proposals per status.
type Statistics struct {
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Executing int `json:"executing"`
	Executed  int `json:"executed"`
	Failed    int `json:"failed"`

	ParkedDecisions int `json:"parked_decisions"`
}

// TotalActive counts proposals that have not reached a terminal status.
func (s Statistics) TotalActive() int {
	return s.Pending + s.Approved + s.Executing
}

// Total counts every proposal held.
func (s Statistics) Total() int {
	return s.TotalActive() + s.Rejected + s.Executed + s.Failed
}

// IsIdle reports whether nothing is waiting or running.
func (s Statistics) IsIdle() bool {
	return s.TotalActive() == 0
}
