package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
)

var (
	// ErrNotFound is returned for unknown proposal IDs.
	ErrNotFound = errors.New("proposal not found")
	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// TransitionError reports a transition refused by the state machine.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition proposal %s from %s to %s", e.ID, e.From, e.To)
}

// Is lets errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// RetentionPolicy bounds how long terminal proposals are kept. Zero fields
// disable the corresponding limit.
type RetentionPolicy struct {
	MaxAge   time.Duration
	MaxCount int
}

// Registry is the authoritative store of proposal state. Every transition is
// a single check-then-mutate under one mutex, with no I/O inside.
type Registry struct {
	classifier *security.Classifier
	now        func() time.Time

	mu        sync.Mutex
	proposals map[string]*Proposal
	seq       uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithClassifier replaces the built-in classification rules.
func WithClassifier(c *security.Classifier) Option {
	return func(r *Registry) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithClock overrides time.Now, mostly for retention tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		classifier: security.NewClassifier(),
		now:        time.Now,
		proposals:  make(map[string]*Proposal),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Propose validates and classifies a command and records it as pending.
// Nothing is recorded when validation fails.
func (r *Registry) Propose(command, workingDir, description string) (string, error) {
	if err := r.classifier.Validate(command); err != nil {
		return "", err
	}
	risk := r.classifier.Classify(command)

	r.mu.Lock()
	defer r.mu.Unlock()

	p := newProposal(command, workingDir, description, risk, r.now())
	r.seq++
	p.seq = r.seq
	r.proposals[p.ID] = p
	return p.ID, nil
}

// Get returns a snapshot of a proposal.
func (r *Registry) Get(id string) (Proposal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return Proposal{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p.snapshot(), nil
}

// IsSafe reports whether the proposal is not High risk.
func (r *Registry) IsSafe(id string) (bool, error) {
	p, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return p.IsSafe(), nil
}

// Approve moves a pending proposal to approved.
func (r *Registry) Approve(id string) error {
	return r.transition(id, StatusApproved, func(*Proposal) {})
}

// Reject moves a pending proposal to rejected.
func (r *Registry) Reject(id, reason string) error {
	return r.transition(id, StatusRejected, func(p *Proposal) {
		p.Reason = reason
	})
}

// BeginExecution moves an approved proposal to executing. Only the first
// call for an ID can succeed, so a command is dispatched at most once.
func (r *Registry) BeginExecution(id string) error {
	return r.transition(id, StatusExecuting, func(*Proposal) {})
}

// Finalize records the terminal outcome of an executing proposal.
func (r *Registry) Finalize(id string, outcome Outcome) error {
	return r.transition(id, outcome.Status(), func(p *Proposal) {
		if outcome.result != nil {
			res := *outcome.result
			p.Result = &res
		} else {
			p.Reason = outcome.reason
			if p.Reason == "" {
				p.Reason = defaultFailReason
			}
		}
	})
}

// checkRecord verifies p, still in from, is fit to enter to: apply must not
// touch Status, and only executed proposals carry a result.
func checkRecord(p *Proposal, from, to Status) error {
	if p.Status != from {
		return fmt.Errorf("status changed from %s to %s during transition", from, p.Status)
	}
	if to == StatusExecuted && p.Result == nil {
		return fmt.Errorf("%s without a result", to)
	}
	if to != StatusExecuted && p.Result != nil {
		return fmt.Errorf("%s with a result", to)
	}
	return nil
}

// transition is the single writer for one proposal at one instant. apply
// fills in the fields the target state carries.
func (r *Registry) transition(id string, to Status, apply func(*Proposal)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	from := p.Status
	if !from.CanTransitionTo(to) {
		return &TransitionError{ID: id, From: from, To: to}
	}

	apply(p)

	// A record that does not fit its new state is a bug in this package.
	if err := checkRecord(p, from, to); err != nil {
		panic(fmt.Sprintf("registry: inconsistent record %s: %v", id, err))
	}

	p.Status = to
	p.UpdatedAt = r.now()
	return nil
}

// ListPending returns snapshots of all pending proposals, oldest first.
func (r *Registry) ListPending() []Proposal {
	return r.ListByStatus(StatusPending)
}

// ListByStatus returns snapshots of proposals in the given status, oldest
// first.
func (r *Registry) ListByStatus(status Status) []Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Proposal
	for _, p := range r.proposals {
		if p.Status == status {
			result = append(result, p.snapshot())
		}
	}
	sortBySeq(result)
	return result
}

// List returns snapshots of every proposal, oldest first.
func (r *Registry) List() []Proposal {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Proposal, 0, len(r.proposals))
	for _, p := range r.proposals {
		result = append(result, p.snapshot())
	}
	sortBySeq(result)
	return result
}

// Len returns the number of proposals held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.proposals)
}

// Counts returns the number of proposals per status.
func (r *Registry) Counts() map[Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[Status]int, len(validTransitions)+3)
	for _, p := range r.proposals {
		counts[p.Status]++
	}
	return counts
}

// Cleanup removes terminal proposals older than policy.MaxAge, then the
// oldest terminal proposals beyond policy.MaxCount. Non-terminal proposals
// are never removed. It returns the number of proposals removed.
func (r *Registry) Cleanup(policy RetentionPolicy) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var terminal []*Proposal
	removed := 0

	for id, p := range r.proposals {
		if !p.Status.IsTerminal() {
			continue
		}
		if policy.MaxAge > 0 && now.Sub(p.UpdatedAt) > policy.MaxAge {
			delete(r.proposals, id)
			removed++
			continue
		}
		terminal = append(terminal, p)
	}

	if policy.MaxCount > 0 && len(terminal) > policy.MaxCount {
		sort.Slice(terminal, func(i, j int) bool {
			if terminal[i].UpdatedAt.Equal(terminal[j].UpdatedAt) {
				return terminal[i].seq < terminal[j].seq
			}
			return terminal[i].UpdatedAt.Before(terminal[j].UpdatedAt)
		})
		for _, p := range terminal[:len(terminal)-policy.MaxCount] {
			delete(r.proposals, p.ID)
			removed++
		}
	}

	return removed
}

func sortBySeq(ps []Proposal) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].seq < ps[j].seq })
}
