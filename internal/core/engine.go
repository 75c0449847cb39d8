package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/decision"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/execution"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var (
	// ErrClosed is returned once Close has been called.
	ErrClosed = errors.New("engine is closed")
	// ErrRateLimited is returned when proposals arrive faster than allowed.
	ErrRateLimited = errors.New("proposal rate limit exceeded")
	// ErrInvalidVerdict is returned by Decide for anything but approve or
	// reject.
	ErrInvalidVerdict = errors.New("invalid verdict")
	// ErrInvalidWorkingDir is returned for a default working directory that
	// does not exist or is not a directory.
	ErrInvalidWorkingDir = errors.New("invalid working directory")
)

const (
	sourceOperator = "operator"
	sourcePolicy   = "policy"
	sourceEngine   = "engine"

	reasonRejected = "rejected by operator"
	reasonTimedOut = "approval timed out"
	reasonShutdown = "engine shutting down"
	reasonCanceled = "rejected during execution"
)

// Executor runs an approved command.
type Executor interface {
	Execute(ctx context.Context, req execution.Request, timeout time.Duration) (execution.Result, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithExecutor replaces the process coordinator.
func WithExecutor(x Executor) Option {
	return func(e *Engine) {
		if x != nil {
			e.executor = x
		}
	}
}

// WithClock overrides time.Now for proposal timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// run is the per-proposal supervisor state.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	reason string // why ctx was canceled; guarded by Engine.mu
}

// Engine wires validation, the registry, decisions and execution into the
// propose, decide, execute, finalize pipeline.
type Engine struct {
	registry  *registry.Registry
	decisions *decision.Channel
	security  *security.SecurityController
	executor  Executor
	presenter Presenter
	limiter   *rate.Limiter
	logger    *slog.Logger
	now       func() time.Time
	retention registry.RetentionPolicy

	ctx          context.Context
	stop         context.CancelFunc
	consumerDone chan struct{}
	wg           sync.WaitGroup

	mu              sync.Mutex
	execTimeout     time.Duration
	decisionTimeout time.Duration
	workDir         string
	runs            map[string]*run
	closed          bool
}

// New creates an engine and starts its decision consumer. Close must be
// called to release it.
func New(opts Options, presenter Presenter, options ...Option) (*Engine, error) {
	if presenter == nil {
		presenter = NopPresenter{}
	}

	var rules []security.Rule
	if opts.Policy.RulesFile != "" {
		loaded, err := security.LoadRules(opts.Policy.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		rules = append(rules, loaded...)
	}
	rules = append(rules, opts.Rules...)
	classifier := security.NewClassifier(rules...)

	policy := opts.Policy
	if policy.CommandLevel == "" {
		policy.CommandLevel = security.ConfirmAlways
	}

	e := &Engine{
		decisions:    decision.NewChannel(),
		security:     security.NewSecurityController(&policy, classifier),
		presenter:    presenter,
		logger:       slog.Default().With("component", "engine"),
		now:          time.Now,
		retention:    opts.Retention,
		consumerDone: make(chan struct{}),
		runs:         make(map[string]*run),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.executor == nil {
		e.executor = execution.NewCoordinator(
			execution.WithShell(opts.Shell),
			execution.WithMaxConcurrent(opts.MaxConcurrent),
		)
	}
	e.registry = registry.New(registry.WithClassifier(classifier), registry.WithClock(e.now))

	if opts.ProposalsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.ProposalsPerSecond), burst)
	}

	e.ConfigureTimeout(opts.ExecutionTimeout)
	e.ConfigureDecisionTimeout(opts.DecisionTimeout)
	if opts.DefaultWorkingDir != "" {
		if err := e.ConfigureDefaultWorkingDirectory(opts.DefaultWorkingDir); err != nil {
			return nil, err
		}
	}

	e.ctx, e.stop = context.WithCancel(context.Background())
	go func() {
		defer close(e.consumerDone)
		if err := e.decisions.Run(e.ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("decision consumer stopped", "error", err)
		}
	}()

	return e, nil
}

// ConfigureTimeout sets the execution timeout for proposals dispatched from
// now on. Zero or negative restores the default.
func (e *Engine) ConfigureTimeout(d time.Duration) {
	if d <= 0 {
		d = execution.DefaultTimeout
	}
	e.mu.Lock()
	e.execTimeout = d
	e.mu.Unlock()
}

// ConfigureDecisionTimeout sets how long new and waiting proposals may stay
// pending. Zero or negative restores the default.
func (e *Engine) ConfigureDecisionTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultDecisionTimeout
	}
	e.mu.Lock()
	e.decisionTimeout = d
	e.mu.Unlock()
}

// ConfigureDefaultWorkingDirectory sets the directory used when Propose is
// given none. The path must be an existing, unrestricted directory.
func (e *Engine) ConfigureDefaultWorkingDirectory(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkingDir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWorkingDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidWorkingDir, abs)
	}
	if err := e.security.CheckWorkingDir(abs); err != nil {
		return err
	}

	e.mu.Lock()
	e.workDir = abs
	e.mu.Unlock()
	return nil
}

// Check runs validation and classification without recording anything.
func (e *Engine) Check(command string) (*security.CheckResult, error) {
	return e.security.CheckCommand(command)
}

// Propose validates and records a command, notifies the presenter and starts
// supervising it. Commands that need no human decision under the policy are
// approved immediately. Execution failures never surface here; they end in
// a failed proposal.
func (e *Engine) Propose(ctx context.Context, command, workingDir, description string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	closed := e.closed
	dir := workingDir
	if dir == "" {
		dir = e.workDir
	}
	e.mu.Unlock()

	if closed {
		return "", ErrClosed
	}

	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
		dir = wd
	}
	if err := e.security.CheckWorkingDir(dir); err != nil {
		return "", err
	}

	check, err := e.security.CheckCommand(command)
	if err != nil {
		return "", err
	}

	// Refused commands do not spend tokens.
	if e.limiter != nil && !e.limiter.Allow() {
		return "", ErrRateLimited
	}

	id, err := e.registry.Propose(command, dir, description)
	if err != nil {
		return "", err
	}

	// The execution span is parented to the caller's span while its
	// lifetime follows the engine.
	runCtx, cancel := context.WithCancel(trace.ContextWithSpanContext(e.ctx, trace.SpanContextFromContext(ctx)))
	r := &run{ctx: runCtx, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		_ = e.registry.Reject(id, reasonShutdown)
		return "", ErrClosed
	}
	e.runs[id] = r
	e.wg.Add(1)
	e.mu.Unlock()

	waiter := e.decisions.Await(id)

	e.logger.Info("proposal created",
		"proposal_id", id,
		"risk", check.Risk,
		"requires_approval", check.RequiresAuth,
	)
	if p, err := e.registry.Get(id); err == nil {
		e.presenter.ProposalCreated(p)
	}

	if !check.RequiresAuth {
		_ = e.decisions.Send(decision.Decision{
			ProposalID: id,
			Verdict:    decision.VerdictApprove,
			Source:     sourcePolicy,
			Reason:     fmt.Sprintf("auto-approved (%s risk, level %s)", check.Risk, e.security.Policy().CommandLevel),
		})
	}

	go e.supervise(id, r, waiter)
	return id, nil
}

// Decide records a human verdict. A pending proposal receives the decision
// through the channel; the first decision delivered wins. A nil error for a
// pending proposal means the verdict was queued, not that it took effect: if
// another decision is delivered first this one is dropped. Use Wait or Get
// to learn the outcome. Rejecting an approved or executing proposal cancels
// it, killing the process group if it was already spawned.
func (e *Engine) Decide(id string, verdict decision.Verdict) error {
	return e.DecideWithReason(id, verdict, "")
}

// DecideWithReason is Decide with an explanation kept on rejected or failed
// proposals.
func (e *Engine) DecideWithReason(id string, verdict decision.Verdict, reason string) error {
	if verdict != decision.VerdictApprove && verdict != decision.VerdictReject {
		return fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	p, err := e.registry.Get(id)
	if err != nil {
		return err
	}

	target := registry.StatusApproved
	if verdict == decision.VerdictReject {
		target = registry.StatusRejected
	}

	switch p.Status {
	case registry.StatusPending:
		return e.decisions.Send(decision.Decision{
			ProposalID: id,
			Verdict:    verdict,
			Source:     sourceOperator,
			Reason:     reason,
		})

	case registry.StatusApproved, registry.StatusExecuting:
		if verdict == decision.VerdictApprove {
			return &registry.TransitionError{ID: id, From: p.Status, To: target}
		}
		if reason == "" {
			reason = reasonCanceled
		}
		if !e.cancelRun(id, reason) {
			return &registry.TransitionError{ID: id, From: p.Status, To: target}
		}
		e.logger.Info("execution canceled", "proposal_id", id, "status", p.Status)
		return nil

	default:
		return &registry.TransitionError{ID: id, From: p.Status, To: target}
	}
}

// Wait blocks until the proposal is terminal or ctx ends.
func (e *Engine) Wait(ctx context.Context, id string) (registry.Proposal, error) {
	e.mu.Lock()
	r, ok := e.runs[id]
	e.mu.Unlock()

	if ok {
		select {
		case <-r.done:
		case <-ctx.Done():
			return registry.Proposal{}, ctx.Err()
		}
	}
	return e.registry.Get(id)
}

// Get returns a snapshot of a proposal.
func (e *Engine) Get(id string) (registry.Proposal, error) {
	return e.registry.Get(id)
}

// IsSafe reports whether a proposal is not high risk.
func (e *Engine) IsSafe(id string) (bool, error) {
	return e.registry.IsSafe(id)
}

// ListPending returns pending proposals, oldest first.
func (e *Engine) ListPending() []registry.Proposal {
	return e.registry.ListPending()
}

// ListByStatus returns proposals in the given status, oldest first.
func (e *Engine) ListByStatus(status registry.Status) []registry.Proposal {
	return e.registry.ListByStatus(status)
}

// List returns every proposal, oldest first.
func (e *Engine) List() []registry.Proposal {
	return e.registry.List()
}

// Retention returns the configured retention policy.
func (e *Engine) Retention() registry.RetentionPolicy {
	return e.retention
}

// Cleanup removes terminal proposals past policy and drops decisions that
// can no longer be delivered. It returns the number of proposals removed.
func (e *Engine) Cleanup(policy registry.RetentionPolicy) int {
	removed := e.registry.Cleanup(policy)
	dropped := e.decisions.Prune(func(id string) bool {
		p, err := e.registry.Get(id)
		return err == nil && !p.Status.IsTerminal()
	})
	if removed > 0 || dropped > 0 {
		e.logger.Debug("cleanup", "removed", removed, "dropped_decisions", dropped)
	}
	return removed
}

// Statistics counts proposals per status.
func (e *Engine) Statistics() Statistics {
	counts := e.registry.Counts()
	return Statistics{
		Pending:         counts[registry.StatusPending],
		Approved:        counts[registry.StatusApproved],
		Rejected:        counts[registry.StatusRejected],
		Executing:       counts[registry.StatusExecuting],
		Executed:        counts[registry.StatusExecuted],
		Failed:          counts[registry.StatusFailed],
		ParkedDecisions: e.decisions.Parked(),
	}
}

// Close rejects pending proposals, cancels running executions and waits for
// every supervisor to finish.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.stop()
	e.wg.Wait()
	e.decisions.Close()
	<-e.consumerDone
	return nil
}

func (e *Engine) supervise(id string, r *run, waiter <-chan decision.Decision) {
	defer e.wg.Done()
	defer e.finish(id, r)

	d, ok := e.awaitDecision(id, waiter)
	if !ok {
		e.reject(id, reasonShutdown)
		return
	}

	if !d.Verdict.Approved() {
		e.reject(id, rejectReason(d))
		return
	}

	if err := e.registry.Approve(id); err != nil {
		e.logger.Warn("approve failed", "proposal_id", id, "error", err)
		return
	}
	e.logger.Info("proposal approved", "proposal_id", id, "source", d.Source)
	e.notifyState(id)

	e.execute(id, r)
}

// awaitDecision waits for the first decision on id. When the decision
// timeout fires a timeout verdict is sent through the channel, so a human
// decision already in flight still wins. ok is false on shutdown.
func (e *Engine) awaitDecision(id string, waiter <-chan decision.Decision) (decision.Decision, bool) {
	e.mu.Lock()
	timeout := e.decisionTimeout
	e.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-waiter:
		return d, true
	case <-e.ctx.Done():
		return decision.Decision{}, false
	case <-timer.C:
		_ = e.decisions.Send(decision.Decision{
			ProposalID: id,
			Verdict:    decision.VerdictTimeout,
			Source:     sourceEngine,
			Reason:     fmt.Sprintf("%s after %s", reasonTimedOut, timeout),
		})
	}

	select {
	case d := <-waiter:
		return d, true
	case <-e.ctx.Done():
		return decision.Decision{}, false
	}
}

func (e *Engine) execute(id string, r *run) {
	if err := e.registry.BeginExecution(id); err != nil {
		e.logger.Warn("dispatch refused", "proposal_id", id, "error", err)
		return
	}
	e.notifyState(id)

	p, err := e.registry.Get(id)
	if err != nil {
		return
	}

	// Rejected or shut down between approval and dispatch: never spawn.
	if r.ctx.Err() != nil {
		e.finalize(id, registry.Failed(e.cancelReason(r)))
		return
	}

	e.mu.Lock()
	timeout := e.execTimeout
	e.mu.Unlock()

	res, err := e.executor.Execute(r.ctx, execution.Request{
		ID:         id,
		Command:    p.Command,
		WorkingDir: p.WorkingDir,
	}, timeout)

	var outcome registry.Outcome
	switch {
	case err == nil:
		outcome = registry.Executed(res)
	case errors.Is(err, execution.ErrTimedOut):
		outcome = registry.Failed(res.Stderr)
	case errors.Is(err, execution.ErrCanceled):
		outcome = registry.Failed(e.cancelReason(r))
	default:
		outcome = registry.Failed(err.Error())
	}

	e.finalize(id, outcome)
	e.presenter.ExecutionCompleted(id, res)
}

func (e *Engine) finalize(id string, outcome registry.Outcome) {
	if err := e.registry.Finalize(id, outcome); err != nil {
		e.logger.Error("finalize failed", "proposal_id", id, "error", err)
		return
	}
	e.notifyState(id)
}

func (e *Engine) reject(id, reason string) {
	if err := e.registry.Reject(id, reason); err != nil {
		e.logger.Warn("reject failed", "proposal_id", id, "error", err)
		return
	}
	e.notifyState(id)
}

func (e *Engine) notifyState(id string) {
	p, err := e.registry.Get(id)
	if err != nil {
		return
	}

	attrs := []any{"proposal_id", id, "status", p.Status}
	if p.Result != nil {
		attrs = append(attrs, "exit_code", p.Result.ExitCode, "duration", p.Result.Duration)
	}
	if p.Reason != "" {
		attrs = append(attrs, "reason", p.Reason)
	}
	e.logger.Info("proposal state changed", attrs...)

	e.presenter.ProposalStateChanged(p)
}

// cancelRun cancels the execution context of an active proposal.
func (e *Engine) cancelRun(id, reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.runs[id]
	if !ok {
		return false
	}
	if r.reason == "" {
		r.reason = reason
	}
	r.cancel()
	return true
}

func (e *Engine) cancelReason(r *run) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if r.reason != "" {
		return r.reason
	}
	return reasonShutdown
}

func (e *Engine) finish(id string, r *run) {
	e.decisions.Forget(id)
	r.cancel()

	e.mu.Lock()
	delete(e.runs, id)
	e.mu.Unlock()

	close(r.done)
}

func rejectReason(d decision.Decision) string {
	if d.Reason != "" {
		return d.Reason
	}
	if d.Verdict == decision.VerdictTimeout {
		return reasonTimedOut
	}
	return reasonRejected
}
