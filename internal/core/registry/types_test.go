package registry

import (
	"testing"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusPending, "pending"},
		{StatusApproved, "approved"},
		{StatusRejected, "rejected"},
		{StatusExecuting, "executing"},
		{StatusExecuted, "executed"},
		{StatusFailed, "failed"},
	}

	for _, tt := range tests {
		if string(tt.status) != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, tt.status)
		}
	}
}

func TestNewProposal(t *testing.T) {
	now := time.Now()
	p := newProposal("ls -la", "/tmp", "list", security.RiskLow, now)

	if p.Status != StatusPending {
		t.Error("Expected initial status to be pending")
	}
	if p.ID == "" {
		t.Error("Expected ID to be generated")
	}
	if !p.CreatedAt.Equal(now) || !p.UpdatedAt.Equal(now) {
		t.Error("Expected timestamps to be set")
	}

	other := newProposal("ls -la", "/tmp", "list", security.RiskLow, now)
	if other.ID == p.ID {
		t.Error("Expected unique IDs")
	}
}

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     Status
		to       Status
		expected bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusApproved, StatusExecuting, true},
		{StatusExecuting, StatusExecuted, true},
		{StatusExecuting, StatusFailed, true},
		{StatusPending, StatusExecuting, false},
		{StatusPending, StatusExecuted, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusExecuted, false},
		{StatusExecuting, StatusApproved, false},
		{StatusRejected, StatusApproved, false},
		{StatusExecuted, StatusPending, false},
		{StatusFailed, StatusExecuting, false},
	}

	for _, tt := range tests {
		result := tt.from.CanTransitionTo(tt.to)
		if result != tt.expected {
			t.Errorf("Transition %s -> %s: expected %v, got %v",
				tt.from, tt.to, tt.expected, result)
		}
	}
}

func TestStatus_TerminalHasNoExit(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusRejected, StatusExecuting, StatusExecuted, StatusFailed}

	for _, from := range all {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Errorf("Terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestOutcome(t *testing.T) {
	ok := Executed(ExecutionResult{ExitCode: 0, Success: true})
	if ok.Status() != StatusExecuted {
		t.Errorf("Expected executed, got %s", ok.Status())
	}

	failed := Failed("timed out")
	if failed.Status() != StatusFailed {
		t.Errorf("Expected failed, got %s", failed.Status())
	}
	if failed.reason != "timed out" {
		t.Errorf("Expected reason 'timed out', got '%s'", failed.reason)
	}

	if Failed("").reason == "" {
		t.Error("Expected a default failure reason")
	}
}

func TestProposal_SnapshotDoesNotAlias(t *testing.T) {
	p := &Proposal{ID: "1", Result: &ExecutionResult{Stdout: "original"}}

	snap := p.snapshot()
	snap.Result.Stdout = "changed"

	if p.Result.Stdout != "original" {
		t.Error("Expected snapshot result to be a copy")
	}
}
