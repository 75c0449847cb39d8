package terminal

import (
	"strings"
	"testing"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/execution"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
)

var _ core.Presenter = (*Presenter)(nil)

func TestPresenter_Lifecycle(t *testing.T) {
	out := &strings.Builder{}
	p := NewPresenter(out, nil)

	prop := testProposal()
	prop.ID = "0123456789abcdef"
	p.ProposalCreated(prop)

	prop.Status = registry.StatusRejected
	prop.Reason = "approval timed out"
	p.ProposalStateChanged(prop)

	got := out.String()
	if !strings.Contains(got, "[01234567]") {
		t.Errorf("Expected short id in output, got %q", got)
	}
	if strings.Contains(got, "0123456789abcdef") {
		t.Error("Expected id to be shortened")
	}
	if !strings.Contains(got, "已拒绝: approval timed out") {
		t.Errorf("Expected status and reason, got %q", got)
	}
}

func TestPresenter_ExecutionCompleted(t *testing.T) {
	out := &strings.Builder{}
	p := NewPresenter(out, nil)

	p.ExecutionCompleted("id", execution.Result{Stdout: "hello\n", ExitCode: 0, Success: true, Duration: time.Second})

	got := out.String()
	if !strings.Contains(got, "执行成功") || !strings.Contains(got, "hello") {
		t.Errorf("Unexpected output: %q", got)
	}
}

func TestFormatResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		md := FormatResult(execution.Result{Stdout: "a\n", Stderr: "warn\n", Success: true})
		if !strings.Contains(md, "```text\na\n```") {
			t.Errorf("Expected stdout block, got %q", md)
		}
		if !strings.Contains(md, "**stderr**") {
			t.Error("Expected stderr section")
		}
	})

	t.Run("failure", func(t *testing.T) {
		md := FormatResult(execution.Result{Stderr: "Command timed out after 1 seconds", ExitCode: -1, TimedOut: true})
		if !strings.Contains(md, "执行失败") {
			t.Error("Expected failure header")
		}
		if !strings.Contains(md, "Exit code: -1") || !strings.Contains(md, "Command timed out") {
			t.Errorf("Expected error details, got %q", md)
		}
	})
}

func TestStatusLabel(t *testing.T) {
	statuses := []registry.Status{
		registry.StatusPending,
		registry.StatusApproved,
		registry.StatusRejected,
		registry.StatusExecuting,
		registry.StatusExecuted,
		registry.StatusFailed,
	}

	seen := make(map[string]bool)
	for _, s := range statuses {
		label := StatusLabel(s)
		if label == string(s) {
			t.Errorf("Expected a display label for %s", s)
		}
		if seen[label] {
			t.Errorf("Duplicate label %q", label)
		}
		seen[label] = true
	}
}
