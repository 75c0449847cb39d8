package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
)

func TestRootCommand_Subcommands(t *testing.T) {
	want := map[string]bool{"run": false, "queue": false, "check": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected %s command to be registered", name)
		}
	}
}

func TestCommands_HaveRunE(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.RunE == nil {
			t.Errorf("Expected %s to have RunE", c.Name())
		}
		if c.Short == "" {
			t.Errorf("Expected %s to have a short description", c.Name())
		}
	}
}

func TestRunCommand_Flags(t *testing.T) {
	cmd := getRunCommand()
	for _, name := range []string{"dir", "desc", "yes", "timeout", "no-render"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("Expected --%s flag", name)
		}
	}
	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("Expected run to require a command")
	}
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { logLevel = "" })

	if err := setupLogging("debug"); err != nil {
		t.Errorf("Expected valid level, got %v", err)
	}
	if err := setupLogging("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}

	logLevel = "warn"
	if err := setupLogging("loud"); err != nil {
		t.Errorf("Expected flag to override config, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name     string
		proposal registry.Proposal
		wantCode int // 0 means no error
	}{
		{
			name:     "executed success",
			proposal: registry.Proposal{Status: registry.StatusExecuted, Result: &registry.ExecutionResult{ExitCode: 0, Success: true}},
		},
		{
			name:     "executed non-zero",
			proposal: registry.Proposal{Status: registry.StatusExecuted, Result: &registry.ExecutionResult{ExitCode: 3}},
			wantCode: 3,
		},
		{
			name:     "killed by signal",
			proposal: registry.Proposal{Status: registry.StatusExecuted, Result: &registry.ExecutionResult{ExitCode: -1}},
			wantCode: 1,
		},
		{
			name:     "rejected",
			proposal: registry.Proposal{Status: registry.StatusRejected, Reason: "rejected by operator"},
			wantCode: 1,
		},
		{
			name:     "failed",
			proposal: registry.Proposal{Status: registry.StatusFailed, Reason: "Command timed out after 1 seconds"},
			wantCode: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := outcome(tt.proposal)
			if tt.wantCode == 0 {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}

			var ee *exitError
			if !errors.As(err, &ee) {
				t.Fatalf("Expected exitError, got %v", err)
			}
			if ee.code != tt.wantCode {
				t.Errorf("Expected code %d, got %d", tt.wantCode, ee.code)
			}
			if tt.proposal.Reason != "" && !strings.Contains(ee.msg, tt.proposal.Reason) {
				t.Errorf("Expected reason in message, got %q", ee.msg)
			}
		})
	}
}

func TestFormatCheck(t *testing.T) {
	allowed := formatCheck("rm -rf build", &security.CheckResult{
		Allowed:      true,
		Risk:         security.RiskHigh,
		Rule:         security.Rule{Pattern: "rm -rf", Description: "recursive forced deletion"},
		RequiresAuth: true,
	})
	for _, want := range []string{"✓ 通过", "风险: high", "规则: rm -rf", "安全: 否", "需要授权: 是"} {
		if !strings.Contains(allowed, want) {
			t.Errorf("Expected %q in %q", want, allowed)
		}
	}

	denied := formatCheck("", &security.CheckResult{Reason: "empty command"})
	if !strings.Contains(denied, "✗ 拒绝 (empty command)") {
		t.Errorf("Expected denial, got %q", denied)
	}
	if strings.Contains(denied, "风险") {
		t.Error("Expected no risk line for a denied command")
	}
}
