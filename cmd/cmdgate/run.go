package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/config"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/decision"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/terminal"
	"github.com/spf13/cobra"
)

var (
	runDir      string
	runDesc     string
	runYes      bool
	runTimeout  int
	runNoRender bool
)

// getRunCommand returns the run command
func getRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <command>",
		Short: "提交一条命令，授权后执行",
		Long: `校验并提交一条 shell 命令。需要授权时在终端中询问，
批准后执行并输出结果。命令失败、被拒绝或超时时以非零状态退出。`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().StringVarP(&runDir, "dir", "d", "", "工作目录")
	cmd.Flags().StringVar(&runDesc, "desc", "", "命令说明")
	cmd.Flags().BoolVarP(&runYes, "yes", "y", false, "跳过授权确认")
	cmd.Flags().IntVarP(&runTimeout, "timeout", "t", 0, "执行超时（秒）")
	cmd.Flags().BoolVar(&runNoRender, "no-render", false, "禁用 markdown 渲染")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	opts := config.GetConfig().EngineOptions()
	if runTimeout > 0 {
		opts.ExecutionTimeout = time.Duration(runTimeout) * time.Second
	}

	var renderer *terminal.Renderer
	if !runNoRender {
		// Fall back to raw markdown when no renderer is available
		renderer, _ = terminal.NewRenderer(100)
	}

	engine, err := newEngine(opts, terminal.NewPresenter(cmd.OutOrStdout(), renderer))
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	command := strings.Join(args, " ")

	check, err := engine.Check(command)
	if err != nil {
		return fmt.Errorf("命令未通过校验: %w", err)
	}

	id, err := engine.Propose(ctx, command, runDir, runDesc)
	if err != nil {
		return err
	}

	if err := confirm(ctx, engine, id, check); err != nil {
		return err
	}

	final, err := engine.Wait(ctx, id)
	if errors.Is(err, context.Canceled) {
		// Interrupted: cancel the run and report how it ended
		_ = engine.DecideWithReason(id, decision.VerdictReject, "interrupted")
		final, err = engine.Wait(context.Background(), id)
	}
	if err != nil {
		return err
	}

	return outcome(final)
}

// confirm asks for a decision when the proposal is still pending. An
// interrupt while the prompt is open rejects the proposal.
func confirm(ctx context.Context, engine *core.Engine, id string, check *security.CheckResult) error {
	p, err := engine.Get(id)
	if err != nil {
		return err
	}
	if p.Status != registry.StatusPending {
		return nil
	}

	verdict := decision.VerdictApprove
	if !runYes {
		type answer struct {
			approved bool
			err      error
		}
		answers := make(chan answer, 1)
		go func() {
			approved, err := terminal.Confirm(p, check)
			answers <- answer{approved, err}
		}()

		select {
		case a := <-answers:
			if a.err != nil && !errors.Is(a.err, terminal.ErrNoAnswer) {
				return fmt.Errorf("failed to read confirmation: %w", a.err)
			}
			if !a.approved {
				verdict = decision.VerdictReject
			}
		case <-ctx.Done():
			verdict = decision.VerdictReject
		}
	}

	err = engine.Decide(id, verdict)
	// The approval may have timed out while the prompt was open
	if errors.Is(err, registry.ErrInvalidTransition) {
		return nil
	}
	return err
}

// outcome maps a terminal proposal to the process exit status.
func outcome(p registry.Proposal) error {
	switch p.Status {
	case registry.StatusExecuted:
		if p.Result == nil || p.Result.ExitCode == 0 {
			return nil
		}
		code := p.Result.ExitCode
		if code < 0 {
			// Killed by a signal
			code = 1
		}
		return &exitError{code: code}
	case registry.StatusRejected:
		return &exitError{code: 1, msg: "✗ 已拒绝: " + p.Reason}
	default:
		return &exitError{code: 1, msg: "❌ 执行失败: " + p.Reason}
	}
}
