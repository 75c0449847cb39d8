package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/config"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const cleanupInterval = 30 * time.Second

var _ tui.Source = (*core.Engine)(nil)

var queueDir string

// getQueueCommand returns the queue command
func getQueueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue <command>...",
		Short: "批量提交命令并在 TUI 中授权",
		Long: `将每个参数作为一条命令提交，然后打开 TUI 界面
查看、授权或拒绝。退出时仍待授权的命令会被拒绝。`,
		Args: cobra.MinimumNArgs(1),
		RunE: runQueue,
	}

	cmd.Flags().StringVarP(&queueDir, "dir", "d", "", "工作目录")

	return cmd
}

func runQueue(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(config.GetConfig().EngineOptions(), core.NopPresenter{})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := cmd.Context()
	proposed := 0
	for _, command := range args {
		if _, err := engine.Propose(ctx, command, queueDir, ""); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "跳过 %q: %v\n", command, err)
			continue
		}
		proposed++
	}
	if proposed == 0 {
		return errors.New("没有可提交的命令")
	}

	g, gctx := errgroup.WithContext(ctx)
	tuiDone := make(chan struct{})

	g.Go(func() error {
		defer close(tuiDone)
		p := tea.NewProgram(tui.NewModel(engine), tea.WithAltScreen(), tea.WithContext(gctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tuiDone:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				engine.Cleanup(engine.Retention())
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}

	waitInFlight(ctx, cmd, engine)
	if err := engine.Close(); err != nil {
		return err
	}

	printSummary(cmd, engine.Statistics())
	return nil
}

// waitInFlight lets approved commands finish before Close cancels them.
func waitInFlight(ctx context.Context, cmd *cobra.Command, engine *core.Engine) {
	var inFlight []registry.Proposal
	for _, p := range engine.List() {
		if p.Status == registry.StatusApproved || p.Status == registry.StatusExecuting {
			inFlight = append(inFlight, p)
		}
	}
	if len(inFlight) == 0 {
		return
	}

	fmt.Fprintf(cmd.OutOrStdout(), "等待 %d 个命令完成...\n", len(inFlight))
	for _, p := range inFlight {
		if _, err := engine.Wait(ctx, p.ID); err != nil {
			return
		}
	}
}

func printSummary(cmd *cobra.Command, stats core.Statistics) {
	fmt.Fprintf(cmd.OutOrStdout(), "完成: %d 个已执行, %d 个失败, %d 个已拒绝\n",
		stats.Executed, stats.Failed, stats.Rejected)
}
