package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/config"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "cmdgate",
	Short: "命令执行授权引擎",
	Long: `cmdgate - 在执行 shell 命令前进行校验、风险分级与人工授权。

每条命令作为提案进入队列，经批准后在受控环境中执行，
超时、拒绝与取消均会留下明确的结果。`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.InitConfig()
		if err != nil {
			return err
		}
		return setupLogging(cfg.Log.Level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")

	rootCmd.AddCommand(
		getRunCommand(),
		getQueueCommand(),
		getCheckCommand(),
	)
}

// setupLogging installs the default slog logger on stderr. The flag wins
// over the config file.
func setupLogging(configured string) error {
	name := configured
	if logLevel != "" {
		name = logLevel
	}

	level, err := config.ParseLevel(name)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// newEngine builds an engine from the loaded config.
func newEngine(opts core.Options, presenter core.Presenter) (*core.Engine, error) {
	engine, err := core.New(opts, presenter)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

// exitError carries a child process exit code back to main.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		os.Exit(ee.code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
