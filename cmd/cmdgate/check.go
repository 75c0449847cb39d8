package main

import (
	"fmt"
	"strings"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/config"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
	"github.com/spf13/cobra"
)

// getCheckCommand returns the check command
func getCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <command>",
		Short: "校验命令并显示风险等级",
		Long:  "只做校验与风险分级，不提交也不执行。命令未通过校验时以非零状态退出。",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	engine, err := newEngine(config.GetConfig().EngineOptions(), nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	command := strings.Join(args, " ")
	result, checkErr := engine.Check(command)

	fmt.Fprint(cmd.OutOrStdout(), formatCheck(command, result))
	if checkErr != nil {
		return &exitError{code: 2}
	}
	return nil
}

// formatCheck renders a check result for the terminal.
func formatCheck(command string, result *security.CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "命令: %s\n", command)

	if !result.Allowed {
		fmt.Fprintf(&b, "校验: ✗ 拒绝 (%s)\n", result.Reason)
		return b.String()
	}

	fmt.Fprintf(&b, "校验: ✓ 通过\n")
	fmt.Fprintf(&b, "风险: %s\n", result.Risk)
	if result.Rule.Pattern != "" {
		fmt.Fprintf(&b, "规则: %s (%s)\n", result.Rule.Pattern, result.Rule.Description)
	}
	fmt.Fprintf(&b, "安全: %s\n", yesNo(result.Safe))
	fmt.Fprintf(&b, "需要授权: %s\n", yesNo(result.RequiresAuth))
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "是"
	}
	return "否"
}
