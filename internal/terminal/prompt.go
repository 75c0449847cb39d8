package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
)

// ErrNoAnswer is returned when input ends before a valid choice.
var ErrNoAnswer = errors.New("no answer")

// Confirm prompts the user to approve a proposal on stdin/stdout.
// Returns true if approved, false if rejected.
func Confirm(p registry.Proposal, check *security.CheckResult) (bool, error) {
	return ConfirmWithIO(p, check, nil, nil)
}

// ConfirmWithIO prompts the user with provided IO (for testing)
func ConfirmWithIO(p registry.Proposal, check *security.CheckResult, input io.Reader, output io.Writer) (bool, error) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}

	// Display prompt
	fmt.Fprintf(output, "\n⚠️  此命令需要您的授权\n\n")
	fmt.Fprintf(output, "命令: %s\n", p.Command)
	fmt.Fprintf(output, "目录: %s\n", p.WorkingDir)
	if p.Description != "" {
		fmt.Fprintf(output, "说明: %s\n", p.Description)
	}
	fmt.Fprintf(output, "风险: %s\n", riskLabel(p.Risk))

	if check != nil && check.Reason != "" {
		fmt.Fprintf(output, "原因: %s\n", check.Reason)
	}

	fmt.Fprintf(output, "\n[y] 执行  [n] 拒绝\n> ")

	// Read input
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		choice := strings.ToLower(strings.TrimSpace(scanner.Text()))

		switch choice {
		case "y", "yes":
			fmt.Fprintln(output, "✓ 已授权执行")
			return true, nil
		case "n", "no":
			fmt.Fprintln(output, "✗ 已拒绝")
			return false, nil
		default:
			fmt.Fprintf(output, "无效选项，请输入 y/n: ")
		}
	}

	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, ErrNoAnswer
}

func riskLabel(tier security.RiskTier) string {
	switch tier {
	case security.RiskHigh:
		return "🔴 高"
	case security.RiskMedium:
		return "🟡 中"
	default:
		return "🟢 低"
	}
}
