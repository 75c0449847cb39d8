package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/execution"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
)

// Presenter 以逐行文本输出提案生命周期
type Presenter struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *Renderer
}

// NewPresenter 创建 Presenter；renderer 为 nil 时输出原始 markdown
func NewPresenter(out io.Writer, renderer *Renderer) *Presenter {
	if out == nil {
		out = os.Stdout
	}
	return &Presenter{out: out, renderer: renderer}
}

// ProposalCreated 输出新提案
func (p *Presenter) ProposalCreated(prop registry.Proposal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "📝 [%s] %s  风险: %s\n", shortID(prop.ID), prop.Command, riskLabel(prop.Risk))
}

// ProposalStateChanged 输出状态变化
func (p *Presenter) ProposalStateChanged(prop registry.Proposal) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("→ [%s] %s", shortID(prop.ID), StatusLabel(prop.Status))
	if prop.Reason != "" {
		line += ": " + prop.Reason
	}
	fmt.Fprintln(p.out, line)
}

// ExecutionCompleted 渲染执行结果
func (p *Presenter) ExecutionCompleted(id string, result execution.Result) {
	md := FormatResult(result)

	out := md
	if p.renderer != nil {
		out, _ = p.renderer.Render(md)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(p.out)
	}
}

// FormatResult 将执行结果格式化为 markdown
func FormatResult(result execution.Result) string {
	var b strings.Builder

	if result.Success {
		fmt.Fprintf(&b, "### ✅ 执行成功 (exit %d, %s)\n\n", result.ExitCode, result.Duration.Round(time.Millisecond))
		if result.Stdout != "" {
			writeBlock(&b, result.Stdout)
		}
		if result.Stderr != "" {
			b.WriteString("**stderr**\n\n")
			writeBlock(&b, result.Stderr)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "### ❌ 执行失败 (%s)\n\n", result.Duration.Round(time.Millisecond))
	writeBlock(&b, execution.ErrorDetails(result))
	return b.String()
}

func writeBlock(b *strings.Builder, text string) {
	b.WriteString("```text\n")
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n```\n\n")
}

// StatusLabel 返回状态的显示文本
func StatusLabel(s registry.Status) string {
	switch s {
	case registry.StatusPending:
		return "⏳ 待授权"
	case registry.StatusApproved:
		return "✓ 已批准"
	case registry.StatusRejected:
		return "✗ 已拒绝"
	case registry.StatusExecuting:
		return "⚙️  执行中"
	case registry.StatusExecuted:
		return "✅ 已执行"
	case registry.StatusFailed:
		return "❌ 失败"
	default:
		return string(s)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
