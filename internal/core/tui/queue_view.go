package tui

import (
	"fmt"
	"strings"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/execution"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/security"
	"github.com/charmbracelet/lipgloss"
)

const maxCommandWidth = 60

// Renderer handles TUI rendering
type Renderer struct {
	width  int
	height int
	style  *StyleConfig
}

// StyleConfig defines visual styles
type StyleConfig struct {
	TitleColor    lipgloss.Color
	SubtleColor   lipgloss.Color
	ErrorColor    lipgloss.Color
	SuccessColor  lipgloss.Color
	WarningColor  lipgloss.Color
	SelectedColor lipgloss.Color
	BorderColor   lipgloss.Color
}

// DefaultStyleConfig returns the default style configuration
func DefaultStyleConfig() *StyleConfig {
	return &StyleConfig{
		TitleColor:    lipgloss.Color("10"),  // Green
		SubtleColor:   lipgloss.Color("241"), // Grey
		ErrorColor:    lipgloss.Color("9"),   // Red
		SuccessColor:  lipgloss.Color("10"),  // Green
		WarningColor:  lipgloss.Color("11"),  // Yellow
		SelectedColor: lipgloss.Color("12"),  // Blue
		BorderColor:   lipgloss.Color("8"),   // Dark grey
	}
}

// NewRenderer creates a new TUI renderer
func NewRenderer(width, height int) *Renderer {
	return &Renderer{
		width:  width,
		height: height,
		style:  DefaultStyleConfig(),
	}
}

// Render renders the queue view
func (r *Renderer) Render(mdl *model) string {
	header := r.renderHeader()
	content := r.renderProposals(mdl)
	footer := r.renderFooter(mdl)

	// Push the footer to the bottom when the window height is known
	if r.height > 0 {
		used := countLines(header) + countLines(content) + countLines(footer)
		if pad := r.height - used; pad > 0 {
			content += strings.Repeat("\n", pad)
		}
	}

	return header + "\n" + content + footer
}

func (r *Renderer) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(r.style.TitleColor).
		Bold(true).
		Render("cmdgate 授权队列")

	border := lipgloss.NewStyle().
		Foreground(r.style.BorderColor).
		Render(strings.Repeat("─", 62))

	return title + "\n" + border
}

func (r *Renderer) renderProposals(mdl *model) string {
	if len(mdl.proposals) == 0 {
		return r.renderEmptyState()
	}

	var b strings.Builder
	current := group(-1)
	for i, p := range mdl.proposals {
		if g := groupOf(p.Status); g != current {
			current = g
			b.WriteString(r.renderGroupHeader(g))
		}
		b.WriteString(r.renderProposal(p, i == mdl.cursor))
	}

	if len(mdl.pending()) == 0 {
		b.WriteString(lipgloss.NewStyle().
			Foreground(r.style.SubtleColor).
			Render("\n  没有待授权命令") + "\n")
	}

	return b.String()
}

func (r *Renderer) renderEmptyState() string {
	return lipgloss.NewStyle().
		Foreground(r.style.SubtleColor).
		Render("\n  没有待授权命令\n")
}

func (r *Renderer) renderGroupHeader(g group) string {
	var title string
	switch g {
	case groupPending:
		title = "待授权"
	case groupActive:
		title = "执行中"
	default:
		title = "已完成"
	}

	style := lipgloss.NewStyle().
		Foreground(r.style.SelectedColor).
		Bold(true)

	return fmt.Sprintf("\n  %s\n", style.Render(title))
}

func (r *Renderer) renderProposal(p registry.Proposal, selected bool) string {
	cursor := " "
	if selected {
		cursor = ">"
	}

	line := fmt.Sprintf("  %s [%s] %s %s", cursor, r.renderStatus(p.Status), shortID(p.ID), r.renderCommand(p))
	if p.Risk == security.RiskHigh && p.Status == registry.StatusPending {
		line += lipgloss.NewStyle().Foreground(r.style.ErrorColor).Render("  高风险")
	}
	line += "\n"

	if p.Reason != "" {
		line += lipgloss.NewStyle().
			Foreground(r.style.SubtleColor).
			Render("       "+p.Reason) + "\n"
	}
	return line
}

func (r *Renderer) renderStatus(status registry.Status) string {
	var symbol string
	var color lipgloss.Color

	switch status {
	case registry.StatusPending:
		symbol = " "
		color = r.style.SubtleColor
	case registry.StatusApproved:
		symbol = "✓"
		color = r.style.SuccessColor
	case registry.StatusRejected:
		symbol = "✗"
		color = r.style.ErrorColor
	case registry.StatusExecuting:
		symbol = "⋯"
		color = r.style.WarningColor
	case registry.StatusExecuted:
		symbol = "✓"
		color = r.style.SuccessColor
	case registry.StatusFailed:
		symbol = "!"
		color = r.style.ErrorColor
	default:
		symbol = "?"
		color = r.style.SubtleColor
	}

	return lipgloss.NewStyle().Foreground(color).Render(symbol)
}

func (r *Renderer) renderCommand(p registry.Proposal) string {
	cmdStr := strings.ReplaceAll(p.Command, "\n", " ")

	if runes := []rune(cmdStr); len(runes) > maxCommandWidth {
		cmdStr = string(runes[:maxCommandWidth-3]) + "..."
	}

	return lipgloss.NewStyle().
		Foreground(r.style.TitleColor).
		Render(cmdStr)
}

func (r *Renderer) renderFooter(mdl *model) string {
	var s string
	if mdl.notice != "" {
		s += lipgloss.NewStyle().Foreground(r.style.WarningColor).Render(mdl.notice) + "\n"
	}

	statusBar := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Background(lipgloss.Color("235")).
		Padding(0, 1).
		Border(lipgloss.NormalBorder()).
		BorderForeground(r.style.SubtleColor).
		MarginTop(1)

	return "\n" + s + statusBar.Render(mdl.keys.Help().View()) + "\n"
}

// RenderDetail renders a single proposal with its result
func (r *Renderer) RenderDetail(p registry.Proposal) string {
	label := lipgloss.NewStyle().Foreground(r.style.SubtleColor)

	var b strings.Builder
	b.WriteString(r.renderHeader() + "\n\n")
	fmt.Fprintf(&b, "%s %s\n", label.Render("ID:  "), p.ID)
	fmt.Fprintf(&b, "%s %s\n", label.Render("命令:"), p.Command)
	fmt.Fprintf(&b, "%s %s\n", label.Render("目录:"), p.WorkingDir)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s %s\n", label.Render("说明:"), p.Description)
	}
	fmt.Fprintf(&b, "%s %s\n", label.Render("风险:"), p.Risk)
	fmt.Fprintf(&b, "%s [%s] %s\n", label.Render("状态:"), r.renderStatus(p.Status), p.Status)
	if p.Reason != "" {
		fmt.Fprintf(&b, "%s %s\n", label.Render("原因:"), p.Reason)
	}

	if p.Result != nil {
		b.WriteString("\n")
		if p.Result.Success {
			b.WriteString(p.Result.Stdout)
		} else {
			b.WriteString(lipgloss.NewStyle().
				Foreground(r.style.ErrorColor).
				Render(execution.ErrorDetails(*p.Result)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n" + label.Render("[enter] 返回") + "\n")
	return b.String()
}

// countLines counts the number of lines in a string
func countLines(s string) int {
	if s == "" {
		return 0
	}
	count := strings.Count(s, "\n")
	if s[len(s)-1] != '\n' {
		count++
	}
	return count
}
