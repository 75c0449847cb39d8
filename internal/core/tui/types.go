package tui

import (
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/decision"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	tea "github.com/charmbracelet/bubbletea"
)

// Source is the engine surface the queue UI reads from and decides through
type Source interface {
	List() []registry.Proposal
	Decide(id string, verdict decision.Verdict) error
}

// DecideResultMsg is sent when a decision has been submitted
type DecideResultMsg struct {
	ProposalID string
	Verdict    decision.Verdict
	Err        error
}

// TickMsg is sent for periodic refresh
type TickMsg struct{}

// ProposalsLoadedMsg is sent when proposals are reloaded from the source
type ProposalsLoadedMsg struct {
	Proposals []registry.Proposal
}

// Model is the interface for the TUI model
type Model interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (tea.Model, tea.Cmd)
	View() string
}
