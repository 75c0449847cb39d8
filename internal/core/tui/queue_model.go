package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/decision"
	"github.com/Lin-Jiong-HDU/cmdgate/internal/core/registry"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultRefreshInterval is how often the queue reloads proposals
const DefaultRefreshInterval = 500 * time.Millisecond

// model is the Bubble Tea model for the proposal queue
type model struct {
	source        Source
	proposals     []registry.Proposal
	cursor        int
	keys          keyMap
	showingDetail bool
	pendingG      bool // Tracks if 'g' was pressed for 'gg' command
	notice        string
	interval      time.Duration
	renderer      *Renderer
	width         int
	height        int
}

// NewModel creates a new queue UI model
func NewModel(source Source) Model {
	return NewModelWithOptions(source, DefaultRefreshInterval)
}

// NewModelWithOptions creates a queue UI model with a custom refresh interval
func NewModelWithOptions(source Source, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	m := model{
		source:   source,
		keys:     defaultKeyMap(),
		interval: interval,
		renderer: NewRenderer(0, 0),
	}
	m.proposals = sortForDisplay(source.List())
	return m
}

// Init initializes the model
func (m model) Init() tea.Cmd {
	return tea.Batch(
		tea.WindowSize(),
		m.tick(),
	)
}

// Update handles messages
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.renderer = NewRenderer(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		return m, tea.Batch(m.load(), m.tick())

	case ProposalsLoadedMsg:
		m.setProposals(msg.Proposals)
		return m, nil

	case DecideResultMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("[%s] 操作失败: %v", shortID(msg.ProposalID), msg.Err)
		} else {
			m.notice = fmt.Sprintf("[%s] %s", shortID(msg.ProposalID), verdictLabel(msg.Verdict))
		}
		return m, m.load()
	}

	return m, nil
}

func (m model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "q" || msg.String() == "ctrl+c" || msg.Type == tea.KeyEsc {
		return m, tea.Quit
	}

	if msg.Type == tea.KeyEnter {
		m.showingDetail = !m.showingDetail
		return m, nil
	}

	switch msg.String() {
	case "k", "up":
		m.pendingG = false
		if m.cursor > 0 {
			m.cursor--
		}
	case "j", "down":
		m.pendingG = false
		if m.cursor < len(m.proposals)-1 {
			m.cursor++
		}
	case "g":
		if m.pendingG {
			m.cursor = 0
			m.pendingG = false
		} else {
			m.pendingG = true
		}
	case "G":
		m.pendingG = false
		if len(m.proposals) > 0 {
			m.cursor = len(m.proposals) - 1
		}
	default:
		m.pendingG = false
	}

	switch msg.String() {
	case "a":
		if p, ok := m.selected(); ok && p.Status == registry.StatusPending {
			return m, m.decide(p.ID, decision.VerdictApprove)
		}
	case "r":
		// Rejecting a running proposal cancels it
		if p, ok := m.selected(); ok && !p.Status.IsTerminal() {
			return m, m.decide(p.ID, decision.VerdictReject)
		}
	case "A":
		return m, m.decideAll(decision.VerdictApprove)
	case "R":
		return m, m.decideAll(decision.VerdictReject)
	}

	return m, nil
}

// View renders the UI
func (m model) View() string {
	if m.showingDetail {
		if p, ok := m.selected(); ok {
			return m.renderer.RenderDetail(p)
		}
	}
	return m.renderer.Render(&m)
}

func (m model) selected() (registry.Proposal, bool) {
	if m.cursor < 0 || m.cursor >= len(m.proposals) {
		return registry.Proposal{}, false
	}
	return m.proposals[m.cursor], true
}

func (m *model) setProposals(ps []registry.Proposal) {
	var selectedID string
	if p, ok := m.selected(); ok {
		selectedID = p.ID
	}

	m.proposals = sortForDisplay(ps)

	m.cursor = 0
	for i, p := range m.proposals {
		if p.ID == selectedID {
			m.cursor = i
			break
		}
	}
}

func (m model) pending() []registry.Proposal {
	var out []registry.Proposal
	for _, p := range m.proposals {
		if p.Status == registry.StatusPending {
			out = append(out, p)
		}
	}
	return out
}

func (m model) decide(id string, verdict decision.Verdict) tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return DecideResultMsg{
			ProposalID: id,
			Verdict:    verdict,
			Err:        source.Decide(id, verdict),
		}
	}
}

func (m model) decideAll(verdict decision.Verdict) tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range m.pending() {
		cmds = append(cmds, m.decide(p.ID, verdict))
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m model) load() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		return ProposalsLoadedMsg{Proposals: source.List()}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// sortForDisplay orders proposals pending first, then in flight, then
// finished, keeping creation order within each group.
func sortForDisplay(ps []registry.Proposal) []registry.Proposal {
	out := make([]registry.Proposal, len(ps))
	copy(out, ps)
	sort.SliceStable(out, func(i, j int) bool {
		return groupOf(out[i].Status) < groupOf(out[j].Status)
	})
	return out
}

type group int

const (
	groupPending group = iota
	groupActive
	groupDone
)

func groupOf(s registry.Status) group {
	switch {
	case s == registry.StatusPending:
		return groupPending
	case s.IsTerminal():
		return groupDone
	default:
		return groupActive
	}
}

func verdictLabel(v decision.Verdict) string {
	if v.Approved() {
		return "已授权"
	}
	return "已拒绝"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
