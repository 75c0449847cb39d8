package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// keyMap defines key bindings for the TUI
type keyMap struct {
	Up         key
	Down       key
	Approve    key
	Reject     key
	ApproveAll key
	RejectAll  key
	Detail     key
	Quit       key
}

// key represents a key binding with help text
type key struct {
	tea.Key
	help string
}

// shortHelp returns key bindings for the status bar
func (k keyMap) shortHelp() []key {
	return []key{k.Approve, k.Reject, k.ApproveAll, k.RejectAll, k.Detail, k.Quit}
}

// fullHelp returns all key bindings
func (k keyMap) fullHelp() []key {
	return []key{
		k.Up, k.Down,
		k.Approve, k.Reject,
		k.ApproveAll, k.RejectAll,
		k.Detail, k.Quit,
	}
}

// Help generates the help view
func (k keyMap) Help() helpWrapper {
	return helpWrapper{keyMap: k}
}

type helpWrapper struct {
	keyMap keyMap
}

// String returns every binding with its key
func (h helpWrapper) String() string {
	parts := make([]string, 0, len(h.keyMap.fullHelp()))
	for _, k := range h.keyMap.fullHelp() {
		parts = append(parts, k.String()+" "+k.help)
	}
	return strings.Join(parts, "\n")
}

// View returns the one-line help for the status bar
func (h helpWrapper) View() string {
	var b strings.Builder
	for _, k := range h.keyMap.shortHelp() {
		b.WriteString("[" + k.String() + "] " + k.help + "  ")
	}
	return strings.TrimRight(b.String(), " ")
}

func runeKey(r rune, help string) key {
	return key{Key: tea.Key{Type: tea.KeyRunes, Runes: []rune{r}}, help: help}
}

// defaultKeyMap creates the default key bindings
func defaultKeyMap() keyMap {
	return keyMap{
		Up:         runeKey('k', "上移"),
		Down:       runeKey('j', "下移"),
		Approve:    runeKey('a', "授权选中"),
		Reject:     runeKey('r', "拒绝选中"),
		ApproveAll: runeKey('A', "全部授权"),
		RejectAll:  runeKey('R', "全部拒绝"),
		Detail: key{
			Key:  tea.Key{Type: tea.KeyEnter},
			help: "查看详情",
		},
		Quit: runeKey('q', "退出"),
	}
}
