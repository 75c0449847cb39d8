package tui

import (
	"strings"
	"testing"
)

func TestKeyMap_Help(t *testing.T) {
	km := defaultKeyMap()

	helpText := km.Help().String()
	if helpText == "" {
		t.Error("Expected help to be generated")
	}

	if !strings.Contains(helpText, "授权") || !strings.Contains(helpText, "拒绝") {
		t.Error("Expected help to contain approve and reject actions")
	}
}

func TestKeyMap_View(t *testing.T) {
	view := defaultKeyMap().Help().View()

	for _, want := range []string{"[a]", "[r]", "[A]", "[R]", "[enter]", "[q]"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected %s in status bar help, got %q", want, view)
		}
	}
}

func TestKeyMap_Bindings(t *testing.T) {
	km := defaultKeyMap()

	if km.Up.String() != "k" || km.Down.String() != "j" {
		t.Errorf("Unexpected navigation keys %q/%q", km.Up.String(), km.Down.String())
	}
	if km.Approve.String() != "a" {
		t.Errorf("Expected approve on a, got %q", km.Approve.String())
	}
	if km.Reject.String() != "r" {
		t.Errorf("Expected reject on r, got %q", km.Reject.String())
	}
}
