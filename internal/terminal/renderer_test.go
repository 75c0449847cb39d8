package terminal

import (
	"strings"
	"testing"
)

func TestNewRenderer_DefaultWidth(t *testing.T) {
	r, err := NewRenderer(0)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	if r.Width() != DefaultWidth {
		t.Errorf("Expected width %d, got %d", DefaultWidth, r.Width())
	}
}

func TestRenderer_CodeBlock(t *testing.T) {
	r, err := NewRenderer(60)
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	out, err := r.Render("```text\nline one\nline two\n```\n")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(out, "line one") || !strings.Contains(out, "line two") {
		t.Errorf("Expected code block content, got %q", out)
	}
}
