package security

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     string
		wantErr error
		pattern string
	}{
		{"valid command", "ls -la", nil, ""},
		{"empty command", "", ErrEmptyCommand, ""},
		{"blank command", "   \t\n", ErrEmptyCommand, ""},
		{"root deletion", "rm -rf /", ErrForbiddenPattern, "rm -rf /"},
		{"root deletion inside a chain", "cd /tmp && rm -rf / --no-preserve-root", ErrForbiddenPattern, "rm -rf /"},
		{"fork bomb", ":(){ :|:& };:", ErrForbiddenPattern, ":(){ :|:& };:"},
		{"filesystem format", "mkfs.ext4 /dev/sdb1", ErrForbiddenPattern, "mkfs"},
		// substring containment is literal, so this path also matches
		{"absolute path under root", "rm -rf /tmp/build", ErrForbiddenPattern, "rm -rf /"},
		{"relative deletion", "rm -rf build", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cmd)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.pattern != "" {
				var fpe *ForbiddenPatternError
				if !errors.As(err, &fpe) {
					t.Fatalf("Expected *ForbiddenPatternError, got %T", err)
				}
				if fpe.Pattern != tt.pattern {
					t.Errorf("Expected pattern %q, got %q", tt.pattern, fpe.Pattern)
				}
			}
		})
	}
}

func TestForbiddenPatterns_ReturnsCopy(t *testing.T) {
	patterns := ForbiddenPatterns()
	patterns[0] = "harmless"

	if err := Validate(":(){ :|:& };:"); err == nil {
		t.Error("Expected deny-list to be unaffected by caller mutation")
	}
}
