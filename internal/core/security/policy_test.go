package security

import "testing"

func TestSecurityPolicy_RequiresApproval(t *testing.T) {
	tests := []struct {
		level ConfirmLevel
		safe  bool
		want  bool
	}{
		{ConfirmAlways, true, true},
		{ConfirmAlways, false, true},
		{ConfirmDangerous, true, false},
		{ConfirmDangerous, false, true},
		{ConfirmNever, true, false},
		{ConfirmNever, false, false},
		{"", true, true},
	}

	for _, tt := range tests {
		p := &SecurityPolicy{CommandLevel: tt.level}
		if got := p.RequiresApproval(tt.safe); got != tt.want {
			t.Errorf("RequiresApproval(level=%q, safe=%v) = %v, want %v", tt.level, tt.safe, got, tt.want)
		}
	}
}
