package security

// SecurityPolicy defines the security configuration.
type SecurityPolicy struct {
	// CommandLevel determines when commands require human approval.
	// "always" - every command waits for a decision
	// "dangerous" - only commands that are not safe wait for a decision
	// "never" - every valid command is approved by policy
	CommandLevel ConfirmLevel `mapstructure:"command_level"`

	// RestrictedPaths contains directories commands may never run in.
	RestrictedPaths []string `mapstructure:"restricted_paths"`

	// RulesFile optionally points at a YAML file with extra risk rules.
	RulesFile string `mapstructure:"rules_file"`
}

// ConfirmLevel represents the command confirmation level.
type ConfirmLevel string

const (
	ConfirmAlways    ConfirmLevel = "always"
	ConfirmDangerous ConfirmLevel = "dangerous"
	ConfirmNever     ConfirmLevel = "never"
)

// DefaultPolicy returns the default security policy (strict mode).
func DefaultPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		CommandLevel:    ConfirmAlways,
		RestrictedPaths: []string{},
	}
}

// RequiresApproval reports whether a validated command must wait for a human
// decision. safe is the result of IsSafe for the command.
func (p *SecurityPolicy) RequiresApproval(safe bool) bool {
	switch p.CommandLevel {
	case ConfirmNever:
		return false
	case ConfirmDangerous:
		return !safe
	default:
		return true
	}
}
