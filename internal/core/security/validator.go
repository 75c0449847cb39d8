package security

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCommand is returned for commands that are blank after trimming.
	ErrEmptyCommand = errors.New("command cannot be empty")
	// ErrForbiddenPattern matches every *ForbiddenPatternError.
	ErrForbiddenPattern = errors.New("forbidden pattern")
)

// ForbiddenPatternError reports which deny-list literal a command contained.
type ForbiddenPatternError struct {
	Pattern string
}

func (e *ForbiddenPatternError) Error() string {
	return fmt.Sprintf("command contains forbidden pattern: %s", e.Pattern)
}

// Is lets errors.Is(err, ErrForbiddenPattern) match.
func (e *ForbiddenPatternError) Is(target error) bool {
	return target == ErrForbiddenPattern
}

// forbiddenPatterns are refused unconditionally, before any tier is assigned.
var forbiddenPatterns = []string{
	":(){ :|:& };:", // fork bomb
	"rm -rf /",
	"mkfs",
}

// ForbiddenPatterns returns a copy of the deny-list.
func ForbiddenPatterns() []string {
	return append([]string(nil), forbiddenPatterns...)
}

// Validate checks cmd against the empty-command rule and the deny-list.
func Validate(cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return ErrEmptyCommand
	}

	for _, pattern := range forbiddenPatterns {
		if strings.Contains(cmd, pattern) {
			return &ForbiddenPatternError{Pattern: pattern}
		}
	}

	return nil
}
