package security

import (
	"os"
	"path/filepath"
	"strings"
)

// PathAccessChecker decides whether a directory may be used as a working
// directory. Both sides are compared after symlink resolution, so a link
// pointing into a restricted tree is itself restricted.
type PathAccessChecker struct {
	restricted []string
}

// NewPathAccessChecker creates a new path checker.
func NewPathAccessChecker(policy *SecurityPolicy) *PathAccessChecker {
	return &PathAccessChecker{
		restricted: policy.RestrictedPaths,
	}
}

// IsRestricted reports whether dir is a restricted directory or lies under
// one.
func (pc *PathAccessChecker) IsRestricted(dir string) bool {
	_, ok := pc.Match(dir)
	return ok
}

// Match returns the configured restricted root that contains dir.
func (pc *PathAccessChecker) Match(dir string) (string, bool) {
	if len(pc.restricted) == 0 {
		return "", false
	}

	target, err := resolvePath(dir)
	if err != nil {
		return "", false
	}

	for _, root := range pc.restricted {
		resolvedRoot, err := resolvePath(root)
		if err != nil {
			continue
		}
		if within(resolvedRoot, target) {
			return root, true
		}
	}
	return "", false
}

// within reports whether target equals root or is nested below it.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// resolvePath expands a leading ~/, makes the path absolute and resolves
// symlinks on the longest prefix that exists.
func resolvePath(path string) (string, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, rest)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	// Peel off missing components until EvalSymlinks succeeds, then put
	// them back.
	var missing []string
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
