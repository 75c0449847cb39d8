package security

import (
	"errors"
	"fmt"
)

// ErrRestrictedDirectory is returned when a command would run inside a
// restricted directory.
var ErrRestrictedDirectory = errors.New("working directory is restricted")

// SecurityController coordinates all security checks.
type SecurityController struct {
	policy      *SecurityPolicy
	classifier  *Classifier
	pathChecker *PathAccessChecker
}

// NewSecurityController creates a new security controller. A nil classifier
// means the built-in rules.
func NewSecurityController(policy *SecurityPolicy, classifier *Classifier) *SecurityController {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	return &SecurityController{
		policy:      policy,
		classifier:  classifier,
		pathChecker: NewPathAccessChecker(policy),
	}
}

// CheckResult represents the result of a security check.
type CheckResult struct {
	Allowed      bool
	RequiresAuth bool
	Risk         RiskTier
	Rule         Rule
	Safe         bool
	Reason       string
}

// Classifier returns the classifier used by the controller.
func (sc *SecurityController) Classifier() *Classifier {
	return sc.classifier
}

// Policy returns the policy the controller enforces.
func (sc *SecurityController) Policy() *SecurityPolicy {
	return sc.policy
}

// CheckCommand performs a comprehensive security check on a command. The
// returned error is the validation failure, if any; the result is always
// non-nil.
func (sc *SecurityController) CheckCommand(cmd string) (*CheckResult, error) {
	// Check 1: Validation
	if err := sc.classifier.Validate(cmd); err != nil {
		return &CheckResult{
			Allowed: false,
			Reason:  err.Error(),
		}, err
	}

	// Check 2: Risk tier
	tier, rule := sc.classifier.Explain(cmd)
	safe := tier != RiskHigh

	result := &CheckResult{
		Allowed:      true,
		Risk:         tier,
		Rule:         rule,
		Safe:         safe,
		RequiresAuth: sc.policy.RequiresApproval(safe),
	}
	if rule.Pattern != "" {
		result.Reason = fmt.Sprintf("matched %q (%s)", rule.Pattern, rule.Description)
	}
	return result, nil
}

// CheckWorkingDir refuses directories under the policy's restricted paths.
func (sc *SecurityController) CheckWorkingDir(dir string) error {
	if root, ok := sc.pathChecker.Match(dir); ok {
		return fmt.Errorf("%w: %s (under %s)", ErrRestrictedDirectory, dir, root)
	}
	return nil
}
