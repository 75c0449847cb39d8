package security

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RiskTier is the coarse safety classification of a command.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// rank orders tiers so that a higher tier always dominates.
func (t RiskTier) rank() int {
	switch t {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers.
func (t RiskTier) Valid() bool {
	return t == RiskLow || t == RiskMedium || t == RiskHigh
}

// Rule maps a literal substring to a risk tier.
type Rule struct {
	Pattern     string   `yaml:"pattern"`
	Tier        RiskTier `yaml:"tier"`
	Description string   `yaml:"description,omitempty"`
}

// Matches reports whether the rule's pattern occurs in cmd.
func (r Rule) Matches(cmd string) bool {
	return r.Pattern != "" && strings.Contains(cmd, r.Pattern)
}

var highRiskRules = []Rule{
	{Pattern: "rm -rf", Tier: RiskHigh, Description: "recursive forced deletion"},
	{Pattern: "sudo", Tier: RiskHigh, Description: "privilege escalation"},
	{Pattern: "chmod 777", Tier: RiskHigh, Description: "world-writable permissions"},
	{Pattern: "dd if=", Tier: RiskHigh, Description: "raw device copy"},
	{Pattern: "mkfs", Tier: RiskHigh, Description: "filesystem formatting"},
	{Pattern: "> /dev/", Tier: RiskHigh, Description: "raw device write"},
}

var mediumRiskRules = []Rule{
	{Pattern: "rm ", Tier: RiskMedium, Description: "file deletion"},
	{Pattern: "mv ", Tier: RiskMedium, Description: "file move"},
	{Pattern: "cp ", Tier: RiskMedium, Description: "file copy"},
	{Pattern: "chmod", Tier: RiskMedium, Description: "permission change"},
	{Pattern: "chown", Tier: RiskMedium, Description: "ownership change"},
	{Pattern: "kill", Tier: RiskMedium, Description: "process signal"},
	{Pattern: "pkill", Tier: RiskMedium, Description: "process signal"},
}

// DefaultRules returns a copy of the built-in rule table, High rules first.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(highRiskRules)+len(mediumRiskRules))
	rules = append(rules, highRiskRules...)
	return append(rules, mediumRiskRules...)
}

// Classifier assigns risk tiers and validates commands. The zero value is
// not usable; construct one with NewClassifier.
type Classifier struct {
	high   []Rule
	medium []Rule
}

// NewClassifier creates a classifier from the built-in tables plus any extra
// rules. Extra low-tier rules are ignored since no match already means low.
func NewClassifier(extra ...Rule) *Classifier {
	c := &Classifier{
		high:   append([]Rule(nil), highRiskRules...),
		medium: append([]Rule(nil), mediumRiskRules...),
	}
	for _, r := range extra {
		switch r.Tier {
		case RiskHigh:
			c.high = append(c.high, r)
		case RiskMedium:
			c.medium = append(c.medium, r)
		}
	}
	return c
}

var defaultClassifier = NewClassifier()

// Classify returns the risk tier of cmd using the built-in rules.
func Classify(cmd string) RiskTier {
	return defaultClassifier.Classify(cmd)
}

// Classify returns the risk tier of cmd. Any High match dominates any Medium
// match; no match is Low.
func (c *Classifier) Classify(cmd string) RiskTier {
	tier, _ := c.Explain(cmd)
	return tier
}

// Explain returns the tier together with the first rule of that tier that
// matched. The rule is the zero value for Low.
func (c *Classifier) Explain(cmd string) (RiskTier, Rule) {
	for _, r := range c.high {
		if r.Matches(cmd) {
			return RiskHigh, r
		}
	}
	for _, r := range c.medium {
		if r.Matches(cmd) {
			return RiskMedium, r
		}
	}
	return RiskLow, Rule{}
}

// Validate runs the command validator. It does not depend on the rule tables.
func (c *Classifier) Validate(cmd string) error {
	return Validate(cmd)
}

// IsSafe reports whether cmd passes validation and is not High risk.
func (c *Classifier) IsSafe(cmd string) bool {
	return c.Validate(cmd) == nil && c.Classify(cmd) != RiskHigh
}

// IsSafe reports whether cmd is safe under the built-in rules.
func IsSafe(cmd string) bool {
	return defaultClassifier.IsSafe(cmd)
}

// ruleFile is the on-disk shape of an extra rule table.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads extra classification rules from a YAML file:
//
//	rules:
//	  - pattern: "git push --force"
//	    tier: high
//	    description: history rewrite on a remote
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML rule table and checks every entry.
func ParseRules(data []byte) ([]Rule, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	for i, r := range rf.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i+1)
		}
		if !r.Tier.Valid() {
			return nil, fmt.Errorf("rule %d: unknown tier %q", i+1, r.Tier)
		}
	}
	return rf.Rules, nil
}
