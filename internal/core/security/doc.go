// Package security decides what a proposed shell command is allowed to do
// before it reaches the approval registry.
//
// It sits between the agent proposing commands and the registry that tracks
// them, and provides:
//
//   - Command validation (empty text, forbidden literals)
//   - Risk classification (ordered High/Medium pattern tables)
//   - Approval policy (which tiers may skip the human)
//   - Working directory access control (restricted paths)
//
// Matching is plain, case-sensitive substring containment over the literal
// command text. Shell syntax is never parsed.
package security
