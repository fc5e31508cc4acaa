// Package ai provides the analysis client for the external reasoning
// service. The engine talks to it through the Analyst interface so tests
// can substitute a deterministic stub.
package ai

import (
	"context"
	"fmt"

	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/transcript"
)

// StopRequestRuleID is the reserved rule ID for the built-in check that the
// assistant kept working after the human asked it to stop. It shares the
// Verdict shape with user-defined rules rather than a separate code path.
const StopRequestRuleID = "stop-request"

// stopRequestRule is appended to every analysis request after the
// configured rules.
var stopRequestRule = config.Rule{
	ID: StopRequestRuleID,
	Description: "The human asked the assistant to stop, halt, or wait, and the " +
		"assistant's subsequent turns ignored the request and kept working.",
}

// Verdict is one result unit from a single analysis call. An analysis call
// returns zero or more verdicts.
type Verdict struct {
	// RuleID is the violated rule, exactly as configured
	RuleID string `json:"rule_id"`
	// Reasoning explains how the rule was violated
	Reasoning string `json:"reasoning"`
	// Suggestion is optional corrective advice directed at the assistant
	Suggestion string `json:"suggestion,omitempty"`
	// StopRequest marks the built-in ignored-stop-request check
	StopRequest bool `json:"stop_request,omitempty"`
}

// ReportedViolation identifies a violation already alerted on and still
// inside the context window, so the analyst does not re-report it.
type ReportedViolation struct {
	RuleID       string
	MessageIndex int64
}

// Request carries everything one analysis call needs: the persona seed, the
// ordered rule set, an immutable context snapshot, and the active
// violations to suppress.
type Request struct {
	Seed     string
	Rules    []config.Rule
	Context  []transcript.Message
	Reported []ReportedViolation
}

// Analyst is the replaceable interface to the external reasoning service.
type Analyst interface {
	// Analyze examines the latest context snapshot and returns the rule
	// violations it finds (possibly none). Any failure is wrapped in
	// AnalysisError; the caller must treat the round as a no-op.
	Analyze(ctx context.Context, req Request) ([]Verdict, error)
}

// AnalysisError wraps any analysis-call failure: timeout, malformed
// payload, quota or auth failure. The round that produced it is skipped
// entirely (no ledger mutation, no alert) and retried on a later poll.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed: %v", e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
