package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/steveyegge/shepherd/internal/config"
	"github.com/steveyegge/shepherd/internal/transcript"
)

func testRequest() Request {
	return Request{
		Seed: "You are a supervisor.",
		Rules: []config.Rule{
			{ID: "test-coverage", Description: "changes need tests"},
			{ID: "error-handling", Description: "handle failures"},
		},
		Context: []transcript.Message{
			{Index: 1, Role: transcript.RoleUser, Content: "add a feature", Timestamp: time.Now()},
			{Index: 2, Role: transcript.RoleAssistant, Content: "done, skipping tests", Timestamp: time.Now()},
		},
	}
}

func TestBuildPromptContainsRulesInOrder(t *testing.T) {
	prompt := buildPrompt(testRequest())

	first := strings.Index(prompt, "RULE: test-coverage")
	second := strings.Index(prompt, "RULE: error-handling")
	stop := strings.Index(prompt, "RULE: "+StopRequestRuleID)

	if first < 0 || second < 0 || stop < 0 {
		t.Fatalf("prompt missing rules: coverage=%d handling=%d stop=%d", first, second, stop)
	}
	if !(first < second && second < stop) {
		t.Errorf("rules out of order: coverage=%d handling=%d stop=%d", first, second, stop)
	}
}

func TestBuildPromptContainsContext(t *testing.T) {
	prompt := buildPrompt(testRequest())

	if !strings.Contains(prompt, "user: add a feature") {
		t.Error("prompt missing user message")
	}
	if !strings.Contains(prompt, "assistant: done, skipping tests") {
		t.Error("prompt missing assistant message")
	}
	if !strings.Contains(prompt, "You are a supervisor.") {
		t.Error("prompt missing seed")
	}
	if !strings.Contains(prompt, "(2 messages, most recent last)") {
		t.Error("prompt missing context count")
	}
}

func TestBuildPromptReportedSection(t *testing.T) {
	req := testRequest()
	prompt := buildPrompt(req)
	if strings.Contains(prompt, "ALREADY REPORTED") {
		t.Error("empty reported list should omit the already-reported section")
	}

	req.Reported = []ReportedViolation{{RuleID: "test-coverage", MessageIndex: 5}}
	prompt = buildPrompt(req)
	if !strings.Contains(prompt, "ALREADY REPORTED VIOLATIONS") {
		t.Error("prompt missing already-reported section")
	}
	if !strings.Contains(prompt, "- test-coverage (message #5)") {
		t.Error("prompt missing reported violation entry")
	}
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limit", err: errString("429 Too Many Requests"), want: true},
		{name: "server error", err: errString("500 internal server error"), want: true},
		{name: "gateway timeout", err: errString("504 gateway timeout"), want: true},
		{name: "connection refused", err: errString("dial tcp: connection refused"), want: true},
		{name: "auth failure", err: errString("401 unauthorized"), want: false},
		{name: "bad request", err: errString("400 invalid request"), want: false},
		{name: "unknown", err: errString("something odd"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetriableError(tt.err); got != tt.want {
				t.Errorf("isRetriableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }
