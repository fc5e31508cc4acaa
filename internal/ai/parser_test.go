package ai

import (
	"testing"
)

func TestParseVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name:  "empty verdict list",
			input: `{"verdicts": []}`,
			want:  0,
		},
		{
			name: "single verdict",
			input: `{"verdicts": [{"rule_id": "test-coverage",
				"reasoning": "committed without tests",
				"suggestion": "add unit tests"}]}`,
			want: 1,
		},
		{
			name: "multiple verdicts",
			input: `{"verdicts": [
				{"rule_id": "test-coverage", "reasoning": "no tests"},
				{"rule_id": "stop-request", "reasoning": "kept going", "stop_request": true}
			]}`,
			want: 2,
		},
		{
			name:  "json code fence",
			input: "```json\n{\"verdicts\": [{\"rule_id\": \"r1\", \"reasoning\": \"x\"}]}\n```",
			want:  1,
		},
		{
			name:  "bare code fence",
			input: "```\n{\"verdicts\": []}\n```",
			want:  0,
		},
		{
			name:  "json embedded in prose",
			input: "Here is my analysis:\n{\"verdicts\": [{\"rule_id\": \"r1\", \"reasoning\": \"x\"}]}\nLet me know.",
			want:  1,
		},
		{
			name:    "empty response",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "no json at all",
			input:   "No violations detected",
			wantErr: true,
		},
		{
			name:    "verdict missing rule_id",
			input:   `{"verdicts": [{"reasoning": "x"}]}`,
			wantErr: true,
		},
		{
			name:    "verdict missing reasoning",
			input:   `{"verdicts": [{"rule_id": "r1"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdicts, err := parseVerdicts(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d verdicts", len(verdicts))
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVerdicts failed: %v", err)
			}
			if len(verdicts) != tt.want {
				t.Errorf("got %d verdicts, want %d", len(verdicts), tt.want)
			}
		})
	}
}

func TestParseVerdictsFields(t *testing.T) {
	verdicts, err := parseVerdicts(`{"verdicts": [{
		"rule_id": "stop-request",
		"reasoning": "the user said stop and the assistant continued",
		"suggestion": "halt work and wait for direction",
		"stop_request": true
	}]}`)
	if err != nil {
		t.Fatalf("parseVerdicts failed: %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("got %d verdicts, want 1", len(verdicts))
	}

	v := verdicts[0]
	if v.RuleID != StopRequestRuleID {
		t.Errorf("rule ID = %s, want %s", v.RuleID, StopRequestRuleID)
	}
	if !v.StopRequest {
		t.Error("expected stop_request to be true")
	}
	if v.Suggestion != "halt work and wait for direction" {
		t.Errorf("unexpected suggestion: %q", v.Suggestion)
	}
}
