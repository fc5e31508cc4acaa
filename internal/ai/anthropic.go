package ai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/shepherd/internal/config"
)

// ModelDefault is the model used for supervision calls unless overridden.
// SHEPHERD_MODEL overrides it at runtime.
const ModelDefault = "claude-sonnet-4-5-20250929"

// GetModel returns the analysis model, checking SHEPHERD_MODEL first.
func GetModel() string {
	if model := os.Getenv("SHEPHERD_MODEL"); model != "" {
		return model
	}
	return ModelDefault
}

// AnthropicAnalyst implements Analyst against the Anthropic API. One
// instance is shared by every project supervisor, so Analyze must be safe
// for concurrent callers.
type AnthropicAnalyst struct {
	client         *anthropic.Client
	model          string
	retry          RetryConfig
	concurrencySem *semaphore.Weighted
	verbose        bool
	promptOnce     sync.Once
}

// Config holds analyst configuration.
type Config struct {
	APIKey  string      // Anthropic API key (if empty, reads ANTHROPIC_API_KEY)
	Model   string      // Model to use (default: GetModel())
	Retry   RetryConfig // Retry configuration (uses defaults if zero)
	Verbose bool        // Log prompts and raw responses
}

// NewAnthropicAnalyst creates an Analyst backed by the Anthropic API.
func NewAnthropicAnalyst(cfg *Config) (*AnthropicAnalyst, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = GetModel()
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	// Cap concurrent API calls across all supervised projects to avoid
	// rate limiting; each project already serializes its own calls.
	var sem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	return &AnthropicAnalyst{
		client:         &client,
		model:          model,
		retry:          retry,
		concurrencySem: sem,
		verbose:        cfg.Verbose,
	}, nil
}

// verdictList is the response shape the model is asked to produce.
type verdictList struct {
	Verdicts []Verdict `json:"verdicts"`
}

// Analyze builds the supervision prompt, calls the API with retry and
// bounded timeouts, and parses the structured verdict list.
func (a *AnthropicAnalyst) Analyze(ctx context.Context, req Request) ([]Verdict, error) {
	prompt := buildPrompt(req)

	if a.verbose {
		a.promptOnce.Do(func() {
			fmt.Printf("Full analysis prompt:\n%s\n%s\n%s\n",
				strings.Repeat("-", 50), prompt, strings.Repeat("-", 50))
		})
	}

	var response *anthropic.Message
	err := a.retryWithBackoff(ctx, "supervision", func(attemptCtx context.Context) error {
		resp, apiErr := a.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: 2048,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}

	var responseText string
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText += block.Text
		}
	}

	if a.verbose {
		fmt.Printf("Analyst response: %s\n", truncateString(responseText, 500))
	}

	list, err := parseVerdicts(responseText)
	if err != nil {
		return nil, &AnalysisError{Err: err}
	}
	return list, nil
}

// buildPrompt assembles the supervision prompt: persona seed, rule set
// (including the built-in stop-request rule), already-reported violations,
// the conversation context, and the response contract.
func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString(req.Seed)
	b.WriteString("\n\nYOUR PRIMARY ROLE: Monitor the AI assistant's adherence to development standards.\n")

	b.WriteString("\n=== CRITICAL DEVELOPMENT RULES TO ENFORCE ===\n")
	rules := make([]config.Rule, 0, len(req.Rules)+1)
	rules = append(rules, req.Rules...)
	rules = append(rules, stopRequestRule)
	for _, rule := range rules {
		fmt.Fprintf(&b, "\nRULE: %s\nVIOLATION: %s\n", rule.ID, rule.Description)
		b.WriteString("WATCH FOR: the assistant suggesting, implementing, or reasoning through this practice\n")
	}

	if len(req.Reported) > 0 {
		b.WriteString("\n=== ALREADY REPORTED VIOLATIONS (DO NOT RE-REPORT) ===\n")
		for _, v := range req.Reported {
			fmt.Fprintf(&b, "- %s (message #%d)\n", v.RuleID, v.MessageIndex)
		}
		b.WriteString("\nIGNORE these violations in your analysis - they have already been reported.\n")
	}

	fmt.Fprintf(&b, "\nRECENT CONVERSATION CONTEXT (%d messages, most recent last):\n", len(req.Context))
	for _, msg := range req.Context {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}

	b.WriteString(`
ANALYSIS TASK:
Examine the assistant's complete thought process in the most recent message - reasoning, planning, suggestions, and execution.
Violations occur when the assistant:
- Reasons through using prohibited practices
- Suggests commands or approaches that break rules
- Plans implementations that violate development standards
- Executes actions that ignore established practices

Focus on the assistant's decision-making process, not user requests or questions.

RESPONSE FORMAT:
Respond with a JSON object of this exact shape:
{
  "verdicts": [
    {
      "rule_id": "rule-name-exactly-as-configured",
      "reasoning": "2-5 sentence explanation of how the rule was violated",
      "suggestion": "optional: actionable advice for the ASSISTANT to fix the current mistake",
      "stop_request": false
    }
  ]
}

RULES:
1. If no rules are violated, respond with {"verdicts": []}
2. Use rule names EXACTLY as configured - do not change case or formatting
3. Set "stop_request": true only for the "` + StopRequestRuleID + `" rule
4. The suggestion is directed at the ASSISTANT being monitored

IMPORTANT: Respond with ONLY raw JSON. Do NOT wrap it in markdown code fences. Just the JSON object.`)

	return b.String()
}

// truncateString shortens s for log output.
func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
