package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Models occasionally ignore the "raw JSON only" instruction and wrap the
// verdict list in code fences or prose. The parser tries progressively
// looser strategies before giving up.
var (
	codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\n?([\\s\\S]*?)\n?```")
	objectRegex    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// parseVerdicts extracts the verdict list from a model response.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Strip markdown code fences and retry
//  3. Extract the outermost JSON object from mixed content and retry
func parseVerdicts(text string) ([]Verdict, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("empty analysis response")
	}

	candidates := []string{trimmed}

	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := objectRegex.FindString(trimmed); m != "" && m != trimmed {
		candidates = append(candidates, m)
	}

	var lastErr error
	for _, candidate := range candidates {
		var list verdictList
		if err := json.Unmarshal([]byte(candidate), &list); err != nil {
			lastErr = err
			continue
		}
		if err := validateVerdicts(list.Verdicts); err != nil {
			lastErr = err
			continue
		}
		return list.Verdicts, nil
	}

	return nil, fmt.Errorf("malformed analysis response: %v (response: %s)",
		lastErr, truncateString(trimmed, 300))
}

// validateVerdicts rejects structurally valid JSON that violates the
// response contract.
func validateVerdicts(verdicts []Verdict) error {
	for i, v := range verdicts {
		if v.RuleID == "" {
			return fmt.Errorf("verdict %d missing rule_id", i)
		}
		if v.Reasoning == "" {
			return fmt.Errorf("verdict %d (%s) missing reasoning", i, v.RuleID)
		}
	}
	return nil
}
