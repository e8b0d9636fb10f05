package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	"github.com/dukhanin/contract-advisor/internal/domain/session"
)

// RecommendationSystemPrompt asks for the final structured recommendation.
func RecommendationSystemPrompt() string {
	return `Based on the whole conversation, provide a comprehensive contract recommendation. You must produce one valid JSON object only (no markdown, no commentary).

Requirements:
- "document_type" names the recommended document.
- "key_terms" lists the essential clauses and conditions, grounded in the collected details.
- "risks" covers the main risks the user should be aware of.
- "next_steps" tells the user what to do to get the document prepared and signed.
- Every section must be non-empty plain text.

Schema (example with empty values):
{
  "document_type": "<string>",
  "key_terms": "<string>",
  "risks": "<string>",
  "next_steps": "<string>"
}`
}

// RecommendationUserPrompt compiles the collected answers and transcript.
func RecommendationUserPrompt(docType session.DocumentType, answers map[string]string, transcript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document type: %s\n\nCollected details:\n", docType)
	for _, name := range session.RequiredFields(docType) {
		fmt.Fprintf(&b, "- %s: %s\n", name, answers[name])
	}
	for name, value := range answers {
		if !containsField(session.RequiredFields(docType), name) {
			fmt.Fprintf(&b, "- %s: %s\n", name, value)
		}
	}
	fmt.Fprintf(&b, "\nConversation:\n%s", transcript)
	return b.String()
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// ParseRecommendation validates the response; missing or all-empty sections
// are malformed output.
func ParseRecommendation(raw string) (map[string]string, error) {
	var sections map[string]string
	if err := json.Unmarshal([]byte(stripFences(raw)), &sections); err != nil {
		return nil, fmt.Errorf("recommendation response: %v: %w", err, domai.ErrMalformedOutput)
	}
	for name, value := range sections {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			delete(sections, name)
			continue
		}
		sections[name] = trimmed
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("recommendation response: no non-empty sections: %w", domai.ErrMalformedOutput)
	}
	return sections, nil
}
