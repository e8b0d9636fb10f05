package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

// AnalysisSystemPrompt provides strict directions and schema for JSON output.
func AnalysisSystemPrompt() string {
	return `You are a senior legal analyst reviewing contracts and other legal documents. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: low, medium, high.
- Identify at least 3 risks when the document contains any; for each risk give a full description and a concrete mitigation. If the document genuinely contains no material risks, return an empty risks array.
- The summary must cover the document type, its main purpose, the key content blocks, and an overall expert assessment. It must never be empty.
- Base everything strictly on the provided document text; do not invent clauses that are not there.

Schema (example with empty values):
{
  "risks": [
    {
      "severity": "<low|medium|high>",
      "description": "<string>",
      "mitigation": "<string>"
    }
  ],
  "summary": "<string>"
}`
}

// AnalysisUserPrompt assembles the selected document excerpts into the user
// message, in source order.
func AnalysisUserPrompt(filename string, excerpts []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following document (%s) and respond with the JSON per schema.\n", filename)
	for i, e := range excerpts {
		fmt.Fprintf(&b, "\n--- excerpt %d ---\n%s\n", i+1, e)
	}
	return b.String()
}

// analysisResponse mirrors the schema used by the system prompt.
type analysisResponse struct {
	Risks []struct {
		Severity    string `json:"severity"`
		Description string `json:"description"`
		Mitigation  string `json:"mitigation"`
	} `json:"risks"`
	Summary string `json:"summary"`
}

// ParseAnalysis validates a model response against the analysis schema.
// Anything that does not parse cleanly is a malformed-output failure; a
// partially-populated result is never returned.
func ParseAnalysis(raw string) ([]documents.Risk, string, error) {
	var resp analysisResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		return nil, "", fmt.Errorf("analysis response: %v: %w", err, domai.ErrMalformedOutput)
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return nil, "", fmt.Errorf("analysis response: empty summary: %w", domai.ErrMalformedOutput)
	}

	risks := make([]documents.Risk, 0, len(resp.Risks))
	for i, r := range resp.Risks {
		sev, err := documents.ParseSeverity(r.Severity)
		if err != nil {
			return nil, "", fmt.Errorf("analysis response: risk %d: %v: %w", i, err, domai.ErrMalformedOutput)
		}
		if strings.TrimSpace(r.Description) == "" {
			return nil, "", fmt.Errorf("analysis response: risk %d: empty description: %w", i, domai.ErrMalformedOutput)
		}
		risks = append(risks, documents.Risk{
			Severity:    sev,
			Description: strings.TrimSpace(r.Description),
			Mitigation:  strings.TrimSpace(r.Mitigation),
		})
	}
	return risks, strings.TrimSpace(resp.Summary), nil
}

// stripFences tolerates models that wrap JSON in markdown fences despite the
// instructions.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
