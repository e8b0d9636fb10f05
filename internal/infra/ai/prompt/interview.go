package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	"github.com/dukhanin/contract-advisor/internal/domain/session"
)

// AdvisorSystemPrompt is the assistant persona for the interview.
func AdvisorSystemPrompt() string {
	return `You are a professional legal assistant specializing in contracts and legal documents.

Your capabilities include:
1. Analyzing legal documents: identifying risks and weak points, key provisions, and deviations from standard templates.
2. Advising on contracts: choosing a suitable contract type, explaining legal terms, and recommending how to reduce risk.
3. Working with uploaded documents: reviewing existing contracts, suggesting improvements, and flagging potential problems.

If a question is outside these capabilities or requires specialized legal counsel, recommend consulting a professional lawyer.

When an uploaded document is available:
- If the information is in the document, use it.
- If it is not, answer from general knowledge.
- Always indicate the source of the information (the document or general knowledge).`
}

// AdvisorReplyInstruction tells the assistant which interview fields are
// still unresolved so the next turn re-prompts for them.
func AdvisorReplyInstruction(docType session.DocumentType, missing []string) string {
	if docType == "" {
		return "The type of document the user needs has not been established yet. If the user is asking for help preparing a document, steer the conversation toward identifying which document they need."
	}
	if len(missing) == 0 {
		return fmt.Sprintf("All required details for a %s have been collected. Tell the user you now have enough information to prepare a recommendation.", docType)
	}
	return fmt.Sprintf("The user needs a %s. These required details are still missing: %s. Answer the user's message, then ask for the missing details.", docType, strings.Join(missing, ", "))
}

// DocumentContextBlock folds an attached document's text into the
// conversation context.
func DocumentContextBlock(filename, text string) string {
	return fmt.Sprintf("Uploaded document %q:\n%s", filename, text)
}

// ExtractionSystemPrompt asks for a structured reading of one user turn:
// the inferred document type and any interview fields present.
func ExtractionSystemPrompt() string {
	var b strings.Builder
	b.WriteString(`You extract structured interview data from a user's message in a legal-advice conversation. You must produce one valid JSON object only (no markdown, no commentary).

Known document types and their fields:
`)
	for _, dt := range session.KnownDocumentTypes() {
		fmt.Fprintf(&b, "- %s: %s\n", dt, strings.Join(session.RequiredFields(dt), ", "))
	}
	b.WriteString(`
Requirements:
- "document_type" is one of the known types, or "" when the message does not indicate one.
- "fields" maps field names (from the lists above) to values explicitly present in the message. Never guess or invent values; omit anything not stated.
- A general legal question with no interview data yields {"document_type": "", "fields": {}}.

Schema (example with empty values):
{
  "document_type": "<string>",
  "fields": {"<field>": "<value>"}
}`)
	return b.String()
}

// ExtractionUserPrompt wraps one user turn, with the already-known answers
// so the model only reports new information.
func ExtractionUserPrompt(message string, known map[string]string) string {
	var b strings.Builder
	if len(known) > 0 {
		b.WriteString("Already collected (do not repeat):\n")
		for k, v := range known {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User message: %s", message)
	return b.String()
}

type extractionResponse struct {
	DocumentType string            `json:"document_type"`
	Fields       map[string]string `json:"fields"`
}

// ParseExtraction validates an extraction response. An unknown document
// type is treated as no inference rather than a failure; unparseable JSON
// is malformed output.
func ParseExtraction(raw string) (session.Extraction, error) {
	var resp extractionResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		return session.Extraction{}, fmt.Errorf("extraction response: %v: %w", err, domai.ErrMalformedOutput)
	}
	ext := session.Extraction{Fields: resp.Fields}
	dt := session.DocumentType(strings.TrimSpace(strings.ToLower(resp.DocumentType)))
	if session.IsKnownDocumentType(dt) {
		ext.DocumentType = dt
	}
	return ext, nil
}
