package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	"github.com/dukhanin/contract-advisor/internal/domain/documents"
	"github.com/dukhanin/contract-advisor/internal/domain/session"
)

func TestParseAnalysisValid(t *testing.T) {
	raw := `{
		"risks": [
			{"severity": "HIGH", "description": "No liability cap.", "mitigation": "Add a cap clause."}
		],
		"summary": "A service agreement with one material gap."
	}`

	risks, summary, err := ParseAnalysis(raw)
	require.NoError(t, err)
	require.Len(t, risks, 1)
	assert.Equal(t, documents.SeverityHigh, risks[0].Severity)
	assert.Equal(t, "No liability cap.", risks[0].Description)
	assert.Equal(t, "A service agreement with one material gap.", summary)
}

func TestParseAnalysisToleratesFences(t *testing.T) {
	raw := "```json\n{\"risks\": [], \"summary\": \"Clean document.\"}\n```"
	risks, summary, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Empty(t, risks)
	assert.Equal(t, "Clean document.", summary)
}

func TestParseAnalysisMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":       "the document looks fine",
		"empty summary":  `{"risks": [], "summary": "  "}`,
		"bad severity":   `{"risks": [{"severity": "catastrophic", "description": "x"}], "summary": "s"}`,
		"no description": `{"risks": [{"severity": "low", "description": ""}], "summary": "s"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseAnalysis(raw)
			assert.ErrorIs(t, err, domai.ErrMalformedOutput)
		})
	}
}

func TestParseExtraction(t *testing.T) {
	raw := `{"document_type": "NDA", "fields": {"disclosing_party": "Acme LLC"}}`
	ext, err := ParseExtraction(raw)
	require.NoError(t, err)
	assert.Equal(t, session.TypeNDA, ext.DocumentType)
	assert.Equal(t, "Acme LLC", ext.Fields["disclosing_party"])
}

func TestParseExtractionUnknownType(t *testing.T) {
	ext, err := ParseExtraction(`{"document_type": "peace-treaty", "fields": {}}`)
	require.NoError(t, err)
	assert.Equal(t, session.DocumentType(""), ext.DocumentType)
}

func TestParseExtractionMalformed(t *testing.T) {
	_, err := ParseExtraction("sure, the user wants an NDA")
	assert.ErrorIs(t, err, domai.ErrMalformedOutput)
}

func TestParseRecommendation(t *testing.T) {
	raw := `{"document_type": " nda ", "key_terms": "confidentiality scope", "risks": "", "next_steps": "sign it"}`
	sections, err := ParseRecommendation(raw)
	require.NoError(t, err)
	assert.Equal(t, "nda", sections["document_type"])
	assert.Equal(t, "sign it", sections["next_steps"])
	// empty sections are dropped, not kept as blanks
	assert.NotContains(t, sections, "risks")
}

func TestParseRecommendationAllEmpty(t *testing.T) {
	_, err := ParseRecommendation(`{"document_type": "", "key_terms": "  "}`)
	assert.ErrorIs(t, err, domai.ErrMalformedOutput)
}

func TestExtractionSystemPromptListsTypes(t *testing.T) {
	p := ExtractionSystemPrompt()
	for _, dt := range session.KnownDocumentTypes() {
		assert.Contains(t, p, string(dt))
	}
}
