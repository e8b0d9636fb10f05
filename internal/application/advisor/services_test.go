package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukhanin/contract-advisor/internal/application"
	appdocs "github.com/dukhanin/contract-advisor/internal/application/documents"
	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	domdocs "github.com/dukhanin/contract-advisor/internal/domain/documents"
	"github.com/dukhanin/contract-advisor/internal/domain/session"
	"github.com/dukhanin/contract-advisor/internal/infra/index"
	"github.com/dukhanin/contract-advisor/internal/infra/parser"
	"github.com/dukhanin/contract-advisor/internal/infra/segmenter"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// scriptLLM replays a queue of completions; embeddings are constant vectors.
type scriptLLM struct {
	replies []string
	calls   int
}

func (s *scriptLLM) Complete(ctx context.Context, req domai.CompletionRequest) (string, error) {
	s.calls++
	if len(s.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	out := s.replies[0]
	s.replies = s.replies[1:]
	return out, nil
}

func (s *scriptLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type runeCounter struct{}

func (runeCounter) Count(text string) int { return len([]rune(text)) }

func (runeCounter) Truncate(text string, maxTokens int) string {
	r := []rune(text)
	if len(r) <= maxTokens {
		return text
	}
	return string(r[:maxTokens])
}

func newAdvisor(t *testing.T, llm *scriptLLM) *Service {
	t.Helper()
	docs := &appdocs.Service{
		Parser:    parser.New(),
		Segmenter: segmenter.Default(),
		NewIndex:  func() domdocs.Index { return index.NewMemory(llm) },
		LLM:       llm,
		Tokens:    runeCounter{},
		Clock:     application.FixedClock{T: testTime},
	}
	return New(docs, llm, application.FixedClock{T: testTime})
}

const noExtraction = `{"document_type": "", "fields": {}}`

func TestChatTurnStartsGathering(t *testing.T) {
	llm := &scriptLLM{replies: []string{noExtraction, "Hello! What document do you need?"}}
	svc := newAdvisor(t, llm)

	res, err := svc.ChatTurn(context.Background(), "u1", "hi there")
	require.NoError(t, err)
	assert.Equal(t, "Hello! What document do you need?", res.Reply)
	assert.Equal(t, session.StateGathering, res.State)
	assert.False(t, res.Ready)
	assert.Equal(t, 2, llm.calls)
}

func TestChatTurnExtractionFailureIsSoft(t *testing.T) {
	llm := &scriptLLM{replies: []string{"not json at all", "Understood."}}
	svc := newAdvisor(t, llm)

	res, err := svc.ChatTurn(context.Background(), "u1", "I want to rent out my flat")
	require.NoError(t, err)
	assert.Equal(t, "Understood.", res.Reply)
	assert.Equal(t, session.StateGathering, res.State)
}

func TestChatTurnReachesReady(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "nda", "fields": {"disclosing_party": "Acme", "receiving_party": "Bob", "subject": "designs"}}`,
		"I have everything I need.",
	}}
	svc := newAdvisor(t, llm)

	res, err := svc.ChatTurn(context.Background(), "u1", "NDA between Acme and Bob about designs")
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Equal(t, session.StateReady, res.State)
	assert.Equal(t, session.TypeNDA, res.DocumentType)
	assert.Empty(t, res.Missing)
}

func TestChatTurnReportsMissingFields(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "nda", "fields": {"disclosing_party": "Acme"}}`,
		"Who is the receiving party?",
	}}
	svc := newAdvisor(t, llm)

	res, err := svc.ChatTurn(context.Background(), "u1", "I need an NDA for Acme")
	require.NoError(t, err)
	assert.False(t, res.Ready)
	assert.ElementsMatch(t, []string{"receiving_party", "subject"}, res.Missing)
}

func TestRecommendationRequiresReadiness(t *testing.T) {
	svc := newAdvisor(t, &scriptLLM{})

	// unknown user
	_, err := svc.Recommendation(context.Background(), "nobody")
	assert.ErrorIs(t, err, session.ErrInsufficientContext)

	// gathering, not ready
	llm := &scriptLLM{replies: []string{noExtraction, "hi"}}
	svc = newAdvisor(t, llm)
	_, err = svc.ChatTurn(context.Background(), "u1", "hello")
	require.NoError(t, err)
	_, err = svc.Recommendation(context.Background(), "u1")
	assert.ErrorIs(t, err, session.ErrInsufficientContext)
}

func TestRecommendationProducedOnce(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "nda", "fields": {"disclosing_party": "Acme", "receiving_party": "Bob", "subject": "designs"}}`,
		"Ready to recommend.",
		`{"document_type": "NDA", "key_terms": "confidentiality scope", "risks": "broad definitions", "next_steps": "have it signed"}`,
	}}
	svc := newAdvisor(t, llm)

	_, err := svc.ChatTurn(context.Background(), "u1", "NDA between Acme and Bob about designs")
	require.NoError(t, err)

	rec, err := svc.Recommendation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "NDA", rec.Sections["document_type"])
	assert.Equal(t, testTime, rec.CreatedAt)
	calls := llm.calls

	// second call returns the cached result without another model call
	again, err := svc.Recommendation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Same(t, rec, again)
	assert.Equal(t, calls, llm.calls)
}

func TestRecommendationMalformedOutput(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "nda", "fields": {"disclosing_party": "Acme", "receiving_party": "Bob", "subject": "designs"}}`,
		"Ready.",
		"I recommend an NDA.",
	}}
	svc := newAdvisor(t, llm)

	_, err := svc.ChatTurn(context.Background(), "u1", "NDA between Acme and Bob about designs")
	require.NoError(t, err)

	_, err = svc.Recommendation(context.Background(), "u1")
	assert.ErrorIs(t, err, domai.ErrMalformedOutput)
}

func TestUploadDocumentsPartialFailure(t *testing.T) {
	llm := &scriptLLM{}
	svc := newAdvisor(t, llm)

	res, err := svc.UploadDocuments(context.Background(), "u1", []UploadFile{
		{Filename: "lease.txt", ContentType: "text/plain", Payload: []byte("lease agreement text")},
		{Filename: "broken.docx", Payload: []byte("PK\x03\x04 not a zip")},
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)

	assert.Equal(t, "processed", res.Files[0].Status)
	assert.NotEmpty(t, res.Files[0].DocumentID)
	assert.Equal(t, "failed", res.Files[1].Status)
	assert.NotEmpty(t, res.Files[1].Error)

	assert.Equal(t, session.StateGathering, res.State)
	assert.Empty(t, res.Warning)
}

func TestAnswerAfterUpload(t *testing.T) {
	llm := &scriptLLM{replies: []string{"The rent is 1000."}}
	svc := newAdvisor(t, llm)

	_, err := svc.UploadDocuments(context.Background(), "u1", []UploadFile{
		{Filename: "lease.txt", ContentType: "text/plain", Payload: []byte("rent: 1000 monthly, utilities included")},
	})
	require.NoError(t, err)

	answer, err := svc.Answer(context.Background(), "u1", "what is the rent?")
	require.NoError(t, err)
	assert.Equal(t, "The rent is 1000.", answer)
}

func TestAnswerWithoutDocuments(t *testing.T) {
	svc := newAdvisor(t, &scriptLLM{})

	// unknown user has no session at all
	_, err := svc.Answer(context.Background(), "u1", "anything")
	assert.ErrorIs(t, err, session.ErrNotFound)

	// user exists but has no uploads
	llm := &scriptLLM{replies: []string{noExtraction, "hi"}}
	svc = newAdvisor(t, llm)
	_, err = svc.ChatTurn(context.Background(), "u1", "hello")
	require.NoError(t, err)
	_, err = svc.Answer(context.Background(), "u1", "anything")
	assert.ErrorIs(t, err, domdocs.ErrIndexNotBuilt)
}

func TestClearResetsEverything(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "nda", "fields": {"disclosing_party": "Acme", "receiving_party": "Bob", "subject": "designs"}}`,
		"Ready.",
		`{"document_type": "NDA", "key_terms": "terms", "risks": "risks", "next_steps": "steps"}`,
	}}
	svc := newAdvisor(t, llm)

	_, err := svc.ChatTurn(context.Background(), "u1", "NDA between Acme and Bob about designs")
	require.NoError(t, err)
	_, err = svc.Recommendation(context.Background(), "u1")
	require.NoError(t, err)

	svc.Clear(context.Background(), "u1")

	_, err = svc.Recommendation(context.Background(), "u1")
	assert.ErrorIs(t, err, session.ErrInsufficientContext)
	_, err = svc.Answer(context.Background(), "u1", "anything")
	assert.ErrorIs(t, err, domdocs.ErrIndexNotBuilt)

	// clearing an unknown user is a no-op
	svc.Clear(context.Background(), "ghost")
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	llm := &scriptLLM{replies: []string{
		`{"document_type": "nda", "fields": {"disclosing_party": "Acme", "receiving_party": "Bob", "subject": "designs"}}`,
		"Ready.",
		noExtraction,
		"Hello.",
	}}
	svc := newAdvisor(t, llm)

	res1, err := svc.ChatTurn(context.Background(), "u1", "NDA between Acme and Bob about designs")
	require.NoError(t, err)
	assert.True(t, res1.Ready)

	res2, err := svc.ChatTurn(context.Background(), "u2", "hello")
	require.NoError(t, err)
	assert.False(t, res2.Ready)
}
