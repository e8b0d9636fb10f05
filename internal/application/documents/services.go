package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dukhanin/contract-advisor/internal/application"
	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	domain "github.com/dukhanin/contract-advisor/internal/domain/documents"
	"github.com/dukhanin/contract-advisor/internal/infra/ai/prompt"
)

// Budgets in model tokens. Analysis reads the leading chunks of the document,
// QA reads only the retrieved chunks; both are cut before the model call so a
// large upload never blows the context window.
const (
	AnalysisContextTokens = 15000
	QAContextTokens       = 1500
	DefaultTopK           = 3
)

// Service implements use-cases untuk Document: ingest, analyze, QA.
// Service is designed to be used concurrently and is thread-safe as long as
// its collaborators are.
type Service struct {
	Parser    domain.Parser
	Segmenter domain.Segmenter
	NewIndex  func() domain.Index
	LLM       domai.Client
	Tokens    domai.TokenCounter
	Cache     *lru.Cache[string, *domain.AnalysisResult]
	Audit     domain.AnalysisRepository // optional audit log, nil disables
	Archive   domain.ArchiveStore       // optional raw-upload archive, nil disables
	Clock     application.Clock

	TopK           int
	AnalysisTokens int
	QATokens       int
}

func (s *Service) topK() int {
	if s.TopK > 0 {
		return s.TopK
	}
	return DefaultTopK
}

func (s *Service) analysisTokens() int {
	if s.AnalysisTokens > 0 {
		return s.AnalysisTokens
	}
	return AnalysisContextTokens
}

func (s *Service) qaTokens() int {
	if s.QATokens > 0 {
		return s.QATokens
	}
	return QAContextTokens
}

//
// ==== USE CASES ====
//

// IngestResult hasil parse + segment satu file.
type IngestResult struct {
	Document *domain.Document
	Chunks   []domain.Chunk
}

// Ingest parse payload → normalized Document → ordered chunks.
// Index building is the caller's job; chat uploads build one index across all
// of a user's documents while standalone analysis builds none.
func (s *Service) Ingest(ctx context.Context, filename, declaredType string, payload []byte) (*IngestResult, error) {
	doc, err := s.Parser.Parse(ctx, filename, declaredType, payload)
	if err != nil {
		return nil, err
	}
	doc.UploadedAt = s.Clock.Now()

	chunks, err := s.Segmenter.Segment(doc.ID, doc.Text)
	if err != nil {
		return nil, err
	}
	return &IngestResult{Document: doc, Chunks: chunks}, nil
}

// ArchiveUpload simpan raw payload ke object storage kalau dikonfigurasi.
// Failure is reported to the caller but never blocks the pipeline.
func (s *Service) ArchiveUpload(ctx context.Context, userID, filename, contentType string, payload []byte) (string, error) {
	if s.Archive == nil {
		return "", nil
	}
	key := fmt.Sprintf("%s/%s/%s", userID, uuid.New().String(), filename)
	return s.Archive.Upload(ctx, key, payload, contentType)
}

// Analyze runs the structured risk extraction over an already-ingested
// document. Results are cached by content hash: same bytes, same answer,
// no second model call.
func (s *Service) Analyze(ctx context.Context, userID string, ing *IngestResult) (*domain.AnalysisResult, error) {
	doc := ing.Document

	if s.Cache != nil {
		if cached, ok := s.Cache.Get(doc.ContentHash); ok {
			return cached, nil
		}
	}
	if res, ok := s.auditLookup(ctx, doc); ok {
		if s.Cache != nil {
			s.Cache.Add(doc.ContentHash, res)
		}
		return res, nil
	}

	excerpts := s.leadingExcerpts(ing.Chunks, s.analysisTokens())

	raw, err := s.LLM.Complete(ctx, domai.CompletionRequest{
		System:   prompt.AnalysisSystemPrompt(),
		Messages: []domai.Message{{Role: domai.RoleUser, Content: prompt.AnalysisUserPrompt(doc.Filename, excerpts)}},
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	risks, summary, err := prompt.ParseAnalysis(raw)
	if err != nil {
		return nil, err
	}

	res := &domain.AnalysisResult{
		DocumentID:  doc.ID,
		ContentHash: doc.ContentHash,
		Risks:       risks,
		Summary:     summary,
		CreatedAt:   s.Clock.Now(),
	}
	if err := res.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domai.ErrMalformedOutput, err)
	}

	if s.Cache != nil {
		s.Cache.Add(doc.ContentHash, res)
	}
	s.auditSave(ctx, userID, doc, res)
	return res, nil
}

// Answer satu pertanyaan terhadap index yang sudah dibangun.
// Zero retrieved chunks short-circuits to the fixed refusal answer without a
// model call.
func (s *Service) Answer(ctx context.Context, idx domain.Index, question string) (string, error) {
	chunks, err := idx.Query(ctx, question, s.topK())
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return prompt.InsufficientContextAnswer, nil
	}

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.Text)
	}
	window := s.Tokens.Truncate(strings.Join(parts, "\n\n"), s.qaTokens())

	answer, err := s.LLM.Complete(ctx, domai.CompletionRequest{
		System:   prompt.QASystemPrompt(),
		Messages: []domai.Message{{Role: domai.RoleUser, Content: prompt.QAUserPrompt(window, question)}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// AnalyzeUpload is the standalone analysis path: parse, segment and analyze
// a single upload without touching any session.
func (s *Service) AnalyzeUpload(ctx context.Context, userID, filename, declaredType string, payload []byte) (*domain.AnalysisResult, error) {
	ing, err := s.Ingest(ctx, filename, declaredType, payload)
	if err != nil {
		return nil, err
	}
	// Archive is best-effort; analysis proceeds regardless.
	_, _ = s.ArchiveUpload(ctx, userID, filename, declaredType, payload)
	return s.Analyze(ctx, userID, ing)
}

// QAUpload answers a question batch over a single upload using an ephemeral
// index that is discarded afterwards.
func (s *Service) QAUpload(ctx context.Context, filename, declaredType string, payload []byte, questions []string) ([]QAItem, error) {
	ing, err := s.Ingest(ctx, filename, declaredType, payload)
	if err != nil {
		return nil, err
	}
	idx := s.NewIndex()
	if err := idx.Build(ctx, ing.Chunks); err != nil {
		return nil, err
	}
	return s.AnswerBatch(ctx, idx, questions), nil
}

// QAItem hasil satu pertanyaan dari batch.
type QAItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AnswerBatch jawab tiap pertanyaan secara independen; satu yang gagal tidak
// membatalkan sisanya.
func (s *Service) AnswerBatch(ctx context.Context, idx domain.Index, questions []string) []QAItem {
	items := make([]QAItem, 0, len(questions))
	for _, q := range questions {
		item := QAItem{Question: q}
		answer, err := s.Answer(ctx, idx, q)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.Answer = answer
		}
		items = append(items, item)
	}
	return items
}

// History ambil halaman audit log analisis untuk satu user.
func (s *Service) History(ctx context.Context, userID string, page, pageSize int) ([]*domain.AnalysisRecord, error) {
	if s.Audit == nil {
		return nil, nil
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.Audit.Paginate(ctx, userID, page, pageSize)
}

//
// ==== helpers ====
//

// leadingExcerpts collects chunk texts from the start of the document until
// the token budget is spent. The last excerpt is truncated to fit exactly.
func (s *Service) leadingExcerpts(chunks []domain.Chunk, budget int) []string {
	var excerpts []string
	remaining := budget
	for _, c := range chunks {
		if remaining <= 0 {
			break
		}
		n := s.Tokens.Count(c.Text)
		if n <= remaining {
			excerpts = append(excerpts, c.Text)
			remaining -= n
			continue
		}
		if cut := s.Tokens.Truncate(c.Text, remaining); cut != "" {
			excerpts = append(excerpts, cut)
		}
		break
	}
	return excerpts
}

func (s *Service) auditLookup(ctx context.Context, doc *domain.Document) (*domain.AnalysisResult, bool) {
	if s.Audit == nil {
		return nil, false
	}
	rec, err := s.Audit.LatestByHash(ctx, doc.ContentHash)
	if err != nil || rec == nil {
		return nil, false
	}
	var res domain.AnalysisResult
	if err := json.Unmarshal([]byte(rec.ResultJSON), &res); err != nil {
		return nil, false
	}
	if err := res.Validate(); err != nil {
		return nil, false
	}
	res.DocumentID = doc.ID
	return &res, true
}

func (s *Service) auditSave(ctx context.Context, userID string, doc *domain.Document, res *domain.AnalysisResult) {
	if s.Audit == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	// Audit is best-effort; the caller already has the result in hand.
	_ = s.Audit.Save(ctx, &domain.AnalysisRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		Filename:    doc.Filename,
		ContentHash: doc.ContentHash,
		ResultJSON:  string(payload),
		CreatedAt:   res.CreatedAt,
	})
}
