package advisor

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dukhanin/contract-advisor/internal/application"
	appdocs "github.com/dukhanin/contract-advisor/internal/application/documents"
	domai "github.com/dukhanin/contract-advisor/internal/domain/ai"
	"github.com/dukhanin/contract-advisor/internal/domain/documents"
	"github.com/dukhanin/contract-advisor/internal/domain/session"
	"github.com/dukhanin/contract-advisor/internal/infra/ai/prompt"
)

// Service implements use-cases untuk sesi konsultasi: chat, upload,
// recommendation, clear. One session per user id; turns within a session are
// serialized on the session lock while separate users proceed concurrently.
type Service struct {
	Docs  *appdocs.Service
	LLM   domai.Client
	Clock application.Clock

	mu       sync.Mutex
	sessions map[string]*userState
}

// userState is everything owned by one user: the interview session plus the
// uploaded documents and the retrieval index built over them.
type userState struct {
	mu     sync.Mutex
	sess   *session.Session
	docs   map[documents.DocumentID]*documents.Document
	chunks []documents.Chunk
	index  documents.Index
}

func New(docs *appdocs.Service, llm domai.Client, clock application.Clock) *Service {
	return &Service{
		Docs:     docs,
		LLM:      llm,
		Clock:    clock,
		sessions: make(map[string]*userState),
	}
}

// state returns the user's state, creating a fresh Started session on first
// contact.
func (s *Service) state(userID string) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[userID]
	if !ok {
		st = &userState{
			sess: session.New(uuid.New().String(), userID, s.Clock.Now()),
			docs: make(map[documents.DocumentID]*documents.Document),
		}
		s.sessions[userID] = st
	}
	return st
}

func (s *Service) lookup(userID string) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

//
// ==== USE CASES ====
//

// ChatTurnResult is one completed exchange.
type ChatTurnResult struct {
	Reply        string               `json:"reply"`
	State        session.State        `json:"state"`
	Ready        bool                 `json:"ready_for_recommendation"`
	DocumentType session.DocumentType `json:"document_type,omitempty"`
	Missing      []string             `json:"missing_fields,omitempty"`
}

// ChatTurn appends the user's message, folds its extracted interview fields
// into the session, and generates the assistant reply against the full
// history and any attached document context.
func (s *Service) ChatTurn(ctx context.Context, userID, message string) (*ChatTurnResult, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.sess
	sess.Append(session.RoleUser, message, s.Clock.Now())

	// Field extraction is best-effort: a turn the extractor cannot read is
	// still a valid conversational turn.
	if ext, err := s.extract(ctx, message, sess.Answers); err == nil {
		sess.ApplyExtraction(ext)
	}

	system := prompt.AdvisorSystemPrompt()
	if block := s.documentContext(ctx, st, message); block != "" {
		system += "\n\n" + block
	}
	system += "\n\n" + prompt.AdvisorReplyInstruction(sess.DocumentType, sess.Missing)

	reply, err := s.LLM.Complete(ctx, domai.CompletionRequest{
		System:   system,
		Messages: historyMessages(sess),
	})
	if err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)
	sess.Append(session.RoleAssistant, reply, s.Clock.Now())

	return &ChatTurnResult{
		Reply:        reply,
		State:        sess.State,
		Ready:        sess.Ready(),
		DocumentType: sess.DocumentType,
		Missing:      sess.Missing,
	}, nil
}

// UploadFile is one incoming multipart part.
type UploadFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// FileStatus is the per-file outcome of a batch upload.
type FileStatus struct {
	Filename   string `json:"filename"`
	Status     string `json:"status"` // processed | failed
	DocumentID string `json:"document_id,omitempty"`
	ArchiveURL string `json:"archive_url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// UploadResult reports every file plus the session state after attaching.
type UploadResult struct {
	Files   []FileStatus  `json:"files"`
	State   session.State `json:"state"`
	Warning string        `json:"warning,omitempty"`
}

// UploadDocuments ingests each file independently; one corrupt upload never
// fails the batch. Succeeding files are attached to the session and the
// user's retrieval index is rebuilt over all attached documents.
func (s *Service) UploadDocuments(ctx context.Context, userID string, files []UploadFile) (*UploadResult, error) {
	st := s.state(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	res := &UploadResult{}
	attached := false
	for _, f := range files {
		status := FileStatus{Filename: f.Filename, Status: "processed"}
		ing, err := s.Docs.Ingest(ctx, f.Filename, f.ContentType, f.Payload)
		if err != nil {
			status.Status = "failed"
			status.Error = err.Error()
			res.Files = append(res.Files, status)
			continue
		}
		doc := ing.Document
		status.DocumentID = string(doc.ID)
		if url, err := s.Docs.ArchiveUpload(ctx, userID, f.Filename, f.ContentType, f.Payload); err == nil && url != "" {
			status.ArchiveURL = url
		}

		st.docs[doc.ID] = doc
		st.chunks = append(st.chunks, ing.Chunks...)
		st.sess.Attach(doc.ID, doc.Filename)
		attached = true
		res.Files = append(res.Files, status)
	}

	if attached {
		idx := s.Docs.NewIndex()
		if err := idx.Build(ctx, st.chunks); err != nil {
			// Keep the previous index; chat still works without retrieval.
			res.Warning = err.Error()
		} else {
			st.index = idx
		}
	}
	res.State = st.sess.State
	return res, nil
}

// Answer runs retrieval QA against the user's attached documents.
func (s *Service) Answer(ctx context.Context, userID, question string) (string, error) {
	st := s.lookup(userID)
	if st == nil {
		return "", session.ErrNotFound
	}
	st.mu.Lock()
	idx := st.index
	st.mu.Unlock()
	if idx == nil {
		return "", documents.ErrIndexNotBuilt
	}
	return s.Docs.Answer(ctx, idx, question)
}

// Recommendation synthesizes the final structured recommendation. It is
// produced at most once per session; repeat calls return the cached result.
func (s *Service) Recommendation(ctx context.Context, userID string) (*session.Recommendation, error) {
	st := s.lookup(userID)
	if st == nil {
		return nil, session.ErrInsufficientContext
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := st.sess
	if sess.Recommendation != nil {
		return sess.Recommendation, nil
	}
	if !sess.Ready() {
		return nil, session.ErrInsufficientContext
	}

	raw, err := s.LLM.Complete(ctx, domai.CompletionRequest{
		System:   prompt.RecommendationSystemPrompt(),
		Messages: []domai.Message{{Role: domai.RoleUser, Content: prompt.RecommendationUserPrompt(sess.DocumentType, sess.Answers, transcript(sess))}},
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}
	sections, err := prompt.ParseRecommendation(raw)
	if err != nil {
		return nil, err
	}

	rec := &session.Recommendation{Sections: sections, CreatedAt: s.Clock.Now()}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	sess.SetRecommendation(rec)
	return rec, nil
}

// Clear wipes the user's conversation, documents and index. Clearing an
// unknown user is a no-op.
func (s *Service) Clear(_ context.Context, userID string) {
	st := s.lookup(userID)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sess.Reset(s.Clock.Now())
	st.docs = make(map[documents.DocumentID]*documents.Document)
	st.chunks = nil
	st.index = nil
}

//
// ==== helpers ====
//

func (s *Service) extract(ctx context.Context, message string, known map[string]string) (session.Extraction, error) {
	raw, err := s.LLM.Complete(ctx, domai.CompletionRequest{
		System:   prompt.ExtractionSystemPrompt(),
		Messages: []domai.Message{{Role: domai.RoleUser, Content: prompt.ExtractionUserPrompt(message, known)}},
		JSONMode: true,
	})
	if err != nil {
		return session.Extraction{}, err
	}
	return prompt.ParseExtraction(raw)
}

// documentContext retrieves the chunks most relevant to the current message
// and renders them as labeled excerpts for the reply prompt.
func (s *Service) documentContext(ctx context.Context, st *userState, message string) string {
	if st.index == nil {
		return ""
	}
	k := s.Docs.TopK
	if k <= 0 {
		k = appdocs.DefaultTopK
	}
	chunks, err := st.index.Query(ctx, message, k)
	if err != nil || len(chunks) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(chunks))
	for _, c := range chunks {
		name := "document"
		if doc, ok := st.docs[c.DocumentID]; ok {
			name = doc.Filename
		}
		blocks = append(blocks, prompt.DocumentContextBlock(name, c.Text))
	}
	return strings.Join(blocks, "\n\n")
}

func historyMessages(sess *session.Session) []domai.Message {
	msgs := make([]domai.Message, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		msgs = append(msgs, domai.Message{Role: domai.Role(m.Role), Content: m.Content})
	}
	return msgs
}

func transcript(sess *session.Session) string {
	var b strings.Builder
	for _, m := range sess.Messages {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
