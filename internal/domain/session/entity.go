package session

import (
	"strings"
	"time"

	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

// State enum for the interview state machine.
type State string

const (
	StateStarted     State = "started"
	StateGathering   State = "gathering"
	StateReady       State = "ready_for_recommendation"
	StateRecommended State = "recommended"
)

// Role enum
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is one turn of the conversation; the sequence is append-only.
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Recommendation maps named sections (document type, key terms, next steps)
// to generated text. Immutable once produced.
type Recommendation struct {
	Sections  map[string]string `json:"sections"`
	CreatedAt time.Time         `json:"created_at"`
}

// Validate requires at least one non-empty section.
func (r *Recommendation) Validate() error {
	for _, v := range r.Sections {
		if strings.TrimSpace(v) != "" {
			return nil
		}
	}
	return ErrInsufficientContext
}

// Extraction is the model-assisted reading of one user turn: the inferred
// document type (if any) and the interview fields present in the message.
type Extraction struct {
	DocumentType DocumentType
	Fields       map[string]string
}

// Aggregate Root: Session
// Owned by exactly one user and mutated only by that user's sequential
// request stream; callers serialize access.
type Session struct {
	ID             string                                 `json:"id"`
	UserID         string                                 `json:"user_id"`
	State          State                                  `json:"state"`
	Messages       []ChatMessage                          `json:"messages"`
	Attached       map[documents.DocumentID]string        `json:"attached,omitempty"` // id -> filename
	DocumentType   DocumentType                           `json:"document_type,omitempty"`
	Answers        map[string]string                      `json:"answers"`
	Missing        []string                               `json:"missing,omitempty"`
	Recommendation *Recommendation                        `json:"recommendation,omitempty"`
	StartedAt      time.Time                              `json:"started_at"`
}

// New creates a Session in the Started state.
func New(id, userID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		State:     StateStarted,
		Attached:  make(map[documents.DocumentID]string),
		Answers:   make(map[string]string),
		StartedAt: now,
	}
}

// Append records a message. The first user message moves Started -> Gathering.
func (s *Session) Append(role Role, content string, now time.Time) {
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: content, Timestamp: now})
	if s.State == StateStarted && role == RoleUser {
		s.State = StateGathering
	}
}

// Attach registers an uploaded document on the session.
func (s *Session) Attach(id documents.DocumentID, filename string) {
	if s.Attached == nil {
		s.Attached = make(map[documents.DocumentID]string)
	}
	s.Attached[id] = filename
	if s.State == StateStarted {
		s.State = StateGathering
	}
}

// ApplyExtraction merges one turn's extracted fields into the accumulated
// answers and advances to ReadyForRecommendation when the required set for
// the inferred document type is complete. Readiness only ever moves forward;
// an already ready or recommended session is left untouched.
func (s *Session) ApplyExtraction(ext Extraction) {
	if s.State == StateReady || s.State == StateRecommended {
		return
	}
	if ext.DocumentType != "" && IsKnownDocumentType(ext.DocumentType) {
		s.DocumentType = ext.DocumentType
	}
	for name, value := range ext.Fields {
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" || value == "" {
			continue
		}
		s.Answers[name] = value
	}
	s.Missing = s.missingFields()
	if s.DocumentType != "" && len(s.Missing) == 0 && s.State == StateGathering {
		s.State = StateReady
	}
}

// missingFields computes the unresolved required fields for the currently
// inferred document type. Without a type every field is still unknown, so
// nothing is reported missing yet.
func (s *Session) missingFields() []string {
	if s.DocumentType == "" {
		return nil
	}
	var missing []string
	for _, f := range RequiredFields(s.DocumentType) {
		if strings.TrimSpace(s.Answers[f]) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Ready reports whether a recommendation may be synthesized.
func (s *Session) Ready() bool {
	return s.State == StateReady || s.State == StateRecommended
}

// SetRecommendation caches the synthesized result and marks the session
// Recommended. The cached value is retrievable across later chat turns.
func (s *Session) SetRecommendation(rec *Recommendation) {
	s.Recommendation = rec
	s.State = StateRecommended
}

// Reset is the history-clear operation: back to Started with empty messages,
// attachments, answers and recommendation.
func (s *Session) Reset(now time.Time) {
	s.State = StateStarted
	s.Messages = nil
	s.Attached = make(map[documents.DocumentID]string)
	s.DocumentType = ""
	s.Answers = make(map[string]string)
	s.Missing = nil
	s.Recommendation = nil
	s.StartedAt = now
}
