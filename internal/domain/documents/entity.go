package documents

import (
	"fmt"
	"strings"
	"time"
)

// DocumentID tipe untuk Document
type DocumentID string

// Format enum
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "txt"
)

// MarkerKind enum
type MarkerKind string

const (
	MarkerPage      MarkerKind = "page"
	MarkerParagraph MarkerKind = "paragraph"
)

// Marker is a structural boundary (page or paragraph start) inside the
// normalized text, addressed by byte offset.
type Marker struct {
	Kind   MarkerKind `json:"kind"`
	Offset int        `json:"offset"`
}

// Aggregate Root: Document
// Immutable once parsed; the raw payload is not retained here.
type Document struct {
	ID          DocumentID `json:"id"`
	Filename    string     `json:"filename"`
	Format      Format     `json:"format"`
	Text        string     `json:"text"`
	Markers     []Marker   `json:"markers,omitempty"`
	ContentHash string     `json:"content_hash"`
	UploadedAt  time.Time  `json:"uploaded_at"`
}

// Chunk is a bounded slice of a Document's normalized text. Start/End are
// byte offsets into the owning Document's Text; Seq preserves source order.
type Chunk struct {
	DocumentID DocumentID `json:"document_id"`
	Seq        int        `json:"seq"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Text       string     `json:"text"`
	Embedding  []float32  `json:"embedding,omitempty"`
}

// Severity enum
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity normalizes a model-supplied severity label.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Risk value object
type Risk struct {
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Mitigation  string   `json:"mitigation"`
}

// AnalysisResult holds one structured extraction pass over a Document.
// Keyed by the Document's content hash so unchanged content can be served
// from cache without a new model call.
type AnalysisResult struct {
	DocumentID  DocumentID `json:"document_id"`
	ContentHash string     `json:"content_hash"`
	Risks       []Risk     `json:"risks"`
	Summary     string     `json:"summary"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Validate rejects partially-populated results so callers never see a
// half-parsed extraction as success.
func (a *AnalysisResult) Validate() error {
	if strings.TrimSpace(a.Summary) == "" {
		return fmt.Errorf("analysis result: empty summary")
	}
	for i, r := range a.Risks {
		if _, err := ParseSeverity(string(r.Severity)); err != nil {
			return fmt.Errorf("analysis result: risk %d: %w", i, err)
		}
		if strings.TrimSpace(r.Description) == "" {
			return fmt.Errorf("analysis result: risk %d: empty description", i)
		}
	}
	return nil
}

// AnalysisRecord is the persisted audit form of an analysis, stored as raw
// JSON the way the provider returned it after validation.
type AnalysisRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	ResultJSON  string    `json:"result_json"`
	CreatedAt   time.Time `json:"created_at"`
}
