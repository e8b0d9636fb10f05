package documents

import "context"

// Parser port (interface untuk format parsing)
type Parser interface {
	Parse(ctx context.Context, filename, declaredType string, payload []byte) (*Document, error)
}

// Segmenter port: deterministic split of normalized text into ordered,
// overlapping chunks covering the whole input.
type Segmenter interface {
	Segment(docID DocumentID, text string) ([]Chunk, error)
}

// Index port. Build replaces any prior state for the scope (rebuild, never
// patch); Query returns the k most similar chunks, ties broken by ascending
// sequence index.
type Index interface {
	Build(ctx context.Context, chunks []Chunk) error
	Query(ctx context.Context, text string, k int) ([]Chunk, error)
}

// AnalysisRepository port for the optional analysis audit log.
type AnalysisRepository interface {
	Save(ctx context.Context, rec *AnalysisRecord) error
	Paginate(ctx context.Context, userID string, page, pageSize int) ([]*AnalysisRecord, error)
	LatestByHash(ctx context.Context, contentHash string) (*AnalysisRecord, error)
}

// ArchiveStore port (interface untuk penyimpanan raw uploads)
type ArchiveStore interface {
	Upload(ctx context.Context, key string, payload []byte, contentType string) (string, error)
}
