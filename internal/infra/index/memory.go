package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dukhanin/contract-advisor/internal/domain/ai"
	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

// embedBatchSize bounds one embeddings request, matching the provider limit.
const embedBatchSize = 100

// Memory is an in-memory retrieval index over one scope (a document or a
// session's attached documents). Build replaces the whole state; the
// per-document corpora are small enough that incremental update would be
// unjustified complexity.
type Memory struct {
	llm ai.Client

	mu      sync.RWMutex
	chunks  []documents.Chunk
	vectors [][]float32
	built   bool
}

func NewMemory(llm ai.Client) *Memory {
	return &Memory{llm: llm}
}

// Build implements documents.Index. Chunks are embedded in batches and the
// previous index state, if any, is discarded atomically on success.
func (m *Memory) Build(ctx context.Context, chunks []documents.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := m.llm.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("index build: %w", err)
		}
		if len(batch) != end-start {
			return fmt.Errorf("index build: provider returned %d vectors for %d inputs", len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}

	stored := make([]documents.Chunk, len(chunks))
	copy(stored, chunks)

	m.mu.Lock()
	m.chunks = stored
	m.vectors = vectors
	m.built = true
	m.mu.Unlock()
	return nil
}

// Query implements documents.Index. Results come back in descending
// similarity; ties break by ascending sequence index so ordering is
// reproducible. k larger than the corpus returns every chunk.
func (m *Memory) Query(ctx context.Context, text string, k int) ([]documents.Chunk, error) {
	m.mu.RLock()
	built := m.built
	chunks := m.chunks
	vectors := m.vectors
	m.mu.RUnlock()

	if !built {
		return nil, documents.ErrIndexNotBuilt
	}
	if k <= 0 || len(chunks) == 0 {
		return nil, nil
	}

	queryVecs, err := m.llm.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("index query: %w", err)
	}
	if len(queryVecs) == 0 {
		return nil, fmt.Errorf("index query: provider returned no vector")
	}
	qv := queryVecs[0]

	type scored struct {
		chunk documents.Chunk
		score float64
	}
	results := make([]scored, len(chunks))
	for i, c := range chunks {
		results[i] = scored{chunk: c, score: cosine(qv, vectors[i])}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunk.Seq < results[j].chunk.Seq
	})

	if k > len(results) {
		k = len(results)
	}
	out := make([]documents.Chunk, k)
	for i := 0; i < k; i++ {
		out[i] = results[i].chunk
	}
	return out, nil
}

// cosine similarity; mismatched or zero-norm vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
