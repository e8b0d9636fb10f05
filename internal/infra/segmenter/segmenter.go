package segmenter

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

const (
	// DefaultChunkSize matches the splitter settings the analysis pipeline
	// was tuned for.
	DefaultChunkSize = 4000

	// DefaultOverlap keeps neighbouring chunks sharing enough context for
	// retrieval without inflating the corpus.
	DefaultOverlap = 200
)

// Segmenter splits normalized text into ordered, overlapping chunks that
// cover the whole input. Same input and parameters always produce identical
// boundaries, so chunking can be cached by document identity.
type Segmenter struct {
	size    int
	overlap int
}

// New creates a Segmenter with a chunk size in characters and an overlap
// fraction of that size (e.g. 0.05 for 200 chars of a 4000-char chunk).
func New(size int, overlapFraction float64) (*Segmenter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("segmenter: chunk size must be positive, got %d", size)
	}
	if overlapFraction < 0 || overlapFraction >= 1 {
		return nil, fmt.Errorf("segmenter: overlap fraction must be in [0,1), got %g", overlapFraction)
	}
	overlap := int(float64(size) * overlapFraction)
	return &Segmenter{size: size, overlap: overlap}, nil
}

// Default returns a Segmenter with the standard size and overlap.
func Default() *Segmenter {
	return &Segmenter{size: DefaultChunkSize, overlap: DefaultOverlap}
}

// Segment implements documents.Segmenter. Offsets are byte offsets into
// text; boundaries are snapped to whitespace when one is close, and always
// to a rune start so no chunk splits a UTF-8 sequence.
func (s *Segmenter) Segment(docID documents.DocumentID, text string) ([]documents.Chunk, error) {
	if len(text) == 0 {
		return nil, fmt.Errorf("segmenter: %w", documents.ErrEmptyDocument)
	}

	if len(text) <= s.size {
		return []documents.Chunk{{
			DocumentID: docID,
			Seq:        0,
			Start:      0,
			End:        len(text),
			Text:       text,
		}}, nil
	}

	var chunks []documents.Chunk
	start := 0
	for seq := 0; ; seq++ {
		end := start + s.size
		if end >= len(text) {
			end = len(text)
		} else {
			end = snapToBreak(text, end, s.size/10)
		}

		chunks = append(chunks, documents.Chunk{
			DocumentID: docID,
			Seq:        seq,
			Start:      start,
			End:        end,
			Text:       text[start:end],
		})
		if end == len(text) {
			break
		}

		next := end - s.overlap
		if next <= start {
			// Overlap must never stall progress.
			next = start + 1
		}
		prev := start
		start = alignRuneStart(text, next)
		if start <= prev {
			// Rune alignment can back up into the previous chunk on
			// multibyte text; advance past one full rune instead.
			_, n := utf8.DecodeRuneInString(text[prev:])
			start = prev + n
		}
	}
	return chunks, nil
}

// snapToBreak moves end backwards to the nearest whitespace within tolerance
// so chunks prefer to break between words; failing that it only aligns to a
// rune boundary.
func snapToBreak(text string, end, tolerance int) int {
	for i := end; i > end-tolerance && i > 0; i-- {
		r, _ := utf8.DecodeRuneInString(text[alignRuneStart(text, i-1):])
		if unicode.IsSpace(r) {
			return alignRuneStart(text, i)
		}
	}
	return alignRuneStart(text, end)
}

// alignRuneStart backs pos up to the start of the rune it falls inside.
func alignRuneStart(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// Reconstruct joins ordered chunks back into the original text by dropping
// each chunk's overlap with its predecessor. It is the inverse of Segment
// and exists mainly to let callers verify offset integrity.
func Reconstruct(chunks []documents.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	out := chunks[0].Text
	prevEnd := chunks[0].End
	for _, c := range chunks[1:] {
		if c.Start < prevEnd {
			skip := prevEnd - c.Start
			if skip >= len(c.Text) {
				continue
			}
			out += c.Text[skip:]
		} else {
			out += c.Text
		}
		if c.End > prevEnd {
			prevEnd = c.End
		}
	}
	return out
}
