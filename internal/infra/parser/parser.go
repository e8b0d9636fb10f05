package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

// Parser converts an uploaded payload into a Document with normalized text
// and structural markers. It keeps no state and has no side effects.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

// Parse implements documents.Parser.
func (p *Parser) Parse(ctx context.Context, filename, declaredType string, payload []byte) (*documents.Document, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, documents.ErrEmptyDocument)
	}

	format, err := detectFormat(filename, declaredType, payload)
	if err != nil {
		return nil, err
	}

	var text string
	var markers []documents.Marker
	switch format {
	case documents.FormatPDF:
		text, markers, err = extractPDF(payload)
	case documents.FormatDOCX:
		text, markers, err = extractDOCX(payload)
	case documents.FormatText:
		text, markers, err = extractPlainText(payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}

	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", filename, documents.ErrEmptyDocument)
	}
	markers = clampMarkers(markers, len(text))

	sum := sha256.Sum256([]byte(text))
	return &documents.Document{
		ID:          documents.DocumentID(uuid.New().String()),
		Filename:    filename,
		Format:      format,
		Text:        text,
		Markers:     markers,
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}

// detectFormat trusts the declared content type first, then the filename
// extension, then sniffs the payload: stdlib detection first, falling back
// to the broader mimetype library when ambiguous.
func detectFormat(filename, declaredType string, payload []byte) (documents.Format, error) {
	if f, ok := formatFromMIME(declaredType); ok {
		return f, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return documents.FormatPDF, nil
	case ".docx":
		return documents.FormatDOCX, nil
	case ".txt", ".text", ".md":
		return documents.FormatText, nil
	}

	sniffed := http.DetectContentType(payload)
	if sniffed == "application/octet-stream" {
		sniffed = mimetype.Detect(payload).String()
	}
	if f, ok := formatFromMIME(sniffed); ok {
		return f, nil
	}

	return "", fmt.Errorf("%s (%s): %w", filename, sniffed, documents.ErrUnsupportedFormat)
}

func formatFromMIME(mime string) (documents.Format, bool) {
	// strip parameters like "; charset=utf-8"
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	switch strings.TrimSpace(strings.ToLower(mime)) {
	case "application/pdf":
		return documents.FormatPDF, true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return documents.FormatDOCX, true
	case "text/plain", "text/markdown":
		return documents.FormatText, true
	}
	return "", false
}

// normalize canonicalizes line endings and trims trailing whitespace so the
// content hash is stable across platforms.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimRight(text, " \t\n")
}

// clampMarkers drops markers that fell outside the normalized text after
// trimming and deduplicates identical offsets.
func clampMarkers(markers []documents.Marker, limit int) []documents.Marker {
	var out []documents.Marker
	lastOffset := -1
	for _, m := range markers {
		if m.Offset < 0 || m.Offset >= limit {
			continue
		}
		if m.Offset == lastOffset {
			continue
		}
		out = append(out, m)
		lastOffset = m.Offset
	}
	return out
}
