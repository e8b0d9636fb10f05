package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

func TestParsePlainText(t *testing.T) {
	p := New()
	payload := []byte("First paragraph of the contract.\r\n\r\nSecond paragraph.\r\n")

	doc, err := p.Parse(context.Background(), "contract.txt", "text/plain", payload)
	require.NoError(t, err)

	assert.Equal(t, documents.FormatText, doc.Format)
	assert.Equal(t, "First paragraph of the contract.\n\nSecond paragraph.", doc.Text)
	assert.NotEmpty(t, doc.ID)
	assert.Len(t, doc.ContentHash, 64)
	require.NotEmpty(t, doc.Markers)
	assert.Equal(t, documents.MarkerParagraph, doc.Markers[0].Kind)
	assert.Equal(t, 0, doc.Markers[0].Offset)
}

func TestParseMarkersSkipExtraBlankLines(t *testing.T) {
	p := New()
	payload := []byte("Alpha clause.\n\n\nBeta clause.")

	doc, err := p.Parse(context.Background(), "contract.txt", "text/plain", payload)
	require.NoError(t, err)
	require.Len(t, doc.Markers, 2)

	// every marker points at a paragraph's first character, never at the
	// newline run in front of it
	for _, m := range doc.Markers {
		assert.NotEqual(t, byte('\n'), doc.Text[m.Offset], "marker at %d lands on a newline", m.Offset)
	}
	assert.Equal(t, byte('B'), doc.Text[doc.Markers[1].Offset])
}

func TestParseStripsBOM(t *testing.T) {
	p := New()
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello world")...)

	doc, err := p.Parse(context.Background(), "note.txt", "", payload)
	require.NoError(t, err)
	assert.Equal(t, "hello world", doc.Text)
}

func TestParseContentHashStableAcrossLineEndings(t *testing.T) {
	p := New()
	unix, err := p.Parse(context.Background(), "a.txt", "text/plain", []byte("line one\nline two\n"))
	require.NoError(t, err)
	windows, err := p.Parse(context.Background(), "b.txt", "text/plain", []byte("line one\r\nline two\r\n"))
	require.NoError(t, err)

	assert.Equal(t, unix.ContentHash, windows.ContentHash)
	assert.NotEqual(t, unix.ID, windows.ID)
}

func TestParseDOCX(t *testing.T) {
	p := New()
	payload := buildDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Employment contract between parties.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Section one: </w:t></w:r><w:r><w:t>salary terms.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	doc, err := p.Parse(context.Background(), "contract.docx", "", payload)
	require.NoError(t, err)

	assert.Equal(t, documents.FormatDOCX, doc.Format)
	assert.Contains(t, doc.Text, "Employment contract between parties.")
	assert.Contains(t, doc.Text, "Section one: salary terms.")
	require.Len(t, doc.Markers, 2)
	assert.Equal(t, documents.MarkerParagraph, doc.Markers[0].Kind)
}

func TestParseCorruptDOCX(t *testing.T) {
	p := New()
	payload := []byte("PK\x03\x04 this is not a real zip archive")

	_, err := p.Parse(context.Background(), "broken.docx", "", payload)
	assert.ErrorIs(t, err, documents.ErrCorruptInput)
}

func TestParseCorruptPDF(t *testing.T) {
	p := New()
	payload := []byte("%PDF-1.7 garbage that is not a valid pdf body")

	_, err := p.Parse(context.Background(), "broken.pdf", "application/pdf", payload)
	assert.ErrorIs(t, err, documents.ErrCorruptInput)
}

func TestParseUnsupportedFormat(t *testing.T) {
	p := New()
	// PNG magic bytes, no helpful extension
	payload := []byte("\x89PNG\r\n\x1a\n0000000000")

	_, err := p.Parse(context.Background(), "image.png", "", payload)
	assert.ErrorIs(t, err, documents.ErrUnsupportedFormat)
}

func TestParseEmptyPayload(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), "empty.txt", "text/plain", nil)
	assert.ErrorIs(t, err, documents.ErrEmptyDocument)
}

func TestParseWhitespaceOnly(t *testing.T) {
	p := New()
	_, err := p.Parse(context.Background(), "blank.txt", "text/plain", []byte("   \n\n\t  \n"))
	assert.ErrorIs(t, err, documents.ErrEmptyDocument)
}

func TestDetectFormatPrefersDeclaredType(t *testing.T) {
	// declared type wins over a misleading extension
	f, err := detectFormat("contract.bin", "text/plain; charset=utf-8", []byte("plain text"))
	require.NoError(t, err)
	assert.Equal(t, documents.FormatText, f)
}

// buildDOCX assembles a minimal OOXML package in memory.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}
