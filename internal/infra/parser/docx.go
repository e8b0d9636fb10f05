package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

// documentXML mirrors the subset of word/document.xml we read.
type documentXML struct {
	Body struct {
		Paragraphs []paragraphXML `xml:"p"`
	} `xml:"body"`
}

type paragraphXML struct {
	Runs []runXML `xml:"r"`
}

type runXML struct {
	Text []textXML `xml:"t"`
}

type textXML struct {
	Content string `xml:",chardata"`
}

// extractDOCX opens the payload as a ZIP archive and reads the text runs of
// word/document.xml, emitting a paragraph marker per non-empty paragraph.
func extractDOCX(payload []byte) (string, []documents.Marker, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", nil, fmt.Errorf("docx open: %v: %w", err, documents.ErrCorruptInput)
	}

	raw, err := readArchiveFile(reader, "word/document.xml")
	if err != nil {
		return "", nil, err
	}
	if raw == nil {
		return "", nil, fmt.Errorf("docx missing word/document.xml: %w", documents.ErrCorruptInput)
	}

	var doc documentXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", nil, fmt.Errorf("docx parse: %v: %w", err, documents.ErrCorruptInput)
	}

	var b strings.Builder
	var markers []documents.Marker
	for _, para := range doc.Body.Paragraphs {
		var pb strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Text {
				pb.WriteString(t.Content)
			}
		}
		paraText := strings.TrimSpace(pb.String())
		if paraText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		markers = append(markers, documents.Marker{Kind: documents.MarkerParagraph, Offset: b.Len()})
		b.WriteString(paraText)
	}
	return b.String(), markers, nil
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("docx read %s: %v: %w", name, err, documents.ErrCorruptInput)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("docx read %s: %v: %w", name, err, documents.ErrCorruptInput)
		}
		return content, nil
	}
	return nil, nil
}
