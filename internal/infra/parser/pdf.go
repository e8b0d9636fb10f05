package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

// extractPDF pulls plain text out of every page, in page order, and records
// a page marker at each page's start offset. The pdf library panics on some
// malformed inputs, so the whole pass runs under a recover.
func extractPDF(payload []byte) (text string, markers []documents.Marker, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, markers = "", nil
			err = fmt.Errorf("pdf parse panic: %v: %w", r, documents.ErrCorruptInput)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return "", nil, fmt.Errorf("pdf open: %v: %w", err, documents.ErrCorruptInput)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not corrupt the whole document.
			continue
		}
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		markers = append(markers, documents.Marker{Kind: documents.MarkerPage, Offset: b.Len()})
		b.WriteString(strings.TrimRight(pageText, "\n"))
	}
	return b.String(), markers, nil
}
