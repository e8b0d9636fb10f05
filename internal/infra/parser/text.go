package parser

import (
	"bytes"
	"strings"

	"github.com/dukhanin/contract-advisor/internal/domain/documents"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlainText strips a UTF-8 BOM, replaces invalid byte sequences, and
// records a paragraph marker at each blank-line boundary.
func extractPlainText(payload []byte) (string, []documents.Marker, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)
	text := strings.ToValidUTF8(string(payload), "�")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var markers []documents.Marker
	offset := 0
	for _, block := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(block) != "" {
			// runs of 3+ newlines leave a leading "\n" on the block;
			// the marker points at the paragraph's first character
			lead := len(block) - len(strings.TrimLeft(block, " \t\n"))
			markers = append(markers, documents.Marker{Kind: documents.MarkerParagraph, Offset: offset + lead})
		}
		offset += len(block) + len("\n\n")
	}
	return text, markers, nil
}
