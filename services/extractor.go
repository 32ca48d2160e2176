package services

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"knowledge-vault/utils"
)

// plainTextExtensions are stored and indexed verbatim.
var plainTextExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".log": true,
	".csv": true,
}

// SupportedExtension reports whether ingestion accepts the extension.
func SupportedExtension(ext string) bool {
	return ext == ".pdf" || plainTextExtensions[strings.ToLower(ext)]
}

// ExtractText pulls indexable text out of stored bytes based on the
// file extension.
func ExtractText(data []byte, extension string) (string, error) {
	ext := strings.ToLower(extension)
	switch {
	case ext == ".pdf":
		return extractPDF(data)
	case plainTextExtensions[ext]:
		return string(data), nil
	default:
		return "", utils.NewValidationError("Unsupported file type '"+extension+"'",
			map[string]interface{}{"extension": extension})
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page should not sink the document.
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("no extractable text in PDF")
	}
	return text, nil
}
