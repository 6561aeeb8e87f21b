// Package ingest validates and extracts text from uploaded documents so
// their content can ground document queries.
package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/vocora/vocora/internal/session"
	"github.com/vocora/vocora/pkg/ai"
)

// maxTextBytes bounds the extracted text kept on a session.
const maxTextBytes = 200_000

// Validate rejects uploads by extension and size before any extraction
// work. All returned errors unwrap to ai.ErrInvalidInput.
func Validate(filename string, size, maxBytes int64) error {
	if size > maxBytes {
		return fmt.Errorf("%w: file exceeds the %d MB upload limit", ai.ErrInvalidInput, maxBytes/(1<<20))
	}
	switch ext(filename) {
	case ".pdf", ".txt":
		return nil
	case ".docx", ".doc":
		return fmt.Errorf("%w: Word documents are not supported, please convert to PDF or plain text", ai.ErrInvalidInput)
	default:
		return fmt.Errorf("%w: unsupported file type %q, only .pdf and .txt are accepted", ai.ErrInvalidInput, ext(filename))
	}
}

// Ingest extracts the document text and builds the session document.
func Ingest(filename string, data []byte, now time.Time) (*session.Document, error) {
	var (
		text string
		err  error
	)
	switch ext(filename) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".txt":
		text, err = extractText(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ai.ErrInvalidInput, ext(filename))
	}
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: no readable text found in %s", ai.ErrInvalidInput, filepath.Base(filename))
	}
	if len(text) > maxTextBytes {
		text = text[:maxTextBytes]
	}
	return &session.Document{
		Filename:   filepath.Base(filename),
		Content:    text,
		Size:       int64(len(data)),
		UploadedAt: now,
	}, nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: could not parse PDF: %v", ai.ErrInvalidInput, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: could not extract PDF text: %v", ai.ErrInvalidInput, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: could not extract PDF text: %v", ai.ErrInvalidInput, err)
	}
	return buf.String(), nil
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", ai.ErrInvalidInput)
	}
	return string(data), nil
}

func ext(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
