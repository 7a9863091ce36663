package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	mimePDF  = "application/pdf"
	mimeText = "text/plain"
)

// TextLayer pulls machine-readable text out of a document buffer.
type TextLayer interface {
	Text(ctx context.Context, data []byte, mimeType string) (string, error)
}

// PDFTextLayer reads the embedded text layer of PDFs and passes plain text through.
type PDFTextLayer struct{}

func (PDFTextLayer) Text(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch DetectMime(data, mimeType) {
	case mimePDF:
		return extractPDF(data)
	case mimeText:
		return string(data), nil
	default:
		return "", fmt.Errorf("no text layer for %s", DetectMime(data, mimeType))
	}
}

func extractPDF(data []byte) (text string, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("parse pdf: %v", rec)
		}
	}()
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return buf.String(), nil
}

// DetectMime sniffs the payload, trusting the declared type only when sniffing is inconclusive.
func DetectMime(data []byte, declared string) string {
	sniffed := http.DetectContentType(data)
	base := strings.TrimSpace(strings.SplitN(sniffed, ";", 2)[0])
	if base != "application/octet-stream" {
		return base
	}
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if declared != "" {
		return declared
	}
	return base
}

// Normalize collapses whitespace runs to single spaces and trims.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
