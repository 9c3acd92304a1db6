package ingestion

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	pdf "github.com/ledongthuc/pdf"
)

// Parser turns a raw file payload into one or more documents.
type Parser interface {
	Parse(path string, data []byte) ([]Document, error)
}

// ParserFor returns the parser for a detected format.
func ParserFor(format DocumentFormat) (Parser, bool) {
	switch format {
	case FormatPDF:
		return pdfParser{}, true
	case FormatMarkdown:
		return markdownParser{}, true
	case FormatText:
		return textParser{}, true
	default:
		return nil, false
	}
}

type pdfParser struct{}

// Parse extracts one document per page so page numbers survive into chunk
// metadata.
func (pdfParser) Parse(path string, data []byte) ([]Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	docs := make([]Document, 0, reader.NumPage())
	for num := 1; num <= reader.NumPage(); num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract pdf page %d: %w", num, err)
		}

		docs = append(docs, Document{
			ID:   uuid.New(),
			Text: normalizePlainText(text),
			Metadata: Metadata{
				SourcePath: path,
				Page:       num,
			},
		})
	}

	return docs, nil
}

type markdownParser struct{}

func (markdownParser) Parse(path string, data []byte) ([]Document, error) {
	content := normalizePlainText(string(data))

	return []Document{{
		ID:   uuid.New(),
		Text: content,
		Metadata: Metadata{
			SourcePath: path,
			Title:      ExtractTitle(content, filepath.Base(path)),
		},
	}}, nil
}

type textParser struct{}

func (textParser) Parse(path string, data []byte) ([]Document, error) {
	content := normalizePlainText(string(data))

	title := firstNonEmptyLine(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return []Document{{
		ID:   uuid.New(),
		Text: content,
		Metadata: Metadata{
			SourcePath: path,
			Title:      title,
		},
	}}, nil
}

// ExtractTitle returns the first Markdown heading, or the fallback when the
// content has none.
func ExtractTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return fallback
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func firstNonEmptyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
