package ingestion

import (
	"path"
	"path/filepath"
	"strings"
)

// Normalizer canonicalizes document metadata: slash-separated cleaned
// source paths, non-negative page numbers, and a collapsed title with a
// filename fallback. Normalize is idempotent.
type Normalizer struct{}

func (Normalizer) Normalize(doc Document) Document {
	m := doc.Metadata

	m.SourcePath = canonicalPath(m.SourcePath)
	if m.Page < 0 {
		m.Page = 0
	}
	m.Title = strings.Join(strings.Fields(m.Title), " ")
	if m.Title == "" {
		m.Title = titleFromPath(m.SourcePath)
	}

	doc.Metadata = m
	return doc
}

func canonicalPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	cleaned := path.Clean(filepath.ToSlash(p))
	if cleaned == "." {
		return ""
	}
	return cleaned
}

func titleFromPath(p string) string {
	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
