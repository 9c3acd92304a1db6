package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Loader reads raw documents from a single source path.
type Loader interface {
	Load(ctx context.Context, path string) ([]Document, error)
}

// FSLoader reads supported files from the local filesystem.
type FSLoader struct{}

func (FSLoader) Load(_ context.Context, path string) ([]Document, error) {
	format := DetectFormat(path)
	parser, ok := ParserFor(format)
	if !ok {
		return nil, fmt.Errorf("unsupported document format %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	docs, err := parser.Parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}
	return docs, nil
}

var _ Loader = FSLoader{}
