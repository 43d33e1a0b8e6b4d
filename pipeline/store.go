package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore persists rendered markdown and returns where it went.
type ArtifactStore interface {
	Save(ctx context.Context, documentID, sourcePath, markdown string) (string, error)
}

// ErrInvalidDocumentID rejects ids that would escape the store root.
var ErrInvalidDocumentID = errors.New("invalid document id")

// FileStore writes {Root}/{documentID}/{source stem}.md.
type FileStore struct {
	Root string
}

// NewFileStore creates a store under root.
func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

// Save writes markdown, creating the document directory as needed.
func (s *FileStore) Save(_ context.Context, documentID, sourcePath, markdown string) (string, error) {
	if documentID == "" || documentID == "." || documentID == ".." || strings.ContainsAny(documentID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocumentID, documentID)
	}
	dir := filepath.Join(s.Root, documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		stem = documentID
	}
	path := filepath.Join(dir, stem+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
