// Package parser defines the contract every format parser implements and
// selects a parser for a file.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tsawler/docmark/model"
	"github.com/tsawler/docmark/progress"
)

// Parser turns one file format into a Document.
type Parser interface {
	// Name identifies the parser in logs and progress details.
	Name() string
	// Supports reports, from the path alone, whether the parser accepts
	// the file.
	Supports(path string) bool
	// Parse reads path. Sub-stage progress goes to sink. Unrecoverable
	// failures are returned as *ParseError.
	Parse(ctx context.Context, path string, sink progress.Sink) (*model.Document, error)
}

// ParseError reports a file that could not be parsed.
type ParseError struct {
	Message string
	Path    string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Message, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Path)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Errorf builds a ParseError for path.
func Errorf(path string, cause error, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Path: path, Cause: cause}
}

// Selector picks the first parser in a fixed priority list that supports a
// file.
type Selector struct {
	parsers []Parser
}

// NewSelector creates a selector trying parsers in the given order.
func NewSelector(parsers ...Parser) *Selector {
	return &Selector{parsers: parsers}
}

// Select returns the parser for path, or a ParseError when none applies.
func (s *Selector) Select(path string) (Parser, error) {
	for _, p := range s.parsers {
		if p.Supports(path) {
			return p, nil
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	return nil, &ParseError{Message: "no parser available for file type: " + ext, Path: path}
}

// Parsers returns the parsers in priority order.
func (s *Selector) Parsers() []Parser {
	return append([]Parser(nil), s.parsers...)
}
