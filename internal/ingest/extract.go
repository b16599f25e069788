package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extractor turns an uploaded file into plain text. Binary formats
// (PDF, DOCX) are handled by an external extraction service before upload;
// the core only accepts text-bearing files.
type Extractor interface {
	Extract(filename string, data []byte) (string, error)
}

type textExtractor struct{}

func NewExtractor() Extractor {
	return textExtractor{}
}

func (textExtractor) Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", "":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("file %s is not valid utf-8 text", filename)
		}
		return string(data), nil
	case ".md", ".markdown":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("file %s is not valid utf-8 text", filename)
		}
		return extractMarkdown(data), nil
	default:
		return "", fmt.Errorf("unsupported file type %q, expected extracted text (.txt/.md)", ext)
	}
}

// extractMarkdown walks the parsed document and keeps only text nodes, so
// formatting markers do not leak into chunks and embeddings.
func extractMarkdown(source []byte) string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var sb strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Text:
			sb.Write(n.Segment.Value(source))
			sb.WriteByte(' ')
		case *ast.FencedCodeBlock:
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(source))
			}
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
