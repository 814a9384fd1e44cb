package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/hyperjump/kotae/internal/models"
)

// parseMarkdown walks the markdown AST and groups top-level blocks into
// heading-delimited sections: each heading closes the previous section and
// labels the content that follows it. Content before the first heading goes
// into an unlabeled section.
func parseMarkdown(content []byte) (*models.ParsedDocument, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(content))

	doc := &models.ParsedDocument{Type: models.DocTypeMarkdown}
	var section string
	var buf strings.Builder
	flush := func() {
		t := strings.TrimSpace(buf.String())
		buf.Reset()
		if t == "" {
			return
		}
		doc.Blocks = append(doc.Blocks, models.ContentBlock{
			Text:    t,
			Section: section,
		})
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if _, ok := node.(*ast.Heading); ok {
			flush()
			section = blockText(node, content)
			continue
		}
		if t := blockText(node, content); t != "" {
			buf.WriteString(t)
			buf.WriteString("\n")
		}
	}
	flush()

	doc.RawText = joinBlocks(doc.Blocks)
	return doc, nil
}

// blockText collects the source text of a block node and its nested blocks.
// Container blocks like lists carry no line segments themselves, so we walk
// down to the leaf blocks (paragraphs, code blocks) that do.
func blockText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		lines := c.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
