package ingest

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"ragline/internal/document"
)

// MarkdownParser produces elements from markdown content without calling the
// remote parsing backend. Headings become Title elements and everything under
// a heading names it as parent, so the parent-child strategy groups sections
// the same way it does for backend output.
type MarkdownParser struct {
	parser goldmark.Markdown
}

// NewMarkdownParser creates a markdown element parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

type headingFrame struct {
	level int
	id    string
}

// Parse converts markdown content into an ordered element list. Markdown has
// no pages, so every element reports page 1.
func (p *MarkdownParser) Parse(content []byte, fileName string) ([]document.Element, error) {
	if len(content) == 0 {
		return []document.Element{}, nil
	}

	reader := text.NewReader(content)
	root := p.parser.Parser().Parse(reader)

	var elements []document.Element
	var stack []headingFrame
	seq := 0

	nextID := func() string {
		seq++
		return fmt.Sprintf("md-%d", seq)
	}
	currentParent := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1].id
	}
	add := func(id, typ, txt, parentID string) {
		elements = append(elements, document.Element{
			Type:      typ,
			ElementID: id,
			Text:      txt,
			Metadata: document.ElementMetadata{
				Filetype:   "text/markdown",
				PageNumber: 1,
				Filename:   fileName,
				ParentID:   parentID,
			},
		})
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		switch v := node.(type) {
		case *ast.Heading:
			for len(stack) > 0 && stack[len(stack)-1].level >= v.Level {
				stack = stack[:len(stack)-1]
			}
			id := nextID()
			add(id, "Title", extractText(v, content), currentParent())
			stack = append(stack, headingFrame{level: v.Level, id: id})

		case *ast.Paragraph:
			if txt := extractText(v, content); txt != "" {
				add(nextID(), "NarrativeText", txt, currentParent())
			}

		case *ast.FencedCodeBlock:
			if txt := blockLines(v, content); txt != "" {
				add(nextID(), "CodeSnippet", txt, currentParent())
			}

		case *ast.CodeBlock:
			if txt := blockLines(v, content); txt != "" {
				add(nextID(), "CodeSnippet", txt, currentParent())
			}

		case *ast.List:
			for item := v.FirstChild(); item != nil; item = item.NextSibling() {
				if txt := extractText(item, content); txt != "" {
					add(nextID(), "ListItem", txt, currentParent())
				}
			}

		case *ast.ThematicBreak:
			// No content.

		default:
			typ := "UncategorizedText"
			if strings.Contains(node.Kind().String(), "Table") {
				typ = "Table"
			}
			if txt := extractText(node, content); txt != "" {
				add(nextID(), typ, txt, currentParent())
			}
		}
	}

	return elements, nil
}

// extractText collects the text content of a node and its children.
func extractText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// blockLines joins the raw source lines of a code block.
func blockLines(n ast.Node, content []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		b.Write(line.Value(content))
	}
	return strings.TrimRight(b.String(), "\n")
}
