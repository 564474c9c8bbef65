// ABOUTME: Converts Markdown into the HTML subset the chat transport accepts
// ABOUTME: Walks the goldmark AST; every text node and attribute is escaped

package richtext

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))

// Escape makes s safe to embed in transport HTML.
func Escape(s string) string {
	return textEscaper.Replace(s)
}

// ToHTML renders Markdown as transport HTML: b, i, s, a, code, pre, blockquote
// and plain bullet lines. Raw HTML in the input is shown literally.
func ToHTML(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	r := &renderer{source: source}
	_ = ast.Walk(doc, r.walk)

	out := blankRuns.ReplaceAllString(r.buf.String(), "\n\n")
	return strings.TrimSpace(out)
}

type listState struct {
	ordered bool
	next    int
}

type renderer struct {
	source []byte
	buf    bytes.Buffer
	lists  []listState
}

func (r *renderer) blockBreak(n ast.Node) {
	if n.PreviousSibling() == nil {
		return
	}
	if _, inItem := n.Parent().(*ast.ListItem); inItem {
		r.buf.WriteByte('\n')
		return
	}
	r.buf.WriteString("\n\n")
}

func (r *renderer) writeLines(lines *text.Segments) {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(r.source))
	}
	r.buf.WriteString(Escape(strings.TrimRight(b.String(), "\n")))
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Document, *ast.TextBlock:
		// containers only
	case *ast.Paragraph:
		if entering {
			r.blockBreak(n)
		}

	case *ast.Heading:
		if entering {
			r.blockBreak(n)
			r.buf.WriteString("<b>")
		} else {
			r.buf.WriteString("</b>")
		}

	case *ast.ThematicBreak:
		if entering {
			r.blockBreak(n)
			r.buf.WriteString("———")
		}

	case *ast.Blockquote:
		if entering {
			r.blockBreak(n)
			r.buf.WriteString("<blockquote>")
		} else {
			r.buf.WriteString("</blockquote>")
		}

	case *ast.CodeBlock, *ast.FencedCodeBlock:
		if entering {
			r.blockBreak(n)
			r.buf.WriteString("<pre>")
			r.writeLines(n.Lines())
			r.buf.WriteString("</pre>")
		}
		return ast.WalkSkipChildren, nil

	case *ast.HTMLBlock:
		if entering {
			r.blockBreak(n)
			r.writeLines(n.Lines())
			if node.HasClosure() {
				r.buf.WriteString(Escape(string(node.ClosureLine.Value(r.source))))
			}
		}
		return ast.WalkSkipChildren, nil

	case *ast.List:
		if entering {
			r.blockBreak(n)
			r.lists = append(r.lists, listState{ordered: node.IsOrdered(), next: node.Start})
		} else {
			r.lists = r.lists[:len(r.lists)-1]
		}

	case *ast.ListItem:
		if entering && len(r.lists) > 0 {
			if n.PreviousSibling() != nil {
				r.buf.WriteByte('\n')
			}
			depth := len(r.lists) - 1
			r.buf.WriteString(strings.Repeat("  ", depth))
			top := &r.lists[depth]
			if top.ordered {
				r.buf.WriteString(strconv.Itoa(top.next) + ". ")
				top.next++
			} else {
				r.buf.WriteString("• ")
			}
		}

	case *ast.Text:
		if entering {
			r.buf.WriteString(Escape(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.buf.WriteByte('\n')
			}
		}

	case *ast.String:
		if entering {
			r.buf.WriteString(Escape(string(node.Value)))
		}

	case *ast.Emphasis:
		tag := "i"
		if node.Level >= 2 {
			tag = "b"
		}
		r.tag(tag, entering)

	case *east.Strikethrough:
		r.tag("s", entering)

	case *ast.CodeSpan:
		r.tag("code", entering)

	case *ast.Link:
		r.link(string(node.Destination), entering)

	case *ast.Image:
		r.link(string(node.Destination), entering)

	case *ast.AutoLink:
		if entering {
			url := string(node.URL(r.source))
			r.buf.WriteString(`<a href="` + attrEscaper.Replace(url) + `">`)
			r.buf.WriteString(Escape(string(node.Label(r.source))))
			r.buf.WriteString("</a>")
		}
		return ast.WalkSkipChildren, nil

	case *ast.RawHTML:
		if entering {
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				r.buf.WriteString(Escape(string(seg.Value(r.source))))
			}
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *renderer) tag(name string, entering bool) {
	if entering {
		r.buf.WriteString("<" + name + ">")
	} else {
		r.buf.WriteString("</" + name + ">")
	}
}

func (r *renderer) link(dest string, entering bool) {
	if entering {
		r.buf.WriteString(`<a href="` + attrEscaper.Replace(dest) + `">`)
	} else {
		r.buf.WriteString("</a>")
	}
}
