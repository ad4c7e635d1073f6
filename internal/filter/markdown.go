package filter

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// renderMarkdown converts one HTML node tree to markdown. It covers the
// structures that actually occur in legal documents: headings, paragraphs,
// links, emphasis, lists, blockquotes, code, horizontal rules and table rows
// (one pipe-separated line per row). Everything else contributes its text
// content.
func renderMarkdown(node *html.Node) string {
	var b strings.Builder
	renderBlock(&b, node, "")
	return b.String()
}

func renderBlock(b *strings.Builder, n *html.Node, listIndent string) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(inlineSpace(n.Data))
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Iframe:
		return

	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " " + inlineText(n) + "\n\n")

	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.Header, atom.Footer:
		b.WriteString("\n\n")
		renderChildren(b, n, listIndent)
		b.WriteString("\n\n")

	case atom.Br:
		b.WriteString("\n")

	case atom.Hr:
		b.WriteString("\n\n---\n\n")

	case atom.A:
		text := inlineText(n)
		href := attr(n, "href")
		if href == "" || text == "" {
			b.WriteString(text)
		} else {
			fmt.Fprintf(b, "[%s](%s)", text, href)
		}

	case atom.Strong, atom.B:
		if text := inlineText(n); text != "" {
			b.WriteString("**" + text + "**")
		}

	case atom.Em, atom.I:
		if text := inlineText(n); text != "" {
			b.WriteString("*" + text + "*")
		}

	case atom.Code:
		if text := inlineText(n); text != "" {
			b.WriteString("`" + text + "`")
		}

	case atom.Pre:
		b.WriteString("\n\n```\n" + rawText(n) + "\n```\n\n")

	case atom.Blockquote:
		var inner strings.Builder
		renderChildren(&inner, n, listIndent)
		for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
			b.WriteString("\n> " + strings.TrimSpace(line))
		}
		b.WriteString("\n\n")

	case atom.Ul, atom.Ol:
		b.WriteString("\n\n")
		ordered := n.DataAtom == atom.Ol
		index := 1
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom != atom.Li {
				continue
			}
			marker := "- "
			if ordered {
				marker = fmt.Sprintf("%d. ", index)
				index++
			}
			var item strings.Builder
			renderChildren(&item, c, listIndent+"  ")
			b.WriteString(listIndent + marker + strings.TrimSpace(item.String()) + "\n")
		}
		b.WriteString("\n")

	case atom.Tr:
		var cells []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom == atom.Td || c.DataAtom == atom.Th {
				cells = append(cells, inlineText(c))
			}
		}
		if len(cells) > 0 {
			b.WriteString("\n| " + strings.Join(cells, " | ") + " |")
		}

	case atom.Table:
		renderChildren(b, n, listIndent)
		b.WriteString("\n\n")

	default:
		renderChildren(b, n, listIndent)
	}
}

func renderChildren(b *strings.Builder, n *html.Node, listIndent string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderBlock(b, c, listIndent)
	}
}

// inlineText flattens a node to collapsed plain text, keeping nested inline
// markup out. Used where markdown forbids block structure (headings, links).
func inlineText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(collapseSpace(b.String()))
}

// rawText keeps whitespace verbatim, for preformatted blocks.
func rawText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Trim(b.String(), "\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// inlineSpace collapses internal whitespace but keeps one boundary space so
// text flows correctly around inline siblings ("Hello <b>world</b>").
func inlineSpace(s string) string {
	collapsed := collapseSpace(s)
	if collapsed == "" {
		return ""
	}
	if s[0] == ' ' || s[0] == '\n' || s[0] == '\t' || s[0] == '\r' {
		collapsed = " " + collapsed
	}
	last := s[len(s)-1]
	if last == ' ' || last == '\n' || last == '\t' || last == '\r' {
		collapsed += " "
	}
	return collapsed
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
