// Package htmltext turns HTML notification bodies into the plain text the
// field extractor works on.
package htmltext

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Mode selects how HTML is turned into text.
type Mode string

const (
	// ModeText keeps only the visible text, with entities decoded.
	ModeText Mode = "text"

	// ModeMarkdown converts the document to Markdown.
	ModeMarkdown Mode = "markdown"

	// ModeAuto behaves like ModeText for content that looks like HTML and
	// leaves anything else untouched, so "Name <a@b.c>" survives in plain
	// text bodies.
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode name. An empty name selects ModeText.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeText:
		return ModeText, nil
	case ModeMarkdown:
		return ModeMarkdown, nil
	case ModeAuto:
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown html mode %q (want text, markdown or auto)", s)
	}
}

// wideWhitespacePattern matches runs of five or more whitespace characters,
// which form mailers use to lay fields out in columns.
var wideWhitespacePattern = regexp.MustCompile(`\s{5,}`)

// CollapseWideWhitespace replaces runs of five or more whitespace characters
// with a single line break.
func CollapseWideWhitespace(s string) string {
	return wideWhitespacePattern.ReplaceAllString(s, "\n")
}

// Convert turns an HTML document into text using the given mode.
func Convert(document string, mode Mode) (string, error) {
	switch mode {
	case "", ModeText:
		return ToText(document)
	case ModeMarkdown:
		return ToMarkdown(document)
	case ModeAuto:
		if !IsHTML(document) {
			return document, nil
		}
		return ToText(document)
	default:
		return "", fmt.Errorf("unknown html mode %q", mode)
	}
}

// htmlMarkupPattern matches the tags that mark a body as HTML rather than
// plain text that happens to contain angle brackets.
var htmlMarkupPattern = regexp.MustCompile(`(?i)<(?:!doctype|html|head|body|p|br|div|span|table|tr|td|strong|b|a)[\s>/]`)

// IsHTML reports whether content contains common HTML markup.
func IsHTML(content string) bool {
	return htmlMarkupPattern.MatchString(content)
}

// ToMarkdown converts an HTML document to Markdown.
func ToMarkdown(document string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(document)
	if err != nil {
		return "", fmt.Errorf("converting HTML to Markdown: %w", err)
	}
	return markdown, nil
}

// skippedElements never contribute visible text.
var skippedElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
}

// blockElements end the current line of text.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "div": true, "dl": true, "dt": true, "fieldset": true,
	"figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "pre": true, "section": true, "table": true,
	"tbody": true, "thead": true, "tfoot": true, "tr": true, "ul": true,
}

// ToText returns the visible text of an HTML document. Character references
// are decoded, block elements and <br> end a line, and table cells are
// separated by a space.
func ToText(document string) (string, error) {
	root, err := html.Parse(strings.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "br" {
				sb.WriteString("\n")
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch {
			case blockElements[n.Data]:
				sb.WriteString("\n")
			case n.Data == "td" || n.Data == "th":
				sb.WriteString(" ")
			}
		}
	}
	walk(root)

	return sb.String(), nil
}
