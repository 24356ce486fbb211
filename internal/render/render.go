// Package render turns note content (Markdown) into a sanitised HTML preview.
package render

import (
	"html"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("pre", "code")
	p.AllowAttrs("class").OnElements("code", "pre")
	return p
}

// Markdown renders content to HTML and strips anything unsafe. The parser
// and renderer are not reusable, so each call builds its own.
func Markdown(content string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(content))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	return string(policy.SanitizeBytes(markdown.Render(doc, renderer)))
}

// Document wraps a rendered note in a minimal standalone HTML page.
func Document(title, content string) string {
	t := html.EscapeString(title)
	return "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"UTF-8\">\n<title>" + t +
		"</title>\n</head>\n<body>\n<article>\n<h1>" + t + "</h1>\n" +
		Markdown(content) + "</article>\n</body>\n</html>\n"
}
