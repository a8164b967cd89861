// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// RenderHTML converts a Markdown report to HTML. Tables, fenced code and
// hard line breaks are enabled; links open in a new tab.
func RenderHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}
