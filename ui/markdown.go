package ui

import (
	"fmt"
	"html/template"
	"io/fs"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"oncodetect/domain/view"
)

// infoPages maps the static information pages to their markdown source
var infoPages = map[view.Page]string{
	view.PageHome:       "content/home.md",
	view.PageHowItWorks: "content/how-it-works.md",
	view.PageClinicians: "content/clinicians.md",
	view.PageResearch:   "content/research.md",
}

// renderInfoPages converts the embedded markdown pages to HTML once at startup
func renderInfoPages(files fs.FS) (map[view.Page]template.HTML, error) {
	out := make(map[view.Page]template.HTML, len(infoPages))
	for page, path := range infoPages {
		src, err := fs.ReadFile(files, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out[page] = renderMarkdown(src)
	}
	return out, nil
}

// renderMarkdown renders trusted, embedded markdown. Service output is never
// passed through here.
func renderMarkdown(src []byte) template.HTML {
	// parsers are stateful, one per document
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(markdown.ToHTML(src, p, renderer))
}
