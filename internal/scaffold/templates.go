package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"slices"
	"text/template"
)

//go:embed templates/*
var templateFS embed.FS

// Template names accepted by New.
const (
	TemplateArticleEN = "article-en"
	TemplateLtjsJA    = "ltjs-ja"
)

// Templates lists the bundled paper templates.
var Templates = []string{TemplateArticleEN, TemplateLtjsJA}

// templateEngine maps a paper template to the engine it is written for.
var templateEngine = map[string]string{
	TemplateArticleEN: "tectonic",
	TemplateLtjsJA:    "lualatex",
}

var templates = template.Must(
	template.New("paperx").Delims("<<", ">>").ParseFS(templateFS, "templates/*.tmpl"),
)

func render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func staticFile(name string) ([]byte, error) {
	return templateFS.ReadFile("templates/" + name)
}

// ValidTemplate reports whether name is a bundled template.
func ValidTemplate(name string) bool {
	return slices.Contains(Templates, name)
}
