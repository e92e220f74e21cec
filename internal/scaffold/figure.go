package scaffold

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

// FigureOptions describe a figure to add.
type FigureOptions struct {
	Source  string
	Label   string
	Caption string
}

// AddFigure copies the image into <root>/figures and returns the LaTeX
// snippet that includes it.
func AddFigure(root string, opts FigureOptions) (dst string, snippet string, err error) {
	st, err := os.Stat(opts.Source)
	if err != nil || st.IsDir() {
		return "", "", perrors.ValidationFailed("path", fmt.Sprintf("figure not found: %s", opts.Source))
	}
	file := filepath.Base(opts.Source)
	dst = filepath.Join(root, "figures", file)

	if err := copyFile(opts.Source, dst); err != nil {
		return "", "", err
	}
	out, err := FigureSnippet(file, opts.Label, opts.Caption)
	if err != nil {
		return "", "", err
	}
	return dst, out, nil
}

// FigureSnippet renders the figure environment for figures/<file>.
func FigureSnippet(file, label, caption string) (string, error) {
	if label == "" {
		label = "fig:" + strings.TrimSuffix(file, filepath.Ext(file))
	}
	if caption == "" {
		caption = "Caption here."
	}
	out, err := render("figure.tex.tmpl", struct{ File, Label, Caption string }{file, label, caption})
	if err != nil {
		return "", perrors.InternalError("render figure snippet", err)
	}
	return string(out), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return perrors.IOError("create figures directory", filepath.Dir(dst), err)
	}
	in, err := os.Open(src)
	if err != nil {
		return perrors.IOError("open figure", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return perrors.IOError("create figure", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return perrors.IOError("copy figure", dst, err)
	}
	if err := out.Close(); err != nil {
		return perrors.IOError("copy figure", dst, err)
	}
	return nil
}
