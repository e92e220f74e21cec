package scaffold

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/paperx/internal/config"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/logfields"
)

// NewOptions describe a workspace to create.
type NewOptions struct {
	Dir         string
	Template    string
	Title       string
	Author      string
	Affiliation string
	Keywords    string
	Abstract    string
	InitGit     bool
}

type paperData struct {
	Title       string
	Author      string
	Affiliation string
	Keywords    string
	Abstract    string
	OutputDir   string
}

// New creates a paper workspace at opts.Dir. The directory must not exist.
func New(opts NewOptions) error {
	if opts.Template == "" {
		opts.Template = TemplateArticleEN
	}
	if !ValidTemplate(opts.Template) {
		return perrors.ValidationFailed("template", fmt.Sprintf("unknown template %q (expected one of %v)", opts.Template, Templates))
	}
	if _, err := os.Stat(opts.Dir); err == nil {
		return perrors.New(perrors.CategoryValidation, perrors.SeverityError,
			fmt.Sprintf("directory %q already exists", opts.Dir)).WithContext("path", opts.Dir)
	}

	// metadata is stored in NFC
	for _, f := range []*string{&opts.Title, &opts.Author, &opts.Affiliation, &opts.Keywords, &opts.Abstract} {
		*f = norm.NFC.String(*f)
	}

	cfg := config.Default()
	cfg.Engine = templateEngine[opts.Template]
	cfg.Title = opts.Title
	cfg.Author = opts.Author
	cfg.Affiliation = opts.Affiliation
	cfg.Keywords = opts.Keywords
	cfg.Abstract = opts.Abstract

	data := paperData{
		Title:       opts.Title,
		Author:      opts.Author,
		Affiliation: opts.Affiliation,
		Keywords:    opts.Keywords,
		Abstract:    opts.Abstract,
		OutputDir:   cfg.OutputDir,
	}

	files := []struct {
		path     string
		template string
		static   string
	}{
		{path: ".gitignore", template: "gitignore.tmpl"},
		{path: "README.md", template: "README.md.tmpl"},
		{path: cfg.MainTex, template: opts.Template + ".tex.tmpl"},
		{path: filepath.Join(filepath.Dir(cfg.MainTex), "sections", "introduction.tex"), static: "introduction.tex"},
		{path: filepath.Join("bib", "references.bib"), static: "references.bib"},
	}
	for _, f := range files {
		var content []byte
		var err error
		if f.static != "" {
			content, err = staticFile(f.static)
		} else {
			content, err = render(f.template, data)
		}
		if err != nil {
			return perrors.InternalError("render workspace file", err)
		}
		if err := writeFile(filepath.Join(opts.Dir, f.path), content); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Join(opts.Dir, "figures"), 0o755); err != nil {
		return perrors.IOError("create figures directory", opts.Dir, err)
	}
	cfgPath := filepath.Join(opts.Dir, config.DefaultFileName)
	if err := config.Save(cfgPath, cfg); err != nil {
		return perrors.IOError("write config", cfgPath, err)
	}

	if opts.InitGit {
		if err := initRepository(opts.Dir, opts.Author); err != nil {
			return err
		}
	}
	slog.Info("Created paper workspace", logfields.Path(opts.Dir), slog.String("template", opts.Template))
	return nil
}

// initRepository initialises a git repository and commits the skeleton.
func initRepository(dir, author string) error {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return nil
		}
		return perrors.IOError("git init", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return perrors.IOError("git worktree", dir, err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return perrors.IOError("git add", dir, err)
	}
	if author == "" {
		author = "paperx"
	}
	_, err = wt.Commit("Create paper workspace", &git.CommitOptions{
		Author: &object.Signature{Name: author, Email: "paperx@localhost", When: time.Now()},
	})
	if err != nil {
		return perrors.IOError("git commit", dir, err)
	}
	return nil
}

func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perrors.IOError("create directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return perrors.IOError("write file", path, err)
	}
	return nil
}
