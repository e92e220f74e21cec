package commands

import (
	"fmt"

	"git.home.luguber.info/inful/paperx/internal/scaffold"
)

// AddCmd groups the 'add' subcommands.
type AddCmd struct {
	Section AddSectionCmd `cmd:"" help:"Create a section file and include it from the main document"`
	Figure  AddFigureCmd  `cmd:"" help:"Copy an image to figures/ and print a LaTeX snippet"`
}

// AddSectionCmd implements 'add section'.
type AddSectionCmd struct {
	Name string `arg:"" help:"Section slug, e.g. related-work"`
}

func (a *AddSectionCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	path, err := scaffold.AddSection(cfg.MainDocumentPath(), a.Name)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "Added section: %s\n", path)
	return nil
}

// AddFigureCmd implements 'add figure'.
type AddFigureCmd struct {
	Path    string `arg:"" help:"Path to an existing image (png, jpg, pdf, ...)"`
	Label   string `help:"LaTeX label (default fig:<file name>)"`
	Caption string `help:"Figure caption"`
}

func (a *AddFigureCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	dst, snippet, err := scaffold.AddFigure(cfg.Root(), scaffold.FigureOptions{
		Source:  a.Path,
		Label:   a.Label,
		Caption: a.Caption,
	})
	if err != nil {
		return err
	}
	out := g.stdout()
	_, _ = fmt.Fprintf(out, "LaTeX snippet to include (copy into a section):\n\n%s\n", snippet)
	_, _ = fmt.Fprintf(out, "Copied to %s\n", dst)
	return nil
}
