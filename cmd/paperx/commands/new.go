package commands

import (
	"fmt"

	"git.home.luguber.info/inful/paperx/internal/scaffold"
)

// NewCmd implements the 'new' command.
type NewCmd struct {
	Name        string `arg:"" help:"Directory name for the new paper"`
	Template    string `enum:"article-en,ltjs-ja" default:"article-en" help:"Template to use (article-en|ltjs-ja)"`
	Title       string `default:"Untitled Paper" help:"Paper title"`
	Author      string `default:"First Last" help:"Author name"`
	Affiliation string `default:"Affiliation" help:"Affiliation line"`
	Keywords    string `default:"keyword1, keyword2" help:"Comma-separated keywords"`
	Abstract    string `default:"This is the abstract." help:"Abstract text"`
	Git         bool   `negatable:"" default:"true" help:"Initialise a git repository with the skeleton committed"`
}

func (n *NewCmd) Run(g *Global, _ *CLI) error {
	err := scaffold.New(scaffold.NewOptions{
		Dir:         n.Name,
		Template:    n.Template,
		Title:       n.Title,
		Author:      n.Author,
		Affiliation: n.Affiliation,
		Keywords:    n.Keywords,
		Abstract:    n.Abstract,
		InitGit:     n.Git,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "Created paper workspace at %q.\nNext:\n  cd %s\n  paperx build --open\n", n.Name, n.Name)
	return nil
}
