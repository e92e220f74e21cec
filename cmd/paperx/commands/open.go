package commands

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/paperx/internal/artifact"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
)

// OpenCmd implements the 'open' command.
type OpenCmd struct {
	Outdir string `short:"o" help:"Output directory (overrides output_dir)"`
}

func (o *OpenCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	rec, err := outputManager(cfg, o.Outdir).Current()
	if errors.Is(err, artifact.ErrNoArtifact) {
		return perrors.New(perrors.CategoryValidation, perrors.SeverityError, "no artifact yet; run paperx build first")
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "Opening %s\n", rec.Path)
	return g.opener().Open(rec.Path)
}
