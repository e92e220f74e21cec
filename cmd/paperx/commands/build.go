package commands

import (
	"context"
	"os/signal"
	"syscall"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Engine string `short:"e" help:"Engine to use; no fallback when set (tectonic|latexmk|pdflatex|lualatex|xelatex)"`
	Outdir string `short:"o" help:"Output directory (overrides output_dir)"`
	Open   bool   `help:"Open the PDF after a successful build"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	session, err := prepareBuild(g, cfg, b.Engine, b.Outdir, "build")
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := session.pipeline.Run(ctx, session.request)
	if err != nil {
		return err
	}
	printResult(g.stdout(), res)
	if !res.Success {
		return res.Err()
	}
	if b.Open {
		return g.opener().Open(res.ArtifactPath)
	}
	return nil
}
