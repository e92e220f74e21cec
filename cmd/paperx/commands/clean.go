package commands

import "fmt"

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Outdir string `short:"o" help:"Output directory (overrides output_dir)"`
}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	mgr := outputManager(cfg, c.Outdir)
	if err := mgr.Clean(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.stdout(), "Cleaned %s\n", mgr.OutputDir())
	return nil
}
