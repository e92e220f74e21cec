package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/paperx/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" default:"20" help:"Number of builds to show"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	store, err := history.NewSQLiteStore(cfg.Resolve(cfg.History.Path))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	out := g.stdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No builds recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FINISHED\tTRIGGER\tENGINE\tSTATUS\tPASSES\tDURATION\tDETAIL")
	for _, e := range entries {
		status, detail := "ok", e.ArtifactPath
		if !e.Success {
			status, detail = "failed", e.Message
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%dms\t%s\n",
			e.FinishedAt.Local().Format("2006-01-02 15:04:05"), e.Trigger, e.Engine, status, e.PassesRun, e.DurationMS, detail)
	}
	return tw.Flush()
}
