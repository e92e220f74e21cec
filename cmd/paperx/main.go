package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/paperx/cmd/paperx/commands"
	"git.home.luguber.info/inful/paperx/internal/build"
	"git.home.luguber.info/inful/paperx/internal/engine"
	perrors "git.home.luguber.info/inful/paperx/internal/errors"
	"git.home.luguber.info/inful/paperx/internal/opener"
	"git.home.luguber.info/inful/paperx/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("paperx"),
		kong.Description("LaTeX paper toolkit: scaffold, build, and watch papers."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	globals := &commands.Global{
		Stdout: os.Stdout,
		Opener: opener.System{},
		Prober: engine.PathProber{},
		Runner: build.ExecRunner{},
	}
	err := parser.Run(globals, cli)
	perrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
}
