package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/spabuild/cmd/spabuild/commands"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("spabuild"),
		kong.Description("Build, stage and watch single-page app bundles for deployment pipelines."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	if err := parser.Run(global, &cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
