package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Mode string `short:"m" help:"Build mode (development|production)" default:"production"`
	StrictFlags
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	mode, err := parseMode(b.Mode)
	if err != nil {
		return err
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	o, release := newOrchestrator(root, cfg, b.Resolve(cfg), metrics.NoopRecorder{})
	defer release()

	res, err := o.TriggerBuild(ctx, mode, false)
	if err != nil {
		return err
	}
	return outcomeErr(res)
}

func parseMode(raw string) (bundler.Mode, error) {
	mode, ok := bundler.ParseMode(raw)
	if !ok {
		return "", ferrors.InvalidConfig(fmt.Sprintf("invalid mode %q (want development or production)", raw)).Build()
	}
	return mode, nil
}
