package commands

import (
	"context"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/spabuild/internal/metrics"
)

// HookCmd implements the 'hook' command, the entry point deployment
// frameworks call from their lifecycle events.
type HookCmd struct {
	Event string `arg:"" help:"Lifecycle event name (e.g. before:package:createDeploymentArtifacts)"`
	StrictFlags
}

func (h *HookCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	o, release := newOrchestrator(root, cfg, h.Resolve(cfg), metrics.NoopRecorder{})
	defer release()

	res, err := o.Dispatch(ctx, h.Event)
	if err != nil {
		return err
	}
	if res.Watching {
		return awaitSession(ctx, o)
	}
	return outcomeErr(res)
}
