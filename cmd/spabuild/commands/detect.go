package commands

import (
	"fmt"
	"sort"
	"strings"

	"git.home.luguber.info/inful/spabuild/internal/metrics"
	"git.home.luguber.info/inful/spabuild/internal/stage"
)

// DetectCmd implements the 'detect' command.
type DetectCmd struct {
	Mode string `short:"m" help:"Mode to resolve the configuration for" default:"production"`
}

func (d *DetectCmd) Run(g *Global, root *CLI) error {
	mode, err := parseMode(d.Mode)
	if err != nil {
		return err
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	o, release := newOrchestrator(root, cfg, false, metrics.NoopRecorder{})
	defer release()

	_, bc, err := o.Prepare(mode)
	if err != nil {
		return err
	}
	plan, err := stage.NewPlan(bc, cfg.Staging)
	if err != nil {
		return err
	}

	out := g.Out
	_, _ = fmt.Fprintf(out, "backend:     %s\n", bc.Backend)
	_, _ = fmt.Fprintf(out, "mode:        %s\n", bc.Mode)
	_, _ = fmt.Fprintf(out, "entry:       %s\n", strings.Join(bc.EntryPoints, ", "))
	_, _ = fmt.Fprintf(out, "source_root: %s\n", bc.SourceRoot)
	_, _ = fmt.Fprintf(out, "public_root: %s\n", bc.PublicRoot)
	_, _ = fmt.Fprintf(out, "output_dir:  %s\n", bc.OutputDir)
	if bc.ConfigFile != "" {
		_, _ = fmt.Fprintf(out, "config_file: %s\n", bc.ConfigFile)
	}
	if bc.ShellFile != "" {
		_, _ = fmt.Fprintf(out, "shell_file:  %s\n", bc.ShellFile)
	}
	keys := make([]string, 0, len(bc.Define))
	for k := range bc.Define {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(out, "define:      %s=%s\n", k, bc.Define[k])
	}
	for _, t := range plan.Triples {
		_, _ = fmt.Fprintf(out, "stage:       %s (%s)\n", t.Destination, t.Reason)
	}
	return nil
}
