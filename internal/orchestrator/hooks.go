package orchestrator

import (
	"context"
	"sort"

	"git.home.luguber.info/inful/spabuild/internal/bundler"
	ferrors "git.home.luguber.info/inful/spabuild/internal/foundation/errors"
	"git.home.luguber.info/inful/spabuild/internal/logfields"
)

// Trigger is what a lifecycle hook asks for.
type Trigger struct {
	Mode  bundler.Mode
	Watch bool
}

// Hooks maps deployment lifecycle events to build triggers.
var Hooks = map[string]Trigger{
	"before:package:createDeploymentArtifacts": {Mode: bundler.ModeProduction},
	"before:deploy:function:packageFunction":   {Mode: bundler.ModeProduction},
	"before:invoke:local:invoke":               {Mode: bundler.ModeDevelopment},
	"before:run:run":                           {Mode: bundler.ModeDevelopment},
	"before:offline:start":                     {Mode: bundler.ModeDevelopment, Watch: true},
	"before:offline:start:init":                {Mode: bundler.ModeDevelopment, Watch: true},
	"before:step-functions-offline:start":      {Mode: bundler.ModeDevelopment, Watch: true},
	"spabuild:compile":                         {Mode: bundler.ModeProduction},
	"spabuild:compile:watch":                   {Mode: bundler.ModeDevelopment, Watch: true},
}

// HookNames lists the known hooks in sorted order.
func HookNames() []string {
	names := make([]string, 0, len(Hooks))
	for name := range Hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch triggers the build registered for hook.
func (o *Orchestrator) Dispatch(ctx context.Context, hook string) (Result, error) {
	trig, ok := Hooks[hook]
	if !ok {
		return Result{}, ferrors.ValidationError("unknown lifecycle hook").
			WithContext("hook", hook).
			Build()
	}
	o.logger.Info("Lifecycle hook received", logfields.Hook(hook), logfields.Mode(string(trig.Mode)))
	return o.TriggerBuild(ctx, trig.Mode, trig.Watch)
}
