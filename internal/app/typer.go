package app

import (
	"context"
	"encoding/json"

	"github.com/mdobak/go-xerrors"

	"github.com/ayusman/verovision/internal/plugin"
	"github.com/ayusman/verovision/pkg/logger"
)

// pluginRunner executes one output plugin request.
type pluginRunner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// CommitTyper sends every committed character to an output plugin. It runs on
// its own goroutine behind a hub commit subscription, so a slow plugin only
// delays typing, never the frame loop, and no commit is skipped.
type CommitTyper struct {
	plugin *plugin.Plugin
	runner pluginRunner
	log    logger.Logger
}

// NewCommitTyper creates a typer for an output plugin.
func NewCommitTyper(p *plugin.Plugin, runner pluginRunner) *CommitTyper {
	return &CommitTyper{
		plugin: p,
		runner: runner,
		log:    logger.Named("typer"),
	}
}

// Run consumes updates until the channel closes or ctx ends.
func (t *CommitTyper) Run(ctx context.Context, updates <-chan Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Committed == "" {
				continue
			}
			t.typeText(ctx, u)
		}
	}
}

func (t *CommitTyper) typeText(ctx context.Context, u Update) {
	params, err := json.Marshal(map[string]string{"text": u.Committed})
	if err != nil {
		return
	}

	resp, err := t.runner.Execute(ctx, t.plugin, &plugin.Request{
		Action: "type",
		Label:  string(u.Label),
		Params: params,
	})
	switch {
	case err != nil:
		t.log.Warn(ctx, "output plugin failed",
			logger.String("plugin", t.plugin.Manifest.Name), logger.Error(xerrors.New(err)))
	case !resp.Success:
		t.log.Warn(ctx, "output plugin rejected commit",
			logger.String("plugin", t.plugin.Manifest.Name), logger.String("reason", resp.Error))
	default:
		t.log.Debug(ctx, "commit typed", logger.String("label", string(u.Label)))
	}
}
