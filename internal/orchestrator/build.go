package orchestrator

import (
	"context"
	"fmt"
	"reposync/internal/config"
	"reposync/internal/gitx"
	"reposync/internal/inventory"
	"reposync/internal/remote"
	"reposync/internal/report"
	"reposync/internal/syncer"
)

// FromConfig wires the production collaborators for cfg. The configuration
// is validated first so nothing is touched when credentials are missing.
func FromConfig(cfg *config.Config, reporter report.Reporter, recorder Recorder) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := remote.New(cfg.APIURL, cfg.GitHubUser, cfg.GitHubToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}

	runner := gitx.NewCLIRunner()
	puller := syncer.NewPuller(runner, syncer.WithFailClosedDetection(cfg.FailClosedDetection))
	pusher := syncer.NewPusher(runner, puller, cfg.CommitMessageFor)
	creds := gitx.Credentials{Username: cfg.GitHubUser, Token: cfg.GitHubToken}

	return New(Options{
		SearchDirs:  cfg.SearchDirs,
		DeleteEmpty: cfg.DeleteEmptyRepos,
		DryRun:      cfg.DryRun,
		Workers:     cfg.Workers,
		LockPath:    cfg.LockPath,
	}, Deps{
		Remote:  client,
		Scanner: inventory.NewScanner(cfg.Exclude),
		Puller:  puller,
		Pusher:  pusher,
		Clone: func(ctx context.Context, url, dir string) error {
			return gitx.Clone(ctx, url, dir, creds)
		},
		Inspect:  gitx.Inspect,
		Reporter: reporter,
		Recorder: recorder,
	}), nil
}
