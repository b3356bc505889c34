package syncer

import (
	"context"
	"reposync/internal/model"
)

// RepoPuller brings one working tree up to date with its upstream.
type RepoPuller interface {
	Pull(ctx context.Context, path string) model.PullResult
}

// RepoPusher publishes the local changes of one working tree.
type RepoPusher interface {
	Push(ctx context.Context, path string) model.PushResult
}

var (
	_ RepoPuller = (*Puller)(nil)
	_ RepoPusher = (*Pusher)(nil)
)
