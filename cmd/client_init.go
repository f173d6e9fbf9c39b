package main

import (
	"github.com/rotisserie/eris"

	"github.com/AnthusAI/plexus-dashboard/internal/batchjob"
	"github.com/AnthusAI/plexus-dashboard/internal/dispatch"
	"github.com/AnthusAI/plexus-dashboard/internal/resolve"
	"github.com/AnthusAI/plexus-dashboard/internal/spool"
	"github.com/AnthusAI/plexus-dashboard/internal/store"
	"github.com/AnthusAI/plexus-dashboard/pkg/gateway"
)

// clientEnv holds the initialized gateway, stores, and the core components
// needed by the score/batch/serve commands.
type clientEnv struct {
	Remote      *store.Remote
	Dispatcher  *dispatch.Dispatcher
	Coordinator *batchjob.Coordinator
	Resolver    *resolve.Cache
	Spool       *spool.Spool
}

// Close flushes the dispatcher and releases the spool. Safe to defer.
func (ce *clientEnv) Close() {
	if ce.Dispatcher != nil {
		_ = ce.Dispatcher.Close()
	}
	if ce.Spool != nil {
		_ = ce.Spool.Close()
	}
}

// initClient wires the gateway, record stores, identifier cache,
// dispatcher, and coordinator from configuration. Callers should defer
// env.Close().
func initClient() (*clientEnv, error) {
	if cfg.Gateway.Endpoint == "" {
		return nil, eris.New("gateway.endpoint is required")
	}
	if cfg.Gateway.APIKey == "" {
		return nil, eris.New("gateway.api_key is required")
	}

	gw := gateway.NewClient(cfg.Gateway.Endpoint, cfg.Gateway.APIKey,
		gateway.WithRateLimit(cfg.Gateway.RateLimit))
	remote := store.New(gw)

	sp, err := spool.Open(cfg.Dispatch.SpoolPath)
	if err != nil {
		return nil, err
	}

	ids := resolve.New(remote.Identifiers, resolve.WithTTL(cfg.Resolve.TTL()))

	dispatcher := dispatch.New(remote.ScoreResults,
		dispatch.WithPollInterval(cfg.Dispatch.PollInterval()),
		dispatch.WithQueueCapacity(cfg.Dispatch.QueueCapacity),
		dispatch.WithJoinTimeout(cfg.Dispatch.JoinTimeout()),
		dispatch.WithSpool(sp))

	coordinator := batchjob.New(remote.ScoringJobs, remote.BatchJobs, remote.Links, ids)

	return &clientEnv{
		Remote:      remote,
		Dispatcher:  dispatcher,
		Coordinator: coordinator,
		Resolver:    ids,
		Spool:       sp,
	}, nil
}
