package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/cache"
	"github.com/skillmesh/skillmesh/pkg/config"
	"github.com/skillmesh/skillmesh/pkg/executor"
	"github.com/skillmesh/skillmesh/pkg/gitsync"
	"github.com/skillmesh/skillmesh/pkg/logger"
	"github.com/skillmesh/skillmesh/pkg/manager"
	"github.com/skillmesh/skillmesh/pkg/parser"
	"github.com/skillmesh/skillmesh/pkg/registry"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// buildManager assembles the engine from configuration. The returned
// cleanup releases the cache store and is safe to call when nil components
// were configured.
func buildManager(ctx context.Context, cfg *config.Config) (*manager.Manager, func(), error) {
	cleanup := func() {}

	if err := cfg.Validate(); err != nil {
		return nil, cleanup, err
	}

	reg := registry.New()

	var parserOpts []parser.Option
	if cfg.Overrides != "" {
		parserOpts = append(parserOpts, parser.WithOverridesFile(cfg.Overrides))
	}
	p, err := parser.New(parserOpts...)
	if err != nil {
		return nil, cleanup, errors.Wrap(err, "failed to create parser")
	}

	var managerOpts []manager.Option

	if cfg.Repository.URL != "" {
		syncer := gitsync.New(cfg.Repository.URL, cfg.RepoWorkDir(),
			gitsync.WithBranch(cfg.Repository.Branch),
			gitsync.WithTimeouts(cfg.Repository.CloneTimeout, cfg.Repository.FetchTimeout))
		managerOpts = append(managerOpts, manager.WithSyncController(syncer))
		reg.AddSource(skilltypes.SourceDescriptor{
			Type:     skilltypes.SourceTypeGit,
			URL:      cfg.Repository.URL,
			Branch:   cfg.Repository.Branch,
			Priority: 1,
		})
	}

	if cfg.LocalDir != "" {
		managerOpts = append(managerOpts, manager.WithLocalDir(cfg.LocalDir))
		// local skills shadow same-named repository skills
		reg.AddSource(skilltypes.SourceDescriptor{
			Type:     skilltypes.SourceTypeLocal,
			Path:     cfg.LocalDir,
			Priority: 2,
		})
	}

	store, err := cache.NewStore(ctx, cfg.CachePath())
	if err != nil {
		logger.G(ctx).WithError(err).Warn("snapshot cache unavailable, continuing without it")
	} else {
		managerOpts = append(managerOpts, manager.WithCacheStore(store, cfg.CacheMaxAge))
		cleanup = func() { store.Close() }
	}

	mgr := manager.New(reg, executor.New(reg), p, managerOpts...)
	return mgr, cleanup, nil
}
