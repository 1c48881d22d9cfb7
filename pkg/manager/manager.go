// Package manager owns the assembled engine: registry, executor, parser,
// sync controller and cache store, wired together with an explicit
// lifecycle (construct, bootstrap, serve, close). It exposes the four
// boundary operations consumed by the transport adapters; every operation
// converts internal failures into typed results and never panics outward.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillmesh/skillmesh/pkg/cache"
	"github.com/skillmesh/skillmesh/pkg/executor"
	"github.com/skillmesh/skillmesh/pkg/gitsync"
	"github.com/skillmesh/skillmesh/pkg/logger"
	"github.com/skillmesh/skillmesh/pkg/parser"
	"github.com/skillmesh/skillmesh/pkg/registry"
	"github.com/skillmesh/skillmesh/pkg/telemetry"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

const defaultCacheMaxAge = 60 * time.Minute

// Manager wires the engine components together
type Manager struct {
	registry *registry.Registry
	executor *executor.Executor
	parser   *parser.Parser

	syncer      *gitsync.Controller
	cacheStore  *cache.Store
	localDir    string
	cacheMaxAge time.Duration
}

// Option configures a Manager
type Option func(*Manager)

// WithSyncController attaches the remote repository source
func WithSyncController(syncer *gitsync.Controller) Option {
	return func(m *Manager) {
		m.syncer = syncer
	}
}

// WithCacheStore attaches the snapshot store; maxAge bounds how old a
// snapshot may be before bootstrap falls back to a full ingest
func WithCacheStore(store *cache.Store, maxAge time.Duration) Option {
	return func(m *Manager) {
		m.cacheStore = store
		if maxAge > 0 {
			m.cacheMaxAge = maxAge
		}
	}
}

// WithLocalDir attaches a local skills directory source
func WithLocalDir(dir string) Option {
	return func(m *Manager) {
		m.localDir = dir
	}
}

// New assembles a manager around the given registry, executor and parser
func New(reg *registry.Registry, exec *executor.Executor, p *parser.Parser, opts ...Option) *Manager {
	m := &Manager{
		registry:    reg,
		executor:    exec,
		parser:      p,
		cacheMaxAge: defaultCacheMaxAge,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the underlying registry, primarily for tests and CLI
// listings
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// ListResult is the boundary shape of the list operation
type ListResult struct {
	Skills   []skilltypes.SkillSummary `json:"skills"`
	Total    int                       `json:"total"`
	LastSync *time.Time                `json:"lastSync,omitempty"`
}

// InvokeResult is the boundary shape of the invoke operation
type InvokeResult struct {
	Success         bool              `json:"success"`
	Content         string            `json:"content,omitempty"`
	Error           *skilltypes.Error `json:"-"`
	ExecutionTimeMs int64             `json:"executionTimeMs"`
}

// RefreshResult is the boundary shape of the refresh operation
type RefreshResult struct {
	Success       bool   `json:"success"`
	SkillsUpdated int    `json:"skillsUpdated"`
	SkillsAdded   int    `json:"skillsAdded"`
	SkillsRemoved int    `json:"skillsRemoved"`
	Message       string `json:"message"`
}

// ListSkills returns skill summaries narrowed by the optional source kind
// and filter text
func (m *Manager) ListSkills(ctx context.Context, filter string, source skilltypes.SourceKind) ListResult {
	var result ListResult
	telemetry.WithSpanFunc(ctx, "manager.list_skills", func(ctx context.Context) {
		result.Skills = m.executor.ListSkills(filter, source)
		result.Total = len(result.Skills)
		if last := m.registry.LastSync(); !last.IsZero() {
			result.LastSync = &last
		}
	}, attribute.String("filter", filter), attribute.String("source", string(source)))
	return result
}

// GetSkill returns the full skill record, or a coded error
func (m *Manager) GetSkill(ctx context.Context, id string) (*skilltypes.Skill, error) {
	var skill *skilltypes.Skill
	err := telemetry.WithSpan(ctx, "manager.get_skill", func(ctx context.Context) error {
		var err error
		skill, err = m.registry.GetSkill(id)
		return err
	}, attribute.String("skill_id", id))
	if err != nil {
		return nil, skilltypes.AsError(err)
	}
	return skill, nil
}

// InvokeSkill validates and renders the skill; failures come back as a
// structured result, never as a raw error
func (m *Manager) InvokeSkill(ctx context.Context, id string, values map[string]any) InvokeResult {
	start := time.Now()
	var result InvokeResult

	telemetry.WithSpanFunc(ctx, "manager.invoke_skill", func(ctx context.Context) {
		invocation, err := m.executor.InvokeSkill(ctx, id, values)
		if err != nil {
			result = InvokeResult{
				Success:         false,
				Error:           skilltypes.AsError(err),
				ExecutionTimeMs: time.Since(start).Milliseconds(),
			}
			return
		}
		result = InvokeResult{
			Success:         true,
			Content:         invocation.Content,
			ExecutionTimeMs: invocation.ExecutionTimeMs,
		}
	}, attribute.String("skill_id", id))

	return result
}

// GetSkillDocumentation returns the raw, unsubstituted content
func (m *Manager) GetSkillDocumentation(ctx context.Context, id string) (string, error) {
	content, err := m.executor.GetSkillDocumentation(id)
	if err != nil {
		return "", skilltypes.AsError(err)
	}
	return content, nil
}

// RefreshSkills syncs the remote source, re-ingests every source and
// reports how the registry changed. Sync failures degrade to the
// last-known-good registry rather than wiping it.
func (m *Manager) RefreshSkills(ctx context.Context) RefreshResult {
	var result RefreshResult

	telemetry.WithSpanFunc(ctx, "manager.refresh_skills", func(ctx context.Context) {
		log := logger.G(ctx)

		if m.syncer != nil {
			if _, err := m.syncer.Sync(ctx); err != nil {
				log.WithError(err).Warn("repository sync failed, keeping current registry")
				result = RefreshResult{
					Success: false,
					Message: fmt.Sprintf("repository sync failed: %v", skilltypes.AsError(err).Message),
				}
				return
			}
		}

		before := make(map[string]*skilltypes.Skill, m.registry.Len())
		for _, skill := range m.registry.ListSkills() {
			before[skill.ID] = skill
		}

		records, err := m.ingest(ctx)
		if err != nil {
			log.WithError(err).Warn("ingest failed, keeping current registry")
			result = RefreshResult{
				Success: false,
				Message: fmt.Sprintf("ingest failed: %v", err),
			}
			return
		}

		m.registry.Replace(records, time.Now())
		m.persistSnapshot(ctx)

		added, updated, removed := diffRegistry(before, m.registry.ListSkills())
		result = RefreshResult{
			Success:       true,
			SkillsAdded:   added,
			SkillsUpdated: updated,
			SkillsRemoved: removed,
			Message: fmt.Sprintf("refreshed: %d added, %d updated, %d removed",
				added, updated, removed),
		}
	})

	return result
}

// Bootstrap prepares the registry for serving. A fresh cache snapshot with
// an unchanged upstream skips parsing entirely; anything else falls back to
// a full ingest. A missing or stale snapshot never blocks startup.
func (m *Manager) Bootstrap(ctx context.Context) error {
	return telemetry.WithSpan(ctx, "manager.bootstrap", func(ctx context.Context) error {
		log := logger.G(ctx)

		snapshot := m.loadFreshSnapshot(ctx)

		upstreamChanged := true
		if m.syncer != nil {
			result, err := m.syncer.Initialize(ctx)
			if err != nil {
				log.WithError(err).Warn("repository initialization failed")
				if snapshot != nil {
					log.Info("serving skills from cached snapshot")
					m.registry.FromSnapshot(snapshot)
					return nil
				}
				if m.localDir == "" {
					return err
				}
				// degrade to the local source only
			} else {
				upstreamChanged = result.SkillsChanged
			}
		} else {
			upstreamChanged = false
		}

		if snapshot != nil && !upstreamChanged {
			log.WithField("skills", len(snapshot.Skills)).Info("restoring registry from snapshot")
			m.registry.FromSnapshot(snapshot)
			return nil
		}

		records, err := m.ingest(ctx)
		if err != nil {
			if snapshot != nil {
				log.WithError(err).Warn("ingest failed, serving cached snapshot")
				m.registry.FromSnapshot(snapshot)
				return nil
			}
			return err
		}

		m.registry.Replace(records, time.Now())
		m.persistSnapshot(ctx)
		log.WithField("skills", m.registry.Len()).Info("registry ready")
		return nil
	})
}

// StartAutoSync wires the periodic refresh loop: on every upstream change
// the registry is re-ingested and the snapshot refreshed
func (m *Manager) StartAutoSync(ctx context.Context, interval time.Duration) {
	if m.syncer == nil {
		return
	}
	m.syncer.StartAutoSync(ctx, interval, func(ctx context.Context) error {
		records, err := m.ingest(ctx)
		if err != nil {
			return err
		}
		m.registry.Replace(records, time.Now())
		m.persistSnapshot(ctx)
		logger.G(ctx).WithField("skills", m.registry.Len()).Info("registry refreshed after upstream change")
		return nil
	})
}

// ingest parses every configured source into skill records. Per-source
// failures are collected; ingest only fails when every source failed.
func (m *Manager) ingest(ctx context.Context) ([]*skilltypes.Skill, error) {
	var records []*skilltypes.Skill
	var errs *multierror.Error
	parsedAny := false

	if m.syncer != nil {
		repoRecords, err := m.parser.ParseSource(ctx, m.syncer.WorkDir(), skilltypes.SourceRepository)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			records = append(records, repoRecords...)
			parsedAny = true
		}
	}

	if m.localDir != "" {
		localRecords, err := m.parser.ParseSource(ctx, m.localDir, skilltypes.SourceLocal)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			records = append(records, localRecords...)
			parsedAny = true
		}
	}

	if !parsedAny && errs.ErrorOrNil() != nil {
		return nil, errs.ErrorOrNil()
	}
	if err := errs.ErrorOrNil(); err != nil {
		logger.G(ctx).WithError(err).Warn("some sources failed to parse")
	}

	return records, nil
}

// loadFreshSnapshot returns the cached snapshot when present and fresh
func (m *Manager) loadFreshSnapshot(ctx context.Context) *skilltypes.RegistrySnapshot {
	if m.cacheStore == nil {
		return nil
	}
	log := logger.G(ctx)

	fresh, err := m.cacheStore.IsFresh(ctx, m.cacheMaxAge)
	if err != nil {
		log.WithError(err).Debug("snapshot freshness check failed")
		return nil
	}
	if !fresh {
		return nil
	}

	snapshot, err := m.cacheStore.LoadSnapshot(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load cached snapshot")
		return nil
	}
	return snapshot
}

// persistSnapshot writes the current registry to the cache store, best
// effort
func (m *Manager) persistSnapshot(ctx context.Context) {
	if m.cacheStore == nil {
		return
	}
	if err := m.cacheStore.SaveSnapshot(ctx, m.registry.ToSnapshot()); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to persist registry snapshot")
	}
}

// diffRegistry compares the registry before and after a refresh
func diffRegistry(before map[string]*skilltypes.Skill, after []*skilltypes.Skill) (added, updated, removed int) {
	seen := make(map[string]bool, len(after))
	for _, skill := range after {
		seen[skill.ID] = true
		prev, existed := before[skill.ID]
		if !existed {
			added++
			continue
		}
		if prev.Name != skill.Name || prev.Description != skill.Description || prev.Content != skill.Content {
			updated++
		}
	}
	for id := range before {
		if !seen[id] {
			removed++
		}
	}
	return added, updated, removed
}
