package parser

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/logger"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

const (
	skillFileName  = "SKILL.md"
	readmeFileName = "README.md"
	skillsDirName  = "skills"

	defaultFetchTimeout  = 10 * time.Second
	defaultFetchAttempts = 3
)

// Parser converts a synced document source into skill records. A single
// parser is safe for concurrent use; it holds only immutable configuration.
type Parser struct {
	overrides     map[string]Override
	client        *http.Client
	fetchTimeout  time.Duration
	fetchAttempts uint
}

// Option configures a Parser
type Option func(*Parser) error

// WithOverrides sets the per-skill override table, keyed by normalized id
func WithOverrides(overrides map[string]Override) Option {
	return func(p *Parser) error {
		p.overrides = overrides
		return nil
	}
}

// WithOverridesFile loads the override table from a YAML file. A missing
// file is not an error; operators add overrides only when a document
// misparses.
func WithOverridesFile(path string) Option {
	return func(p *Parser) error {
		overrides, err := LoadOverrides(path)
		if err != nil {
			return err
		}
		p.overrides = overrides
		return nil
	}
}

// WithHTTPClient sets the client used for index-shape remote fetches
func WithHTTPClient(client *http.Client) Option {
	return func(p *Parser) error {
		p.client = client
		return nil
	}
}

// WithFetchTimeout bounds each remote document fetch attempt
func WithFetchTimeout(timeout time.Duration) Option {
	return func(p *Parser) error {
		p.fetchTimeout = timeout
		return nil
	}
}

// New creates a parser with the given options
func New(opts ...Option) (*Parser, error) {
	p := &Parser{
		fetchTimeout:  defaultFetchTimeout,
		fetchAttempts: defaultFetchAttempts,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: p.fetchTimeout}
	}
	return p, nil
}

// ParseSource reads a document source rooted at root and returns the skill
// records it contains. The source shape is auto-detected: a skills/
// directory (or per-skill subdirectories at the root) selects the directory
// shape, otherwise a root index document listing links is parsed.
func (p *Parser) ParseSource(ctx context.Context, root string, kind skilltypes.SourceKind) ([]*skilltypes.Skill, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "source root %q not readable", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("source root %q is not a directory", root)
	}

	skillsDir := filepath.Join(root, skillsDirName)
	if dirExists(skillsDir) {
		return p.parseDirectoryShape(ctx, skillsDir, kind)
	}

	indexPath := filepath.Join(root, readmeFileName)
	if fileExists(indexPath) {
		if records, ok := p.tryIndexShape(ctx, indexPath, kind); ok {
			return records, nil
		}
	}

	return p.parseDirectoryShape(ctx, root, kind)
}

// parseDirectoryShape walks one subdirectory per skill, choosing each
// subdirectory's primary document by preference: SKILL.md, README.md, then
// the first markdown file. Subdirectories without any markdown document are
// skipped.
func (p *Parser) parseDirectoryShape(ctx context.Context, dir string, kind skilltypes.SourceKind) ([]*skilltypes.Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skills directory %q", dir)
	}

	log := logger.G(ctx)
	var records []*skilltypes.Skill

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		// follow symlinked skill directories
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		docPath := primaryDocument(entryPath)
		if docPath == "" {
			log.WithField("dir", entryPath).Debug("no markdown document, skipping")
			continue
		}

		skill, err := p.parseSkillFile(docPath, entry.Name(), kind)
		if err != nil {
			log.WithField("file", docPath).WithError(err).Warn("failed to parse skill document")
			continue
		}
		records = append(records, skill)
	}

	return records, nil
}

// primaryDocument picks the skill document for a directory: SKILL.md, then
// README.md, then the first markdown file in lexical order
func primaryDocument(dir string) string {
	for _, name := range []string{skillFileName, readmeFileName} {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0])
}

// parseSkillFile loads one document and builds the skill record, applying
// any operator override for the resolved id
func (p *Parser) parseSkillFile(path, fallbackName string, kind skilltypes.SourceKind) (*skilltypes.Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill document")
	}

	doc := ParseMarkdown(string(content))

	name := doc.Name
	if name == "" {
		name = fallbackName
	}

	skill := &skilltypes.Skill{
		ID:          Normalize(name),
		Name:        name,
		Description: doc.Description,
		Source:      kind,
		SourcePath:  path,
		Content:     doc.Body,
		Parameters:  doc.Parameters,
		Metadata:    doc.Metadata,
		LastUpdated: time.Now(),
	}

	p.applyOverride(skill)
	return skill, nil
}

// applyOverride shallow-merges the operator override for skill.ID, letting
// misparsed metadata be corrected without editing the source document
func (p *Parser) applyOverride(skill *skilltypes.Skill) {
	override, ok := p.overrides[skill.ID]
	if !ok {
		return
	}
	override.Apply(skill)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
