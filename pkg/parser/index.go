package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/skillmesh/skillmesh/pkg/logger"
	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// indexLinkRe matches one curated index line: bold link text, a GitHub tree
// URL carrying org/repo/ref/path, and a trailing free-text description.
var indexLinkRe = regexp.MustCompile(
	`\*\*\[([^\]]+)\]\((https://github\.com/([^/\s]+)/([^/\s]+)/tree/([^/\s]+)/([^)\s]+))\)\*\*\s*[-–:]?\s*(.*)`)

// remoteDocNames are tried in order against the raw-content form of each
// linked repository path
var remoteDocNames = []string{"SKILL.md", "README.md", "skill.md"}

// indexLink is one parsed entry of an index document
type indexLink struct {
	Name        string
	URL         string
	Org         string
	Repo        string
	Ref         string
	Path        string
	Description string
}

// tryIndexShape parses the root document as a curated link index. It
// reports ok=false when the document contains no matching links, which
// sends source detection down the directory-shape path instead.
func (p *Parser) tryIndexShape(ctx context.Context, indexPath string, kind skilltypes.SourceKind) ([]*skilltypes.Skill, bool) {
	content, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, false
	}

	links := parseIndexLinks(string(content))
	if len(links) == 0 {
		return nil, false
	}

	log := logger.G(ctx)
	records := make([]*skilltypes.Skill, 0, len(links))

	for _, link := range links {
		skill := p.resolveIndexLink(ctx, link, kind)
		if skill == nil {
			// resolveIndexLink always synthesizes a stub on failure; a nil
			// here would mean a dropped link
			log.WithField("link", link.URL).Error("index link resolution returned nothing")
			continue
		}
		records = append(records, skill)
	}

	return records, true
}

// parseIndexLinks extracts every matching link line from the index document
func parseIndexLinks(content string) []indexLink {
	var links []indexLink
	for _, line := range strings.Split(content, "\n") {
		m := indexLinkRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		links = append(links, indexLink{
			Name:        strings.TrimSpace(m[1]),
			URL:         m[2],
			Org:         m[3],
			Repo:        m[4],
			Ref:         m[5],
			Path:        strings.TrimRight(m[6], "/"),
			Description: strings.TrimSpace(m[7]),
		})
	}
	return links
}

// resolveIndexLink fetches the linked skill's full document, trying each
// candidate filename against the raw-content host. When every attempt
// fails the link degrades to a stub record: discovered links are never
// dropped silently.
func (p *Parser) resolveIndexLink(ctx context.Context, link indexLink, kind skilltypes.SourceKind) *skilltypes.Skill {
	log := logger.G(ctx).WithField("skill", link.Name)

	for _, docName := range remoteDocNames {
		rawURL := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s/%s/%s",
			link.Org, link.Repo, link.Ref, link.Path, docName)

		body, err := p.fetchRemoteDocument(ctx, rawURL)
		if err != nil {
			log.WithField("url", rawURL).WithError(err).Debug("remote document fetch failed")
			continue
		}

		doc := ParseMarkdown(body)
		name := doc.Name
		if name == "" {
			name = link.Name
		}
		description := doc.Description
		if description == "" {
			description = link.Description
		}

		skill := &skilltypes.Skill{
			ID:          Normalize(name),
			Name:        name,
			Description: description,
			Source:      kind,
			SourcePath:  link.URL,
			Content:     doc.Body,
			Parameters:  doc.Parameters,
			Metadata:    doc.Metadata,
			LastUpdated: time.Now(),
		}
		skill.Metadata.Organization = link.Org
		skill.Metadata.Repository = link.Repo

		p.applyOverride(skill)
		return skill
	}

	log.Warn("all remote fetch attempts failed, synthesizing stub skill")
	return p.stubSkill(link, kind)
}

// stubSkill builds a minimal record from the index link itself
func (p *Parser) stubSkill(link indexLink, kind skilltypes.SourceKind) *skilltypes.Skill {
	content := fmt.Sprintf("# %s\n\n%s\n\nFull documentation: %s\n", link.Name, link.Description, link.URL)

	skill := &skilltypes.Skill{
		ID:          Normalize(link.Name),
		Name:        link.Name,
		Description: link.Description,
		Source:      kind,
		SourcePath:  link.URL,
		Content:     content,
		Metadata: skilltypes.Metadata{
			Organization: link.Org,
			Repository:   link.Repo,
		},
		LastUpdated: time.Now(),
	}

	p.applyOverride(skill)
	return skill
}

// fetchRemoteDocument downloads one document with a bounded per-attempt
// timeout and a small number of retries
func (p *Parser) fetchRemoteDocument(ctx context.Context, url string) (string, error) {
	var body string

	err := retry.Do(
		func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
			defer cancel()

			req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "failed to build request"))
			}

			resp, err := p.client.Do(req)
			if err != nil {
				return errors.Wrap(err, "request failed")
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(errors.Errorf("document not found at %s", url))
			}
			if resp.StatusCode != http.StatusOK {
				return errors.Errorf("unexpected status %d from %s", resp.StatusCode, url)
			}

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return errors.Wrap(err, "failed to read response body")
			}
			body = string(data)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.fetchAttempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	return body, nil
}
