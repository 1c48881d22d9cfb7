// Package parser extracts normalized skill records from document sources.
// It understands two source shapes: a directory tree of per-skill documents
// and a single index document listing skills as links. Markdown documents
// carry optional YAML front matter; everything the front matter does not
// declare is inferred heuristically from the body text.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	gmparser "github.com/yuin/goldmark/parser"

	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

// Document is the result of parsing a single markdown document
type Document struct {
	FrontMatter map[string]any
	Body        string
	Name        string
	Description string
	Parameters  []skilltypes.ParameterSchema
	Metadata    skilltypes.Metadata
}

var (
	h1Re          = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	whenToUseRe   = regexp.MustCompile(`(?i)^#{1,6}\s+when\s+to\s+use\b`)
	parametersRe  = regexp.MustCompile(`(?i)^#{1,6}\s+parameters\b`)
	anyHeadingRe  = regexp.MustCompile(`^#{1,6}\s+`)
	bracketListRe = regexp.MustCompile(`^\[(.*)\]$`)
)

// ParseMarkdown splits an optional leading front-matter block from the body
// and extracts name, description and parameter schemas. Name falls back to
// the first level-1 heading; description falls back to the paragraph after a
// "When to Use" heading, then the first paragraph after the H1.
func ParseMarkdown(content string) *Document {
	fm, body := splitFrontMatter(content)

	doc := &Document{
		FrontMatter: fm,
		Body:        body,
	}

	doc.Name = stringField(fm, "name")
	if doc.Name == "" {
		if m := h1Re.FindStringSubmatch(body); m != nil {
			doc.Name = strings.TrimSpace(m[1])
		}
	}

	doc.Description = stringField(fm, "description")
	if doc.Description == "" {
		doc.Description = inferDescription(body)
	}

	doc.Parameters = extractParameters(body)
	doc.Metadata = metadataFromFrontMatter(fm)

	return doc
}

// splitFrontMatter separates a leading `---` delimited key:value block from
// the document body. Well-formed YAML goes through goldmark-meta, matching
// how SKILL.md documents are authored in the wild; anything the YAML parser
// rejects falls back to a line-wise key:value scan so a sloppy document
// still yields its body.
func splitFrontMatter(content string) (map[string]any, string) {
	if !strings.HasPrefix(content, "---") {
		return nil, content
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))
	var buf bytes.Buffer
	pctx := gmparser.NewContext()
	if err := md.Convert([]byte(content), &buf, gmparser.WithContext(pctx)); err == nil {
		if data := meta.Get(pctx); data != nil {
			return normalizeFrontMatter(data), bodyAfterFrontMatter(content)
		}
	}

	return scanFrontMatter(content)
}

// scanFrontMatter is the permissive fallback: trimmed key:value lines, with
// bracket-delimited values parsed as arrays and everything else kept as a
// trimmed string.
func scanFrontMatter(content string) (map[string]any, string) {
	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return nil, content
	}

	fm := make(map[string]any)
	for _, line := range lines[1:end] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fm[key] = parseFrontMatterValue(strings.TrimSpace(value))
	}

	body := strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
	return fm, body
}

// parseFrontMatterValue turns a raw scalar into either a string array (for
// bracket-delimited values) or a trimmed string
func parseFrontMatterValue(raw string) any {
	if m := bracketListRe.FindStringSubmatch(raw); m != nil {
		var items []string
		for _, item := range strings.Split(m[1], ",") {
			item = strings.Trim(strings.TrimSpace(item), `"'`)
			if item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	return strings.Trim(raw, `"'`)
}

// normalizeFrontMatter coerces the yaml-decoded metadata into string-keyed
// values: scalars become trimmed strings, sequences become string slices
func normalizeFrontMatter(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, strings.TrimSpace(stringify(item)))
		}
		return items
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[stringify(k)] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func bodyAfterFrontMatter(content string) string {
	lines := strings.Split(content, "\n")
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
		}
	}
	return content
}

// inferDescription looks for a "When to Use" section first; otherwise the
// first paragraph after the level-1 heading
func inferDescription(body string) string {
	if section := sectionAfterHeading(body, whenToUseRe); section != "" {
		return firstParagraph(section)
	}

	if loc := h1Re.FindStringIndex(body); loc != nil {
		return firstParagraph(body[loc[1]:])
	}

	return ""
}

// sectionAfterHeading returns the text between the first heading matching re
// and the next heading of any level
func sectionAfterHeading(body string, re *regexp.Regexp) string {
	lines := strings.Split(body, "\n")
	start := -1
	for i, line := range lines {
		if re.MatchString(line) {
			start = i + 1
			break
		}
	}
	if start == -1 {
		return ""
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if anyHeadingRe.MatchString(lines[i]) {
			end = i
			break
		}
	}

	return strings.Join(lines[start:end], "\n")
}

// firstParagraph returns the first non-empty run of lines, joined by spaces
func firstParagraph(text string) string {
	var para []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(para) > 0 {
				break
			}
			continue
		}
		if anyHeadingRe.MatchString(trimmed) {
			break
		}
		para = append(para, trimmed)
	}
	return strings.Join(para, " ")
}

// stringField reads a trimmed string field from the front matter
func stringField(fm map[string]any, key string) string {
	if fm == nil {
		return ""
	}
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func stringSliceField(fm map[string]any, key string) []string {
	if fm == nil {
		return nil
	}
	switch v := fm[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// metadataFromFrontMatter maps the known front-matter keys into the
// constrained metadata record; unrecognized keys land in Extra
func metadataFromFrontMatter(fm map[string]any) skilltypes.Metadata {
	md := skilltypes.Metadata{
		Author:       stringField(fm, "author"),
		Version:      stringField(fm, "version"),
		Tags:         stringSliceField(fm, "tags"),
		Requirements: stringSliceField(fm, "requirements"),
		Organization: stringField(fm, "organization"),
		Repository:   stringField(fm, "repository"),
	}

	known := map[string]bool{
		"name": true, "description": true, "author": true, "version": true,
		"tags": true, "requirements": true, "organization": true, "repository": true,
	}
	for k, v := range fm {
		if known[k] {
			continue
		}
		if md.Extra == nil {
			md.Extra = make(map[string]any)
		}
		md.Extra[k] = v
	}

	return md
}
