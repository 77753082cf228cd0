// Package aliasmap loads the curated brand alias document: canonical
// brand families, their known alias spellings, fallback detection
// patterns and per-family series rules. The document is read-only input
// to the brand resolver; an invalid document refuses the whole batch
// rather than silently degrading every family assignment.
package aliasmap

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petfooddb/catalog/internal/domain"
)

var familySlugPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Document is the top-level alias configuration, versioned as an
// artifact of record.
type Document struct {
	Version string  `yaml:"version"`
	Brands  []Brand `yaml:"brands"`
}

// Brand describes one canonical family: the alias spellings that map to
// it, regex patterns that detect it when no alias matches, fragment
// rules for split brand strings, and ordered series rules.
//
// All patterns are matched against normalized (lowercase, punctuation
// stripped) text, so they are written in lowercase without (?i).
type Brand struct {
	Family    string       `yaml:"family"`
	Aliases   []string     `yaml:"aliases"`
	Detect    []string     `yaml:"detect_patterns"`
	Fragments []Fragment   `yaml:"fragments"`
	Series    []SeriesRule `yaml:"series_rules"`

	detectCompiled []*regexp.Regexp
}

// Fragment handles brand strings that are split pieces of a longer
// canonical brand: a raw brand equal to BrandFragment whose product
// name starts with NamePrefix belongs to this family, and the prefix is
// dropped from the name.
type Fragment struct {
	BrandFragment string `yaml:"brand_fragment"`
	NamePrefix    string `yaml:"name_prefix"`
}

// SeriesRule assigns a series slug when one of its patterns matches the
// normalized product name. Rules are evaluated in document order, first
// match wins.
type SeriesRule struct {
	Slug     string   `yaml:"slug"`
	Patterns []string `yaml:"patterns"`

	compiled []*regexp.Regexp
}

// DetectRegexps returns the brand's compiled detection patterns.
func (b *Brand) DetectRegexps() []*regexp.Regexp {
	return b.detectCompiled
}

// Regexps returns the rule's compiled patterns.
func (s *SeriesRule) Regexps() []*regexp.Regexp {
	return s.compiled
}

// Load reads and validates an alias document from a YAML file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidAliasConfig, path, err)
	}
	return Parse(data)
}

// Parse decodes and validates an alias document from YAML bytes.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidAliasConfig, err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// validate checks structural rules and compiles every pattern eagerly,
// so a bad regex fails the load instead of the first record that hits
// it mid-batch.
func (d *Document) validate() error {
	if d.Version == "" {
		return fmt.Errorf("%w: missing version", domain.ErrInvalidAliasConfig)
	}
	if len(d.Brands) == 0 {
		return fmt.Errorf("%w: no brands defined", domain.ErrInvalidAliasConfig)
	}

	seenFamilies := make(map[string]bool)
	seenAliases := make(map[string]string)

	for i := range d.Brands {
		b := &d.Brands[i]
		if !familySlugPattern.MatchString(b.Family) {
			return fmt.Errorf("%w: invalid family slug %q", domain.ErrInvalidAliasConfig, b.Family)
		}
		if seenFamilies[b.Family] {
			return fmt.Errorf("%w: duplicate family %q", domain.ErrInvalidAliasConfig, b.Family)
		}
		seenFamilies[b.Family] = true

		for _, alias := range b.Aliases {
			key := strings.ToLower(strings.TrimSpace(alias))
			if key == "" {
				return fmt.Errorf("%w: empty alias under family %q", domain.ErrInvalidAliasConfig, b.Family)
			}
			if owner, dup := seenAliases[key]; dup && owner != b.Family {
				return fmt.Errorf("%w: alias %q claimed by both %q and %q",
					domain.ErrInvalidAliasConfig, alias, owner, b.Family)
			}
			seenAliases[key] = b.Family
		}

		b.detectCompiled = make([]*regexp.Regexp, 0, len(b.Detect))
		for _, pattern := range b.Detect {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("%w: family %q detect pattern %q: %v",
					domain.ErrInvalidAliasConfig, b.Family, pattern, err)
			}
			b.detectCompiled = append(b.detectCompiled, re)
		}

		for _, frag := range b.Fragments {
			if frag.BrandFragment == "" || frag.NamePrefix == "" {
				return fmt.Errorf("%w: family %q has incomplete fragment rule",
					domain.ErrInvalidAliasConfig, b.Family)
			}
		}

		for j := range b.Series {
			rule := &b.Series[j]
			if rule.Slug == "" {
				return fmt.Errorf("%w: family %q has series rule without slug",
					domain.ErrInvalidAliasConfig, b.Family)
			}
			rule.compiled = make([]*regexp.Regexp, 0, len(rule.Patterns))
			for _, pattern := range rule.Patterns {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("%w: family %q series %q pattern %q: %v",
						domain.ErrInvalidAliasConfig, b.Family, rule.Slug, pattern, err)
				}
				rule.compiled = append(rule.compiled, re)
			}
		}
	}

	return nil
}
