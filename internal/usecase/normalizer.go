package usecase

import (
	"log"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Package-level compiled regex patterns for performance
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// foldDiacritics strips combining marks after NFD decomposition, so
// "Purée" and "Puree" normalize identically.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// noiseRule is one ordered substitution applied during name
// normalization. Order matters: pack and unit tokens are removed before
// the stray-number rule, which assumes units are already gone.
type noiseRule struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// nameNoiseRules is the ordered rule table for product-name noise:
// pack notation, units, promo pack wording, then any numbers left
// behind. Life-stage and breed-size words are deliberately absent.
// They distinguish real products ("Premium Puppy" is not "Premium
// Senior"), so they stay in the base name and grouping key. Extending
// this table is the supported way to teach the engine new noise
// vocabulary; each rule is exercised independently in
// normalizer_test.go.
var nameNoiseRules = []noiseRule{
	{"multi-pack", regexp.MustCompile(`\b\d+\s*x\s*\d+(?:[\.,]\d+)?\s*(?:kg|gr|g|ml|lt|l)\b`), " "},
	{"pack-size", regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\s*(?:kg|gr|g|ml|lt|l)\b`), " "},
	{"pack-count", regexp.MustCompile(`\b\d+\s*(?:pack|packs|pcs|pieces|cans|pouches|sachets|tins)\b`), " "},
	{"promo-pack", regexp.MustCompile(`\b(?:saver|economy|value|trial|starter|mega)\s*(?:pack|box)\b`), " "},
	{"stray-number", regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`), " "},
}

// stopWords are low-signal tokens excluded from token-set comparison.
var stopWords = map[string]bool{
	"the": true, "and": true, "or": true, "with": true,
	"a": true, "an": true, "of": true, "in": true, "for": true,
}

// Normalizer converts raw brand and product strings into comparable,
// whitespace- and punctuation-insensitive forms. All methods are
// deterministic and idempotent; unparseable input normalizes to "",
// which the grouper treats as ungroupable.
type Normalizer struct {
	enableDebugLogging bool

	// Normalized names are recomputed across the resolver, grouper and
	// merger for the same inputs, so results are memoized per string.
	mu   sync.RWMutex
	memo map[string]string
}

// NewNormalizer creates a normalizer with an empty memo cache.
func NewNormalizer(enableDebugLogging bool) *Normalizer {
	return &Normalizer{
		enableDebugLogging: enableDebugLogging,
		memo:               make(map[string]string),
	}
}

// Normalize lower-cases, folds diacritics, strips punctuation and
// collapses whitespace. It applies no noise rules, so it is safe for
// brand strings as well as names.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}

	lowered := strings.ToLower(text)
	folded, _, err := transform.String(foldDiacritics, lowered)
	if err != nil {
		// Transform failures degrade to the lowercased input rather
		// than failing the record.
		folded = lowered
	}

	cleaned := nonAlphanumericRegex.ReplaceAllString(folded, " ")
	cleaned = multipleSpacesRegex.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// NormalizeName normalizes a product name and strips the noise
// vocabulary: pack counts, units, promo pack wording, then stray
// numbers.
func (n *Normalizer) NormalizeName(name string) string {
	if name == "" {
		return ""
	}

	n.mu.RLock()
	cached, ok := n.memo[name]
	n.mu.RUnlock()
	if ok {
		return cached
	}

	cleaned := n.Normalize(name)
	for _, rule := range nameNoiseRules {
		cleaned = rule.pattern.ReplaceAllString(cleaned, rule.replace)
	}
	cleaned = multipleSpacesRegex.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if n.enableDebugLogging {
		log.Printf("[NORM] %q -> %q", name, cleaned)
	}

	n.mu.Lock()
	n.memo[name] = cleaned
	n.mu.Unlock()

	return cleaned
}

// NormalizeBase strips pack/size tokens first and then normalizes, so
// different pack presentations of one product collapse to the same base
// name for key derivation.
func (n *Normalizer) NormalizeBase(name string) string {
	return n.NormalizeName(StripVariantTokens(name))
}

// StripLeadingTokens removes prefix from the front of name when name
// begins with it (both already normalized). Used to drop brand tokens
// from base names so "brit premium adult" keys as "premium adult".
func StripLeadingTokens(name, prefix string) string {
	if prefix == "" || name == "" {
		return name
	}
	if name == prefix {
		return ""
	}
	if strings.HasPrefix(name, prefix+" ") {
		return strings.TrimSpace(strings.TrimPrefix(name, prefix+" "))
	}
	return name
}

// Tokenize splits a normalized string into its comparison tokens.
// Stop words, single characters and pure numbers carry no signal and
// are dropped.
func Tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.Fields(s) {
		if len(word) <= 1 {
			continue
		}
		if stopWords[word] {
			continue
		}
		if isNumeric(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
