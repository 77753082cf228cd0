package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/petfooddb/catalog/internal/domain"
)

// Pack and size patterns. The multi-pack pattern must run first: in
// "6 x 400g" the single-pack pattern would otherwise claim "400g" and
// lose the count.
var (
	multiPackPattern  = regexp.MustCompile(`(?i)\b(\d+)\s*x\s*(\d+(?:[\.,]\d+)?)\s*(kg|gr|g|ml|lt|l)\b`)
	singlePackPattern = regexp.MustCompile(`(?i)\b(\d+(?:[\.,]\d+)?)\s*(kg|gr|g|ml|lt|l)\b`)
	parenSizePattern  = regexp.MustCompile(`(?i)\(\s*\d+(?:[\.,]\d+)?\s*(?:kg|gr|g|ml|lt|l)\s*(?:total|net)?\s*\)`)
	emptyParensRegex  = regexp.MustCompile(`\(\s*\)`)
)

// ExtractVariant parses pack and size information out of a raw product
// name. Multi-pack notation wins over plain sizes, so any trailing
// total weight in the same name ("6 x 400g (2.4kg)") is ignored.
// Names without size tokens return a zero VariantInfo.
func ExtractVariant(nameRaw string) domain.VariantInfo {
	if m := multiPackPattern.FindStringSubmatch(nameRaw); m != nil {
		count, err := strconv.Atoi(m[1])
		if err != nil || count < 1 {
			count = 1
		}
		amount := parseAmount(m[2])
		value, unit := normalizeSize(amount, m[3])
		return domain.VariantInfo{
			Type:      domain.VariantMultiPack,
			SizeValue: value,
			SizeUnit:  unit,
			PackCount: count,
		}
	}

	if m := singlePackPattern.FindStringSubmatch(nameRaw); m != nil {
		amount := parseAmount(m[1])
		value, unit := normalizeSize(amount, m[2])
		return domain.VariantInfo{
			Type:      domain.VariantSinglePack,
			SizeValue: value,
			SizeUnit:  unit,
			PackCount: 1,
		}
	}

	return domain.VariantInfo{Type: domain.VariantNone}
}

// StripVariantTokens removes every pack and size token from a name,
// leaving the base product wording. Stripping a stripped name is a
// no-op.
func StripVariantTokens(nameRaw string) string {
	stripped := parenSizePattern.ReplaceAllString(nameRaw, " ")
	stripped = multiPackPattern.ReplaceAllString(stripped, " ")
	stripped = singlePackPattern.ReplaceAllString(stripped, " ")
	stripped = emptyParensRegex.ReplaceAllString(stripped, " ")
	stripped = multipleSpacesRegex.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}

// parseAmount reads a decimal that may use a comma separator, as
// continental retailer feeds do ("1,5kg").
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

// normalizeSize converts sizes to base units so "1.5kg" and "1500g"
// compare equal: kilograms become grams, litres become millilitres.
func normalizeSize(amount float64, unit string) (float64, string) {
	switch strings.ToLower(unit) {
	case "kg":
		return amount * 1000, "g"
	case "g", "gr":
		return amount, "g"
	case "l", "lt":
		return amount * 1000, "ml"
	case "ml":
		return amount, "ml"
	default:
		return amount, strings.ToLower(unit)
	}
}
