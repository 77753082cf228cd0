package importer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petfooddb/catalog/internal/domain"
)

func TestReadCSV(t *testing.T) {
	t.Run("maps known headers regardless of spelling", func(t *testing.T) {
		csv := "SKU,Brand,Product Name,Composition,Protein,Fat,Price_EUR,URL\n" +
			"sku-1,Brit,Brit Premium Adult 3kg,\"chicken, rice\",26,14,\"12,99\",https://shop.example/brit\n"
		// "Product Name" is not in the header map; "name" and "title" are.
		csv = strings.Replace(csv, "Product Name", "Title", 1)

		result, err := ReadCSV(strings.NewReader(csv), domain.ProvenanceRetailerFeed)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 0, result.Skipped)

		r := result.Records[0]
		assert.Equal(t, "sku-1", r.SourceID)
		assert.Equal(t, "Brit", r.BrandRaw)
		assert.Equal(t, "Brit Premium Adult 3kg", r.NameRaw)
		assert.Equal(t, domain.ProvenanceRetailerFeed, r.Provenance)
		assert.Equal(t, "chicken, rice", r.Attributes.IngredientsRaw)
		require.NotNil(t, r.Attributes.ProteinPercent)
		assert.Equal(t, 26.0, *r.Attributes.ProteinPercent)
		require.NotNil(t, r.Attributes.Price)
		assert.Equal(t, 12.99, *r.Attributes.Price)
		assert.Equal(t, "https://shop.example/brit", r.Attributes.ProductURL)
	})

	t.Run("skips rows without source id or name", func(t *testing.T) {
		csv := "sku,brand,name\n" +
			",Brit,No Source\n" +
			"sku-2,Brit,\n" +
			"sku-3,Brit,Brit Care Mini\n"

		result, err := ReadCSV(strings.NewReader(csv), domain.ProvenanceScrape)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 2, result.Skipped)
		assert.Equal(t, "sku-3", result.Records[0].SourceID)
	})

	t.Run("falls back to URL as source id", func(t *testing.T) {
		csv := "brand,name,url\n" +
			"Brit,Brit Care Mini,https://shop.example/brit-care\n"

		result, err := ReadCSV(strings.NewReader(csv), domain.ProvenanceScrape)
		require.NoError(t, err)
		require.Equal(t, 1, result.Imported)
		assert.Equal(t, "https://shop.example/brit-care", result.Records[0].SourceID)
	})

	t.Run("tolerates a BOM on the first header", func(t *testing.T) {
		csv := "\uFEFFsku,brand,name\nsku-1,Brit,Brit Care Mini\n"

		result, err := ReadCSV(strings.NewReader(csv), domain.ProvenanceScrape)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, "sku-1", result.Records[0].SourceID)
	})

	t.Run("empty header fails", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""), domain.ProvenanceScrape)
		assert.Error(t, err)
	})

	t.Run("skips past malformed quoting", func(t *testing.T) {
		csv := "sku,brand,name\n" +
			"sku-1,Br\"it,Broken Row\n" +
			"sku-2,Brit,Brit Care Mini\n"

		result, err := ReadCSV(strings.NewReader(csv), domain.ProvenanceScrape)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, "sku-2", result.Records[0].SourceID)
	})

	t.Run("fails on a broken underlying reader", func(t *testing.T) {
		r := io.MultiReader(
			strings.NewReader("sku,brand,name\nsku-1,Brit,Brit Care Mini\n"),
			failingReader{err: errors.New("disk read error")},
		)

		_, err := ReadCSV(r, domain.ProvenanceScrape)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk read error")
	})
}

// failingReader returns the same error on every Read.
type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestReadJSONL(t *testing.T) {
	t.Run("decodes lines and tolerates numeric strings", func(t *testing.T) {
		input := `{"source_id":"sku-1","brand":"Hills","name":"Science Plan Puppy","ingredients":"chicken","protein":30,"fat":"19,5","scraped_at":"2025-06-01T12:00:00Z"}
{"source_id":"sku-2","brand":"Hills","name":"Science Plan Adult","kcal":"371"}
`
		result, err := ReadJSONL(strings.NewReader(input), domain.ProvenanceManufacturer)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Imported)
		assert.Equal(t, 0, result.Skipped)

		first := result.Records[0]
		assert.Equal(t, domain.ProvenanceManufacturer, first.Provenance)
		require.NotNil(t, first.Attributes.ProteinPercent)
		assert.Equal(t, 30.0, *first.Attributes.ProteinPercent)
		require.NotNil(t, first.Attributes.FatPercent)
		assert.Equal(t, 19.5, *first.Attributes.FatPercent)
		assert.False(t, first.ScrapedAt.IsZero())

		second := result.Records[1]
		require.NotNil(t, second.Attributes.KcalPer100g)
		assert.Equal(t, 371.0, *second.Attributes.KcalPer100g)
	})

	t.Run("counts malformed and incomplete lines", func(t *testing.T) {
		input := `not json at all
{"source_id":"","name":"No Source"}
{"source_id":"sku-1","name":""}
{"source_id":"sku-2","name":"Valid Product"}

`
		result, err := ReadJSONL(strings.NewReader(input), domain.ProvenanceScrape)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 3, result.Skipped)
	})
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"26", floatPtr(26)},
		{"12,99", floatPtr(12.99)},
		{"30%", floatPtr(30)},
		{"", nil},
		{"n/a", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseFloat(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func floatPtr(v float64) *float64 { return &v }
