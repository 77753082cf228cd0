// Package importer reads raw product extracts from the scraper and
// retailer collaborators. It is the only place the engine parses wire
// formats; everything downstream sees domain.RawRecord.
//
// Malformed rows are counted and skipped, never fatal: a retailer dump
// with a handful of broken lines still imports the rest.
package importer

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/petfooddb/catalog/internal/domain"
)

// headerMap translates the column spellings seen across retailer
// extracts onto canonical field names. Keys are compared lowercased
// with surrounding whitespace trimmed.
var headerMap = map[string]string{
	"source_id":        "source_id",
	"sourceid":         "source_id",
	"sku":              "source_id",
	"url":              "product_url",
	"product_url":      "product_url",
	"brand":            "brand",
	"brand_raw":        "brand",
	"name":             "name",
	"name_raw":         "name",
	"product_name":     "name",
	"title":            "name",
	"ingredients":      "ingredients_raw",
	"ingredients_raw":  "ingredients_raw",
	"composition":      "ingredients_raw",
	"description":      "description",
	"form":             "form",
	"life_stage":       "life_stage",
	"lifestage":        "life_stage",
	"protein":          "protein_percent",
	"protein_percent":  "protein_percent",
	"fat":              "fat_percent",
	"fat_percent":      "fat_percent",
	"fiber":            "fiber_percent",
	"fibre":            "fiber_percent",
	"fiber_percent":    "fiber_percent",
	"ash":              "ash_percent",
	"ash_percent":      "ash_percent",
	"moisture":         "moisture_percent",
	"moisture_percent": "moisture_percent",
	"kcal":             "kcal_per_100g",
	"kcal_per_100g":    "kcal_per_100g",
	"price":            "price",
	"price_eur":        "price",
	"image":            "image_url",
	"image_url":        "image_url",
	"scraped_at":       "scraped_at",
}

// Result summarizes one import pass.
type Result struct {
	Records  []domain.RawRecord
	Imported int
	Skipped  int
}

// ImportFile reads the extract at path, dispatching on extension:
// .csv for header-mapped CSV, .jl/.jsonl/.json for JSON lines.
func ImportFile(path string, provenance domain.Provenance) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f, provenance)
	case ".jl", ".jsonl", ".json":
		return ReadJSONL(f, provenance)
	default:
		return nil, fmt.Errorf("%w: unsupported import format %q", domain.ErrInvalidRecord, filepath.Ext(path))
	}
}

// ReadCSV decodes one header-mapped CSV extract. Unknown columns are
// ignored; rows missing a source id or name are skipped.
func ReadCSV(r io.Reader, provenance domain.Provenance) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	fields := make([]string, len(header))
	for i, h := range header {
		// A UTF-8 BOM on the first column is common in retailer dumps.
		h = strings.TrimPrefix(h, "\uFEFF")
		fields[i] = headerMap[strings.ToLower(strings.TrimSpace(h))]
	}

	result := &Result{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Parse errors advance past the bad line; anything else
			// comes from the underlying reader and repeats forever.
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, fmt.Errorf("read csv row: %w", err)
			}
			result.Skipped++
			continue
		}

		values := make(map[string]string, len(fields))
		for i, v := range row {
			if i < len(fields) && fields[i] != "" {
				values[fields[i]] = strings.TrimSpace(v)
			}
		}

		record, ok := recordFromValues(values, provenance)
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, record)
		result.Imported++
	}
	return result, nil
}

// jsonRow is the wire shape of one scraper JSONL line. Numeric fields
// arrive as JSON numbers or numeric strings depending on the scraper,
// so they are decoded leniently.
type jsonRow struct {
	SourceID    string          `json:"source_id"`
	Brand       string          `json:"brand"`
	Name        string          `json:"name"`
	Ingredients string          `json:"ingredients"`
	Description string          `json:"description"`
	Form        string          `json:"form"`
	LifeStage   string          `json:"life_stage"`
	Protein     json.RawMessage `json:"protein"`
	Fat         json.RawMessage `json:"fat"`
	Fiber       json.RawMessage `json:"fiber"`
	Ash         json.RawMessage `json:"ash"`
	Moisture    json.RawMessage `json:"moisture"`
	Kcal        json.RawMessage `json:"kcal"`
	Price       json.RawMessage `json:"price"`
	ImageURL    string          `json:"image_url"`
	ProductURL  string          `json:"url"`
	ScrapedAt   string          `json:"scraped_at"`
}

// ReadJSONL decodes one JSON-lines extract. Lines that fail to decode
// or lack a source id or name are skipped and counted.
func ReadJSONL(r io.Reader, provenance domain.Provenance) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	result := &Result{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var row jsonRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			result.Skipped++
			continue
		}
		if row.SourceID == "" || row.Name == "" {
			result.Skipped++
			continue
		}

		record := domain.RawRecord{
			SourceID:   row.SourceID,
			BrandRaw:   row.Brand,
			NameRaw:    row.Name,
			Provenance: provenance,
			Attributes: domain.Attributes{
				IngredientsRaw:  row.Ingredients,
				Description:     row.Description,
				Form:            row.Form,
				LifeStage:       row.LifeStage,
				ImageURL:        row.ImageURL,
				ProductURL:      row.ProductURL,
				ProteinPercent:  lenientFloat(row.Protein),
				FatPercent:      lenientFloat(row.Fat),
				FiberPercent:    lenientFloat(row.Fiber),
				AshPercent:      lenientFloat(row.Ash),
				MoisturePercent: lenientFloat(row.Moisture),
				KcalPer100g:     lenientFloat(row.Kcal),
				Price:           lenientFloat(row.Price),
			},
		}
		record.ScrapedAt = parseTime(row.ScrapedAt)

		result.Records = append(result.Records, record)
		result.Imported++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return result, nil
}

func recordFromValues(values map[string]string, provenance domain.Provenance) (domain.RawRecord, bool) {
	sourceID := values["source_id"]
	if sourceID == "" {
		// Listings without an explicit id fall back to their URL.
		sourceID = values["product_url"]
	}
	name := values["name"]
	if sourceID == "" || name == "" {
		return domain.RawRecord{}, false
	}

	record := domain.RawRecord{
		SourceID:   sourceID,
		BrandRaw:   values["brand"],
		NameRaw:    name,
		Provenance: provenance,
		Attributes: domain.Attributes{
			IngredientsRaw:  values["ingredients_raw"],
			Description:     values["description"],
			Form:            strings.ToLower(values["form"]),
			LifeStage:       strings.ToLower(values["life_stage"]),
			ImageURL:        values["image_url"],
			ProductURL:      values["product_url"],
			ProteinPercent:  parseFloat(values["protein_percent"]),
			FatPercent:      parseFloat(values["fat_percent"]),
			FiberPercent:    parseFloat(values["fiber_percent"]),
			AshPercent:      parseFloat(values["ash_percent"]),
			MoisturePercent: parseFloat(values["moisture_percent"]),
			KcalPer100g:     parseFloat(values["kcal_per_100g"]),
			Price:           parseFloat(values["price"]),
		},
	}
	record.ScrapedAt = parseTime(values["scraped_at"])
	return record, true
}

// parseFloat parses a numeric cell, tolerating decimal commas, percent
// signs and trailing units. Empty or unparseable cells are nil.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimRight(s, "%€$ ")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func lenientFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseFloat(s)
	}
	return nil
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
