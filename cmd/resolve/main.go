// Command resolve runs one entity-resolution batch: optionally imports
// raw extracts into the store, computes the dry-run diff, and applies
// it when --execute is set. The dry-run report is always written
// before any destructive write.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/petfooddb/catalog/config"
	"github.com/petfooddb/catalog/internal/domain"
	"github.com/petfooddb/catalog/internal/infrastructure/aliasmap"
	"github.com/petfooddb/catalog/internal/infrastructure/importer"
	"github.com/petfooddb/catalog/internal/infrastructure/sqlite"
	"github.com/petfooddb/catalog/internal/usecase"
)

var (
	importFiles = pflag.StringSlice("import", nil, "Raw extract files to import before resolving (.csv, .jl, .jsonl)")
	provenance  = pflag.String("provenance", "scrape", "Provenance tag for imported records (manufacturer|retailer_feed|scrape|legacy)")
	brandFilter = pflag.String("brand", "", "Restrict the batch to one raw brand (per-brand partition)")
	execute     = pflag.Bool("execute", false, "Apply the diff after the dry run (default: dry run only)")
	reportDir   = pflag.String("report-dir", "", "Report output directory (default from config)")
	debug       = pflag.Bool("debug", false, "Enable debug logging regardless of config")
)

func main() {
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[BATCH] failed to load configuration: %v", err)
	}
	if *debug {
		cfg.Matching.EnableDebugLogging = true
	}
	if *reportDir == "" {
		*reportDir = cfg.Report.Dir
	}

	prov := domain.Provenance(*provenance)
	if !domain.KnownProvenance(prov) {
		log.Fatalf("[BATCH] unknown provenance %q", *provenance)
	}

	aliases, err := aliasmap.Load(cfg.AliasMap.Path)
	if err != nil {
		// No alias map, no batch: a silent fallback would mis-assign
		// brand families for the whole run.
		log.Fatalf("[BATCH] failed to load alias map: %v", err)
	}

	store, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("[BATCH] failed to open catalog store: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, path := range *importFiles {
		result, err := importer.ImportFile(path, prov)
		if err != nil {
			log.Fatalf("[BATCH] import %s: %v", path, err)
		}
		written, err := store.InsertRawRecords(ctx, result.Records)
		if err != nil {
			log.Fatalf("[BATCH] store import %s: %v", path, err)
		}
		log.Printf("[BATCH] imported %s: %d records (%d skipped)", path, written, result.Skipped)
	}

	resolver := usecase.NewResolutionService(store, aliases, usecase.ResolutionConfig{
		SimilarityThreshold: cfg.Matching.SimilarityThreshold,
		EnableFuzzyMatching: cfg.Matching.EnableFuzzyMatching,
		EnableDebugLogging:  cfg.Matching.EnableDebugLogging,
	})

	report, err := resolver.Run(ctx, usecase.BatchOptions{
		BrandFilter: *brandFilter,
		Execute:     *execute,
	})
	if err != nil {
		log.Fatalf("[BATCH] resolution failed: %v", err)
	}

	if err := os.MkdirAll(*reportDir, 0o755); err != nil {
		log.Fatalf("[BATCH] mkdir report dir: %v", err)
	}
	reportPath := filepath.Join(*reportDir, fmt.Sprintf("batch_%s.md", report.BatchID))
	if err := os.WriteFile(reportPath, []byte(renderReport(report)), 0o644); err != nil {
		log.Fatalf("[BATCH] write report: %v", err)
	}

	fmt.Printf("Batch: %s (%s)\n", report.BatchID, report.Mode)
	fmt.Printf("Records in: %d\n", report.RecordsIn)
	fmt.Printf("Groups: %d (%d merged, %d fuzzy members)\n", report.Groups, report.MergedGroups, report.FuzzyMembers)
	fmt.Printf("Review flagged: %d, merge failures: %d\n", report.ReviewFlagged, report.MergeFailures)
	if report.DryRun != nil {
		fmt.Printf("Dry run: %d created, %d updated, %d unchanged, %d failed\n",
			report.DryRun.Created, report.DryRun.Updated, report.DryRun.Unchanged, report.DryRun.WriteFailures)
	}
	if report.Execute != nil {
		fmt.Printf("Executed: %d created, %d updated, %d unchanged, %d failed\n",
			report.Execute.Created, report.Execute.Updated, report.Execute.Unchanged, report.Execute.WriteFailures)
	} else {
		fmt.Println("Dry run only; re-run with --execute to apply.")
	}
	fmt.Printf("Report: %s\n", reportPath)
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime)
	log.SetOutput(os.Stdout)
}
