package main

import (
	"fmt"
	"strings"

	"github.com/petfooddb/catalog/internal/usecase"
)

// renderReport renders one batch report as markdown. The dry-run diff
// is always included; per-product changes are listed so a reviewer can
// audit a batch before (or after) executing it.
func renderReport(report *usecase.BatchReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Resolution batch %s\n\n", report.BatchID)
	fmt.Fprintf(&b, "- Mode: %s\n", report.Mode)
	if report.BrandFilter != "" {
		fmt.Fprintf(&b, "- Brand filter: %s\n", report.BrandFilter)
	}
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Finished: %s\n\n", report.FinishedAt.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Counts\n\n")
	fmt.Fprintf(&b, "- Records in: %d\n", report.RecordsIn)
	fmt.Fprintf(&b, "- Groups: %d\n", report.Groups)
	fmt.Fprintf(&b, "- Merged groups: %d\n", report.MergedGroups)
	fmt.Fprintf(&b, "- Fuzzy-matched members: %d\n", report.FuzzyMembers)
	fmt.Fprintf(&b, "- Flagged for review: %d\n", report.ReviewFlagged)
	fmt.Fprintf(&b, "- Merge failures (skipped): %d\n\n", report.MergeFailures)

	writeApply(&b, "Dry-run diff", report.DryRun)
	if report.Execute != nil {
		writeApply(&b, "Executed", report.Execute)
	}

	return b.String()
}

func writeApply(b *strings.Builder, title string, result *usecase.ApplyResult) {
	if result == nil {
		return
	}

	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "- Created: %d\n", result.Created)
	fmt.Fprintf(b, "- Updated: %d\n", result.Updated)
	fmt.Fprintf(b, "- Unchanged: %d\n", result.Unchanged)
	fmt.Fprintf(b, "- Write failures: %d\n", result.WriteFailures)
	for _, key := range result.FailedKeys {
		fmt.Fprintf(b, "  - failed: %s\n", key)
	}
	b.WriteString("\n")

	changed := 0
	for _, diff := range result.Diffs {
		if !diff.Changed() {
			continue
		}
		changed++
		verb := "update"
		if diff.Created {
			verb = "create"
		}
		fmt.Fprintf(b, "### %s %s\n\n", verb, diff.ProductKey)
		for _, change := range diff.Changes {
			if change.Previous != "" {
				fmt.Fprintf(b, "- %s: %q -> %q\n", change.Field, change.Previous, change.Value)
			} else {
				fmt.Fprintf(b, "- %s: %q\n", change.Field, change.Value)
			}
		}
		for _, id := range diff.VariantsAdded {
			fmt.Fprintf(b, "- variant: %s\n", id)
		}
		b.WriteString("\n")
	}
	if changed == 0 {
		b.WriteString("No changes.\n\n")
	}
}
