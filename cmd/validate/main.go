package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/disparter/toguwaka-discord-game-sub002/internal/storage"
	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// Validates a chapter content directory before publishing: broken chapter
// references, variables read before any choice writes them, malformed
// documents, and a reachability coverage report.
func main() {
	dir := "./data/chapters"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	entry := ""
	if len(os.Args) > 2 {
		entry = os.Args[2]
	}

	fmt.Printf("Validating %s...\n", dir)

	model, err := storage.LoadContentDir(dir, entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	report := story.Validate(model)
	printReport(model, report)

	if !report.Clean() {
		os.Exit(1)
	}
	fmt.Println("Content is valid!")
}

func printReport(model *story.ContentModel, report *story.ValidationReport) {
	fmt.Printf("Chapters: %d (entry: %s)\n", model.Len(), model.EntryID())

	if len(report.BrokenReferences) > 0 {
		fmt.Println("\nBroken references:")
		for _, target := range sortedKeys(report.BrokenReferences) {
			fmt.Printf("  - %q referenced by %v but not defined\n", target, report.BrokenReferences[target])
		}
	}

	if len(report.UndefinedVariables) > 0 {
		fmt.Println("\nUndefined variables (read but never written):")
		for _, variable := range sortedKeys(report.UndefinedVariables) {
			fmt.Printf("  - %q read by %v\n", variable, report.UndefinedVariables[variable])
		}
	}

	if len(report.Malformed) > 0 {
		fmt.Println("\nMalformed content:")
		for _, msg := range report.Malformed {
			fmt.Printf("  - %s\n", msg)
		}
	}

	fmt.Println("\nPath coverage:")
	ids := make([]string, 0, len(report.PathCounts))
	for id := range report.PathCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		pc := report.PathCounts[id]
		marker := ""
		if pc.Covered < pc.Total {
			marker = "  (unreached)"
		}
		fmt.Printf("  %-24s %d/%d%s\n", id, pc.Covered, pc.Total, marker)
	}
	fmt.Printf("Coverage: %.1f%%\n", report.CoveragePercentage)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
