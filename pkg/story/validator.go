package story

// PathCount is the approximate exit-edge count for a single chapter: Total
// statically enumerable exits versus exits covered by the reachability
// simulation.
type PathCount struct {
	Total   int `json:"total"`
	Covered int `json:"covered"`
}

// ValidationReport is the full result of a validation run. It is produced
// fresh each run and is never persisted as game state. A non-empty
// BrokenReferences or UndefinedVariables is the signal callers use to refuse
// publishing content; Validate itself always returns a complete report.
type ValidationReport struct {
	// BrokenReferences maps a referenced-but-undefined chapter id to the
	// chapters referencing it.
	BrokenReferences map[string][]string `json:"broken_references,omitempty"`
	// UndefinedVariables maps a read-but-never-written variable name to the
	// chapters reading it.
	UndefinedVariables map[string][]string `json:"undefined_variables,omitempty"`
	// Malformed lists structural defects found by the collector.
	Malformed []string `json:"malformed,omitempty"`
	// PathCounts holds per-chapter exit-edge counts.
	PathCounts map[string]PathCount `json:"path_counts"`
	// CoveragePercentage is covered edges over total edges, as a percentage.
	// Zero when the model has no exit edges at all.
	CoveragePercentage float64 `json:"coverage_percentage"`
}

// Clean reports whether the content is publishable.
func (r *ValidationReport) Clean() bool {
	return len(r.BrokenReferences) == 0 && len(r.UndefinedVariables) == 0 && len(r.Malformed) == 0
}

// Validate checks the model for broken chapter references and variables read
// before any choice writes them, and runs the coverage simulation. It is pure
// and deterministic for a fixed model, and never fails: all defects are
// accumulated into the report.
func Validate(m *ContentModel) *ValidationReport {
	refs := Collect(m)

	report := &ValidationReport{
		BrokenReferences:   make(map[string][]string),
		UndefinedVariables: make(map[string][]string),
		Malformed:          refs.Malformed,
		PathCounts:         make(map[string]PathCount, m.Len()),
	}

	for target, referrers := range refs.Referenced {
		if _, ok := m.Chapter(target); !ok {
			report.BrokenReferences[target] = referrers
		}
	}

	for variable, readers := range refs.Reads {
		if _, written := refs.Writes[variable]; !written {
			report.UndefinedVariables[variable] = readers
		}
	}

	for _, id := range m.IDs() {
		c, _ := m.Chapter(id)
		report.PathCounts[id] = PathCount{Total: countExitEdges(c, refs)}
	}

	// Reachability simulation: BFS from the entry chapter over every
	// statically enumerable exit edge. A visited chapter counts as fully
	// covered; variable-value cross-products are deliberately not
	// enumerated, so coverage is approximate by design.
	visited := make(map[string]bool)
	queue := []string{m.EntryID()}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		c, ok := m.Chapter(id)
		if !ok {
			continue // broken reference, already reported
		}
		pc := report.PathCounts[id]
		pc.Covered = pc.Total
		report.PathCounts[id] = pc

		for _, target := range exitTargets(c) {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	var total, covered int
	for _, pc := range report.PathCounts {
		total += pc.Total
		covered += pc.Covered
	}
	if total > 0 {
		report.CoveragePercentage = float64(covered) / float64(total) * 100
	}

	return report
}

// countExitEdges counts a chapter's statically enumerable exits following the
// transition precedence: each choice with an explicit next_chapter is one
// exit; choices with next_dialogue stay inside the chapter; the chapter-level
// conditional (one edge per value branch, including default, for each
// variable some choice writes) or, absent that, the unconditional
// next_chapter, is counted once for the fall-through path. A chapter with
// none of these is terminal with zero exits.
func countExitEdges(c *Chapter, refs *Refs) int {
	var total int
	for _, ch := range c.Choices {
		if ch.NextChapter != "" {
			total++
		}
	}
	for _, step := range c.Dialogues {
		for _, ch := range step.Choices {
			if ch.NextChapter != "" {
				total++
			}
		}
	}

	if len(c.ConditionalNext) > 0 {
		for variable, branches := range c.ConditionalNext {
			if _, written := refs.Writes[variable]; !written {
				continue
			}
			total += len(branches)
		}
		return total
	}
	if c.NextChapter != "" {
		total++
	}
	return total
}

// exitTargets enumerates every chapter id reachable from c in one transition:
// explicit choice targets, every conditional branch including default, and
// the unconditional successor. Sorted for deterministic traversal.
func exitTargets(c *Chapter) []string {
	var targets []string
	for _, ch := range c.Choices {
		if ch.NextChapter != "" {
			targets = append(targets, ch.NextChapter)
		}
	}
	for _, step := range c.Dialogues {
		for _, ch := range step.Choices {
			if ch.NextChapter != "" {
				targets = append(targets, ch.NextChapter)
			}
		}
	}
	for _, branches := range c.ConditionalNext {
		for _, target := range branches {
			if target != "" {
				targets = append(targets, target)
			}
		}
	}
	if c.NextChapter != "" {
		targets = append(targets, c.NextChapter)
	}
	return dedupSorted(targets)
}
