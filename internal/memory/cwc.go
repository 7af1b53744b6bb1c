package memory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskgraph/taskgraph/internal/models"
)

const (
	cwcJSONFile = "current_working_context.json"
	cwcMDFile   = "cwc.md"
)

// LoadCWC returns the persisted CWC snapshot, or a zero-value snapshot if
// none has been written yet.
func (s *Store) LoadCWC() (models.CurrentWorkingContext, error) {
	raw, err := s.LoadMemory(cwcJSONFile, LoadOptions{IsJSON: true})
	if err != nil {
		return models.CurrentWorkingContext{}, err
	}
	if raw == "" {
		return models.CurrentWorkingContext{}, nil
	}
	var cwc models.CurrentWorkingContext
	if err := json.Unmarshal([]byte(raw), &cwc); err != nil {
		return models.CurrentWorkingContext{}, fmt.Errorf("%w: %s: %v", ErrMemoryCorrupt, cwcJSONFile, err)
	}
	return cwc, nil
}

// OverwriteCWC persists the CWC snapshot both as structured JSON and as a
// markdown surface (spec §3 "persisted both as structured record and as a
// markdown surface"). The snapshot is a single mutable record: each call
// replaces the prior one whole, never appends.
func (s *Store) OverwriteCWC(cwc models.CurrentWorkingContext) error {
	data, err := json.MarshalIndent(cwc, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal cwc: %w", err)
	}
	if err := s.OverwriteMemory(cwcJSONFile, string(data), OverwriteOptions{IsJSON: true}); err != nil {
		return err
	}
	rendered := renderCWCMarkdown(cwc)
	if err := validateMarkdown(rendered); err != nil {
		return err
	}
	return s.OverwriteMemory(cwcMDFile, rendered, OverwriteOptions{})
}

// renderCWCMarkdown turns a CWC snapshot into the human-readable markdown
// surface. Content is plain markdown; goldmark is used to validate it
// parses cleanly before it is written, the same defensive check the
// teacher's markdown parser applies to agent-authored plan files.
func renderCWCMarkdown(cwc models.CurrentWorkingContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Current Working Context\n\n")
	fmt.Fprintf(&b, "_Last updated: %s_\n\n", cwc.LastUpdatedAt)
	fmt.Fprintf(&b, "## Progress\n\n%s\n\n", cwc.SummaryOfProgress)
	fmt.Fprintf(&b, "## Next Objective\n\n%s\n\n", cwc.NextObjective)
	fmt.Fprintf(&b, "## Confidence\n\n%.2f\n\n", cwc.ConfidenceScore)
	if len(cwc.IdentifiedEntities) > 0 {
		fmt.Fprintf(&b, "## Identified Entities\n\n")
		for _, e := range cwc.IdentifiedEntities {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}
	if len(cwc.PendingQuestions) > 0 {
		fmt.Fprintf(&b, "## Pending Questions\n\n")
		for _, q := range cwc.PendingQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}
