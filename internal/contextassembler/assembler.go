// Package contextassembler builds the bounded-token "mega-context" string
// described in the orchestrator's core design: a single prompt-ready blob
// assembled from prioritized slices of a task's memory bank plus
// caller-supplied fields, under a hard token budget.
package contextassembler

import (
	"fmt"
	"strings"

	"github.com/taskgraph/taskgraph/internal/llm"
	"github.com/taskgraph/taskgraph/internal/models"
)

// SectionTag names one addressable slot in the priority order.
type SectionTag string

const (
	SectionSystemPrompt           SectionTag = "systemPrompt"
	SectionTaskDefinition         SectionTag = "taskDefinition"
	SectionUploadedFiles          SectionTag = "uploadedFiles"
	SectionOriginalUserTask       SectionTag = "originalUserTask"
	SectionCurrentProgressSummary SectionTag = "currentProgressSummary"
	SectionCurrentNextObjective   SectionTag = "currentNextObjective"
	SectionKeyFindings            SectionTag = "keyFindings"
	SectionRecentErrors           SectionTag = "recentErrorsSummary"
	SectionChatHistory            SectionTag = "chatHistory"
	SectionExecutionContext       SectionTag = "executionContext"
	SectionOverallExecutionResult SectionTag = "overallExecutionSuccess"
)

// DefaultPriorityOrder matches the order spec.md's narrative walks the
// memory bank in: system framing first, then static task framing, then the
// freshest dynamic state, then history.
var DefaultPriorityOrder = []SectionTag{
	SectionSystemPrompt,
	SectionTaskDefinition,
	SectionOriginalUserTask,
	SectionCurrentProgressSummary,
	SectionCurrentNextObjective,
	SectionUploadedFiles,
	SectionKeyFindings,
	SectionRecentErrors,
	SectionExecutionContext,
	SectionOverallExecutionResult,
	SectionChatHistory,
}

// Specification is the full set of recognized contextSpecification fields
// (spec §4.2).
type Specification struct {
	SystemPrompt          string
	IncludeTaskDefinition bool
	TaskDefinitionText    string
	UploadedFileLoader    func(relPath string) (string, error)
	UploadedFilePaths     []string

	KeyFindings                            []models.KeyFinding
	MaxLatestKeyFindings                   int
	IncludeRawContentForReferencedFindings bool
	RawContentLoader                       func(path string) (string, error)

	RecentErrorsSummary string
	ChatHistory         []models.ChatTurn
	ExecutionContext    string

	OriginalUserTask        string
	CurrentProgressSummary  string
	CurrentNextObjective    string
	OverallExecutionSuccess string

	MaxTokenLimit   int
	PriorityOrder   []SectionTag
	CustomPreamble  string
	CustomPostamble string
	RecordSeparator string
	FindingSeparator string

	EnableMegaContextCache     bool
	MegaContextCacheTTLSeconds int
}

// Result is what Assemble returns: either a successful bounded string and
// its token count, or a failure reason.
type Result struct {
	Success     bool
	ContextString string
	TokenCount  int
	Error       string
}

// Assemble implements the bounded-greedy algorithm from spec §4.2: walk the
// priority order, gate every addition against the remaining budget, never
// truncate mid-record, and re-tokenize the final string before declaring
// success.
func Assemble(spec Specification, tokenize llm.Tokenizer) Result {
	if spec.MaxTokenLimit <= 0 {
		return Result{Success: false, Error: "maxTokenLimit must be a positive integer"}
	}

	recordSep := spec.RecordSeparator
	if recordSep == "" {
		recordSep = "\n\n"
	}
	findingSep := spec.FindingSeparator
	if findingSep == "" {
		findingSep = "\n"
	}

	preambleTokens := tokenize(spec.CustomPreamble)
	postambleTokens := tokenize(spec.CustomPostamble)
	if preambleTokens+postambleTokens > spec.MaxTokenLimit {
		return Result{Success: false, Error: "preamble and postamble alone exceed maxTokenLimit"}
	}

	budget := spec.MaxTokenLimit - preambleTokens - postambleTokens
	order := spec.PriorityOrder
	if len(order) == 0 {
		order = DefaultPriorityOrder
	}

	var parts []string
	emitted := false

	emit := func(tag SectionTag, rendered string, critical bool) *Result {
		if rendered == "" {
			return nil
		}
		cost := tokenize(rendered)
		if emitted {
			cost += tokenize(recordSep)
		}
		if cost > budget {
			if critical {
				r := Result{Success: false, Error: fmt.Sprintf("%s does not fit within maxTokenLimit", tag)}
				return &r
			}
			return nil
		}
		if emitted {
			parts = append(parts, recordSep)
		}
		parts = append(parts, rendered)
		budget -= cost
		emitted = true
		return nil
	}

	for _, tag := range order {
		switch tag {
		case SectionSystemPrompt:
			if r := emit(tag, spec.SystemPrompt, true); r != nil {
				return *r
			}
		case SectionTaskDefinition:
			if spec.IncludeTaskDefinition {
				if r := emit(tag, spec.TaskDefinitionText, false); r != nil {
					return *r
				}
			}
		case SectionOriginalUserTask:
			if r := emit(tag, spec.OriginalUserTask, false); r != nil {
				return *r
			}
		case SectionCurrentProgressSummary:
			if r := emit(tag, spec.CurrentProgressSummary, false); r != nil {
				return *r
			}
		case SectionCurrentNextObjective:
			if r := emit(tag, spec.CurrentNextObjective, false); r != nil {
				return *r
			}
		case SectionUploadedFiles:
			if r := emit(tag, renderUploadedFiles(spec), false); r != nil {
				return *r
			}
		case SectionKeyFindings:
			rendered, fits := renderKeyFindingsNewestFirst(spec, tokenize, findingSep, budget)
			if !fits {
				continue
			}
			if r := emit(tag, rendered, false); r != nil {
				return *r
			}
		case SectionRecentErrors:
			if r := emit(tag, spec.RecentErrorsSummary, false); r != nil {
				return *r
			}
		case SectionExecutionContext:
			if r := emit(tag, spec.ExecutionContext, false); r != nil {
				return *r
			}
		case SectionOverallExecutionResult:
			if r := emit(tag, spec.OverallExecutionSuccess, false); r != nil {
				return *r
			}
		case SectionChatHistory:
			rendered, fits := renderChatHistoryNewestFirst(spec, tokenize, budget)
			if !fits {
				continue
			}
			if r := emit(tag, rendered, false); r != nil {
				return *r
			}
		}
	}

	var final strings.Builder
	final.WriteString(spec.CustomPreamble)
	for _, p := range parts {
		final.WriteString(p)
	}
	final.WriteString(spec.CustomPostamble)

	assembled := final.String()
	finalTokens := tokenize(assembled)
	if finalTokens > spec.MaxTokenLimit {
		return Result{Success: false, Error: "assembled context exceeds maxTokenLimit after final tokenization"}
	}
	return Result{Success: true, ContextString: assembled, TokenCount: finalTokens}
}

func renderUploadedFiles(spec Specification) string {
	if spec.UploadedFileLoader == nil || len(spec.UploadedFilePaths) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range spec.UploadedFilePaths {
		content, err := spec.UploadedFileLoader(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n", p, content)
	}
	return b.String()
}

// renderKeyFindingsNewestFirst walks findings newest-first and stops as
// soon as one does not fit, per spec §4.2 step 3 ("do not skip-and-continue").
func renderKeyFindingsNewestFirst(spec Specification, tokenize llm.Tokenizer, sep string, budget int) (string, bool) {
	findings := spec.KeyFindings
	if spec.MaxLatestKeyFindings > 0 && len(findings) > spec.MaxLatestKeyFindings {
		findings = findings[len(findings)-spec.MaxLatestKeyFindings:]
	}
	var kept []string
	remaining := budget
	for i := len(findings) - 1; i >= 0; i-- {
		rendered := renderFinding(spec, findings[i])
		cost := tokenize(rendered)
		if len(kept) > 0 {
			cost += tokenize(sep)
		}
		if cost > remaining {
			break
		}
		kept = append([]string{rendered}, kept...)
		remaining -= cost
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, sep), true
}

func renderFinding(spec Specification, f models.KeyFinding) string {
	if f.Data.Kind == models.KeyFindingReference && spec.IncludeRawContentForReferencedFindings {
		if spec.RawContentLoader != nil {
			if content, err := spec.RawContentLoader(f.Data.RawContentPath); err == nil {
				return fmt.Sprintf("[%s/%s] %s", f.SourceToolName, f.SourceStepNarrative, content)
			}
		}
		if f.Data.Preview != "" {
			return fmt.Sprintf("[%s/%s] %s", f.SourceToolName, f.SourceStepNarrative, f.Data.Preview)
		}
	}
	return fmt.Sprintf("[%s/%s] %v", f.SourceToolName, f.SourceStepNarrative, f.Data.Content)
}

// renderChatHistoryNewestFirst mirrors renderKeyFindingsNewestFirst's
// stop-on-first-miss rule for chat turns.
func renderChatHistoryNewestFirst(spec Specification, tokenize llm.Tokenizer, budget int) (string, bool) {
	var kept []string
	remaining := budget
	for i := len(spec.ChatHistory) - 1; i >= 0; i-- {
		turn := spec.ChatHistory[i]
		rendered := fmt.Sprintf("%s: %s", turn.Role, turn.Content)
		cost := tokenize(rendered)
		if len(kept) > 0 {
			cost += tokenize("\n")
		}
		if cost > remaining {
			break
		}
		kept = append([]string{rendered}, kept...)
		remaining -= cost
	}
	if len(kept) == 0 {
		return "", false
	}
	return strings.Join(kept, "\n"), true
}
