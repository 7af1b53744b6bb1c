// Package logger provides logging implementations for orchestrator and
// executor progress: a terminal-facing ConsoleLogger with level filtering
// and color. The durable JSONL journal is written by the orchestrator
// itself, not by this package.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/taskgraph/taskgraph/internal/models"
)

var (
	summaryBoxOK = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2ECC71")).
			Padding(0, 1)

	summaryBoxFail = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#E74C3C")).
			Padding(0, 1)

	summaryTitle = lipgloss.NewStyle().Bold(true)
)

const (
	levelDebug int = 0
	levelInfo  int = 1
	levelWarn  int = 2
	levelError int = 3
)

// ConsoleLogger logs stage starts, step outcomes and journal entries to a
// writer with "[HH:MM:SS]" timestamps. Color output is enabled automatically
// when writing to a TTY.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    int
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger builds a ConsoleLogger writing to w. logLevel is one of
// "debug", "info", "warn", "error" (case-insensitive); unrecognized or empty
// values default to "info".
func NewConsoleLogger(w io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      w,
		logLevel:    normalizeLevel(logLevel),
		colorOutput: isTerminal(w),
	}
}

func isTerminal(w io.Writer) bool {
	switch w {
	case os.Stdout:
		return isatty.IsTerminal(os.Stdout.Fd())
	case os.Stderr:
		return isatty.IsTerminal(os.Stderr.Fd())
	default:
		return false
	}
}

func normalizeLevel(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(level int) bool {
	return level >= cl.logLevel
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func (cl *ConsoleLogger) write(s string) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writer.Write([]byte(s))
}

// LogStageStart logs the start of one stage, satisfying executor.Logger.
func (cl *ConsoleLogger) LogStageStart(stageIndex int, width int) {
	if !cl.shouldLog(levelInfo) {
		return
	}
	ts := timestamp()
	if cl.colorOutput {
		label := color.New(color.Bold).Sprintf("Stage %d", stageIndex)
		cl.write(fmt.Sprintf("[%s] Starting %s: %d sub-tasks\n", ts, label, width))
		return
	}
	cl.write(fmt.Sprintf("[%s] Starting stage %d: %d sub-tasks\n", ts, stageIndex, width))
}

// LogStepOutcome logs one completed sub-task, satisfying executor.Logger.
func (cl *ConsoleLogger) LogStepOutcome(outcome models.StepOutcome) {
	if !cl.shouldLog(levelDebug) {
		return
	}
	ts := timestamp()
	icon := "✓"
	if outcome.Status == models.SubTaskFailed {
		icon = "✗"
	}

	detail := outcome.NarrativeStep
	if outcome.Status == models.SubTaskFailed && outcome.ErrorDetails != "" {
		detail = fmt.Sprintf("%s: %s", detail, outcome.ErrorDetails)
	}

	if cl.colorOutput {
		var iconColored string
		if outcome.Status == models.SubTaskFailed {
			iconColored = color.New(color.FgRed).Sprint(icon)
		} else {
			iconColored = color.New(color.FgGreen).Sprint(icon)
		}
		role := color.New(color.FgMagenta).Sprint(outcome.AssignedAgentRole)
		cl.write(fmt.Sprintf("[%s] %s %s (%s): %s\n", ts, iconColored, role, outcome.ToolName, detail))
		return
	}
	cl.write(fmt.Sprintf("[%s] %s %s (%s): %s\n", ts, icon, outcome.AssignedAgentRole, outcome.ToolName, detail))
}

// LogJournalEntry logs one orchestrator journal event, satisfying
// orchestrator.Logger.
func (cl *ConsoleLogger) LogJournalEntry(parentTaskID string, entry models.JournalEntry) {
	level := levelInfo
	if entry.Event == models.EventCriticalError || entry.Event == models.EventExecutionAttemptFail {
		level = levelError
	}
	if !cl.shouldLog(level) {
		return
	}
	ts := timestamp()
	if cl.colorOutput {
		tag := color.New(color.FgCyan).Sprintf("[%s]", entry.Event)
		if level == levelError {
			tag = color.New(color.FgRed).Sprintf("[%s]", entry.Event)
		}
		cl.write(fmt.Sprintf("[%s] %s %s %s\n", ts, tag, parentTaskID, entry.Detail))
		return
	}
	cl.write(fmt.Sprintf("[%s] [%s] %s %s\n", ts, entry.Event, parentTaskID, entry.Detail))
}

// LogTaskSummary writes a bordered summary box for one completed
// HandleUserTask invocation: outcome, message, and, on success, whether a
// plan and a final answer were produced. Plain text when not on a TTY.
func (cl *ConsoleLogger) LogTaskSummary(parentTaskID string, result models.HandleUserTaskResult) {
	if !cl.shouldLog(levelInfo) {
		return
	}

	var lines []string
	if result.Success {
		lines = append(lines, summaryTitle.Render(fmt.Sprintf("task %s succeeded", parentTaskID)))
	} else {
		lines = append(lines, summaryTitle.Render(fmt.Sprintf("task %s failed", parentTaskID)))
	}
	if result.Message != "" {
		lines = append(lines, result.Message)
	}
	if result.Plan != nil {
		lines = append(lines, fmt.Sprintf("plan: %d stage(s)", len(result.Plan.Stages)))
	}
	if result.FinalAnswer != nil {
		lines = append(lines, "final answer produced")
	}
	if result.ErrorSummary != nil {
		lines = append(lines, "reason: "+result.ErrorSummary.Reason)
	}
	body := strings.Join(lines, "\n")

	if !cl.colorOutput {
		cl.write(body + "\n")
		return
	}

	box := summaryBoxOK
	if !result.Success {
		box = summaryBoxFail
	}
	cl.write(box.Render(body) + "\n")
}
