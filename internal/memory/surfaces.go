package memory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskgraph/taskgraph/internal/models"
)

const (
	taskDefinitionFile     = "task_definition.md"
	chatHistoryFile        = "chat_history.jsonl"
	keyDecisionsFile       = "key_decisions_and_learnings.md"
	executionLogFile       = "execution_log_summary.md"
	finalAnswerArchiveFile = "final_answer_archive.md"
)

// WriteTaskDefinition persists the original user task as the task's
// markdown surface, written once at initialization.
func (s *Store) WriteTaskDefinition(userTaskString string) error {
	content := fmt.Sprintf("# Task\n\n%s\n", userTaskString)
	return s.OverwriteMemory(taskDefinitionFile, content, OverwriteOptions{})
}

// AppendChatTurn appends one {role, content} turn to the append-only chat
// history log.
func (s *Store) AppendChatTurn(turn models.ChatTurn) error {
	line, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("memory: marshal chat turn: %w", err)
	}
	return s.AppendToMemory(chatHistoryFile, string(line))
}

// GetLatestChatHistory returns the newest n chat turns, oldest first.
func (s *Store) GetLatestChatHistory(n int) ([]models.ChatTurn, error) {
	var turns []models.ChatTurn
	if err := s.readJSONLTail(chatHistoryFile, n, func(line []byte) error {
		var t models.ChatTurn
		if err := json.Unmarshal(line, &t); err != nil {
			return err
		}
		turns = append(turns, t)
		return nil
	}); err != nil {
		return nil, err
	}
	return turns, nil
}

// AppendKeyDecision appends a durable note to key_decisions_and_learnings.md,
// the one free-text append-only surface meant for human and model-authored
// commentary rather than structured records.
func (s *Store) AppendKeyDecision(note string) error {
	return s.AppendToMemory(keyDecisionsFile, strings.TrimRight(note, "\n"))
}

// OverwriteExecutionLogSummary replaces the human-readable execution log
// summary rendered after each Plan Executor run.
func (s *Store) OverwriteExecutionLogSummary(summary string) error {
	return s.OverwriteMemory(executionLogFile, summary, OverwriteOptions{})
}

// OverwriteFinalAnswerArchive persists the most recent synthesized final
// answer as a standalone markdown surface, independent of the task state
// file, so it survives a re-synthesis without needing the whole task state
// reloaded.
func (s *Store) OverwriteFinalAnswerArchive(answer string) error {
	return s.OverwriteMemory(finalAnswerArchiveFile, answer, OverwriteOptions{})
}
