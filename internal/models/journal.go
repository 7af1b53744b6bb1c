package models

import "time"

// JournalEventType enumerates the typed events the orchestrator appends at
// every significant state transition (spec §4.7, SPEC_FULL §2.2).
type JournalEventType string

const (
	EventPlanningStarted       JournalEventType = "PLANNING_STARTED"
	EventPlanningSucceeded     JournalEventType = "PLANNING_SUCCEEDED"
	EventExecutionAttemptStart JournalEventType = "EXECUTION_ATTEMPT_STARTED"
	EventExecutionAttemptOK    JournalEventType = "EXECUTION_ATTEMPT_SUCCESS"
	EventExecutionAttemptFail  JournalEventType = "EXECUTION_ATTEMPT_FAILED"
	EventReplanningStarted     JournalEventType = "REPLANNING_STARTED"
	EventReplanningSuccess     JournalEventType = "REPLANNING_SUCCESS"
	EventReplanningExhausted   JournalEventType = "REPLANNING_EXHAUSTED"
	EventCWCUpdated            JournalEventType = "CWC_UPDATED"
	EventSynthesisStarted      JournalEventType = "SYNTHESIS_STARTED"
	EventSynthesisCompleted    JournalEventType = "SYNTHESIS_COMPLETED"
	EventCriticalError         JournalEventType = "CRITICAL_ERROR"
)

// JournalEntry is one line of orchestrator_journal.jsonl. Entries are
// appended in real time order and never rewritten.
type JournalEntry struct {
	Timestamp time.Time        `json:"timestamp"`
	Event     JournalEventType `json:"event"`
	Detail    string           `json:"detail,omitempty"`
	Data      map[string]any   `json:"data,omitempty"`
}

// NewJournalEntry builds an entry stamped with the given time; callers pass
// timestamps explicitly so the orchestrator's clock source stays
// injectable in tests.
func NewJournalEntry(at time.Time, event JournalEventType, detail string) JournalEntry {
	return JournalEntry{Timestamp: at, Event: event, Detail: detail}
}
