package models

// KeyFindingDataKind distinguishes an inline finding from one that points at
// a raw-content file kept outside the findings log.
type KeyFindingDataKind string

const (
	KeyFindingInline    KeyFindingDataKind = "inline"
	KeyFindingReference KeyFindingDataKind = "reference_to_raw_content"
)

// KeyFindingData is either inline content or a pointer to a raw-content file
// plus a short preview, so the append-only findings log stays small even
// when a tool's raw output does not.
type KeyFindingData struct {
	Kind           KeyFindingDataKind `json:"type"`
	Content        any                `json:"content,omitempty"`
	RawContentPath string             `json:"rawContentPath,omitempty"`
	Preview        string             `json:"preview,omitempty"`
}

// KeyFinding is appended by the executor, never mutated, and consulted by
// replanning, CWC update, and synthesis.
type KeyFinding struct {
	ID                  string         `json:"id"`
	SourceStepNarrative string         `json:"sourceStepNarrative"`
	SourceToolName      string         `json:"sourceToolName"`
	Data                KeyFindingData `json:"data"`
}

// ErrorRecord has the same append-only, never-mutated lifecycle as
// KeyFinding.
type ErrorRecord struct {
	ErrorID             string `json:"errorId"`
	SourceStepNarrative string `json:"sourceStepNarrative"`
	SourceToolName      string `json:"sourceToolName"`
	ErrorMessage        string `json:"errorMessage"`
	Timestamp           string `json:"timestamp"`
}
