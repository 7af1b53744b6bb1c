package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/taskgraph/taskgraph/internal/models"
)

const (
	keyFindingsFile = "key_findings.jsonl"
	errorsFile      = "errors_encountered.jsonl"
)

// AddKeyFinding appends one record to the append-only findings log.
func (s *Store) AddKeyFinding(finding models.KeyFinding) error {
	line, err := json.Marshal(finding)
	if err != nil {
		return fmt.Errorf("memory: marshal key finding: %w", err)
	}
	return s.AppendToMemory(keyFindingsFile, string(line))
}

// AddErrorEncountered appends one record to the append-only errors log.
func (s *Store) AddErrorEncountered(rec models.ErrorRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory: marshal error record: %w", err)
	}
	return s.AppendToMemory(errorsFile, string(line))
}

// GetLatestKeyFindings returns the newest n findings, oldest first within
// the returned window (spec §4.1).
func (s *Store) GetLatestKeyFindings(n int) ([]models.KeyFinding, error) {
	var findings []models.KeyFinding
	if err := s.readJSONLTail(keyFindingsFile, n, func(line []byte) error {
		var f models.KeyFinding
		if err := json.Unmarshal(line, &f); err != nil {
			return err
		}
		findings = append(findings, f)
		return nil
	}); err != nil {
		return nil, err
	}
	return findings, nil
}

// GetLatestErrorsEncountered returns the newest n error records, oldest
// first within the returned window.
func (s *Store) GetLatestErrorsEncountered(n int) ([]models.ErrorRecord, error) {
	var errs []models.ErrorRecord
	if err := s.readJSONLTail(errorsFile, n, func(line []byte) error {
		var e models.ErrorRecord
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		errs = append(errs, e)
		return nil
	}); err != nil {
		return nil, err
	}
	return errs, nil
}

// readJSONLTail reads every line of an append-only JSONL file and invokes
// decode on the newest n, oldest first. Absence of the file is not an
// error: it yields zero records.
func (s *Store) readJSONLTail(name string, n int, decode func(line []byte) error) error {
	path := s.path(name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("memory: read %s: %w", name, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("memory: scan %s: %w", name, err)
	}

	start := 0
	if n > 0 && len(lines) > n {
		start = len(lines) - n
	}
	for _, line := range lines[start:] {
		if err := decode([]byte(line)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMemoryCorrupt, name, err)
		}
	}
	return nil
}
