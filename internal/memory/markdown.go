package memory

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

var markdownValidator = goldmark.New()

// validateMarkdown parses content with goldmark and discards the rendered
// output, the same sanity check the teacher's markdown parser applies to
// plan files before trusting their structure. A markdown surface that fails
// to parse indicates a rendering bug, not bad input, since every field
// rendered here is orchestrator-controlled.
func validateMarkdown(content string) error {
	var discard bytes.Buffer
	if err := markdownValidator.Convert([]byte(content), &discard); err != nil {
		return fmt.Errorf("memory: render markdown surface: %w", err)
	}
	return nil
}
