package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// templateFile is the on-disk JSON shape of one plan template: name, a
// regex pattern (with optional named capture groups) matched against the
// user task string, and a parameterized stages array using "{{name}}"
// placeholders resolved from those captures.
type templateFile struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Stages  []Stage `json:"steps"`
}

// LoadTemplates reads every "*.json" file in dir and compiles it into a
// Template, in filename order. Malformed files fail the whole load: plan
// templates are effectively static configuration, not data a partial
// failure should silently narrow.
func LoadTemplates(dir string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("planner: read template directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	templates := make([]Template, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("planner: read template %s: %w", path, err)
		}

		var tf templateFile
		if err := json.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("planner: parse template %s: %w", path, err)
		}
		if tf.Name == "" {
			return nil, fmt.Errorf("planner: template %s has no name", path)
		}

		pattern, err := regexp.Compile(tf.Pattern)
		if err != nil {
			return nil, fmt.Errorf("planner: template %s has invalid pattern: %w", path, err)
		}

		templates = append(templates, Template{Name: tf.Name, Pattern: pattern, Stages: tf.Stages})
	}
	return templates, nil
}

// ValidateTemplateDirectory reads and compiles every template in dir
// without returning them, used by `taskgraph validate` to check a template
// directory at rest.
func ValidateTemplateDirectory(dir string) (int, error) {
	templates, err := LoadTemplates(dir)
	if err != nil {
		return 0, err
	}
	return len(templates), nil
}
