package planner

import (
	"fmt"
	"regexp"

	"github.com/taskgraph/taskgraph/internal/models"
)

// Template is one configured plan template: a pattern matched against the
// user task string, and a parameterized stage shape whose {{captureName}}
// placeholders are substituted from the pattern's named capture groups.
type Template struct {
	Name    string
	Pattern *regexp.Regexp
	Stages  []Stage
}

// Stage is a template's parameterized form of models.Stage: sub-task input
// values may contain "{{name}}" placeholders resolved from the matched
// pattern's named groups.
type Stage []SubTaskTemplate

// SubTaskTemplate mirrors models.SubTaskDefinition but allows placeholder
// substitution in NarrativeStep and any string-valued SubTaskInput entry.
type SubTaskTemplate struct {
	AssignedAgentRole string
	ToolName          string
	SubTaskInput      map[string]any
	NarrativeStep     string
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// MatchTemplates tries each template in order and instantiates the first
// whose pattern matches userTaskString, substituting the pattern's named
// capture groups into the template's stages (spec §4.6 step 1).
func MatchTemplates(templates []Template, userTaskString string) (models.Plan, bool) {
	for _, tmpl := range templates {
		match := tmpl.Pattern.FindStringSubmatch(userTaskString)
		if match == nil {
			continue
		}
		captures := make(map[string]string)
		for i, name := range tmpl.Pattern.SubexpNames() {
			if i == 0 || name == "" {
				continue
			}
			captures[name] = match[i]
		}
		return instantiate(tmpl, captures), true
	}
	return models.Plan{}, false
}

func instantiate(tmpl Template, captures map[string]string) models.Plan {
	plan := models.Plan{Source: models.PlanSourceTemplate}
	for _, stage := range tmpl.Stages {
		var outStage models.Stage
		for _, sub := range stage {
			outStage = append(outStage, models.SubTaskDefinition{
				AssignedAgentRole: sub.AssignedAgentRole,
				ToolName:          sub.ToolName,
				NarrativeStep:     substitute(sub.NarrativeStep, captures),
				SubTaskInput:      substituteInput(sub.SubTaskInput, captures),
			})
		}
		plan.Stages = append(plan.Stages, outStage)
	}
	return plan
}

func substitute(s string, captures map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(ph string) string {
		name := placeholderPattern.FindStringSubmatch(ph)[1]
		if v, ok := captures[name]; ok {
			return v
		}
		return ph
	})
}

func substituteInput(input map[string]any, captures map[string]string) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		if s, ok := v.(string); ok {
			out[k] = substitute(s, captures)
			continue
		}
		out[k] = v
	}
	return out
}

// MustPattern compiles a named-group regex and panics on error, for use in
// static template table literals.
func MustPattern(expr string) *regexp.Regexp {
	re, err := regexp.Compile(expr)
	if err != nil {
		panic(fmt.Sprintf("planner: invalid template pattern %q: %v", expr, err))
	}
	return re
}
