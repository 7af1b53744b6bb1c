package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const weatherTemplateJSON = `{
  "name": "weather_query",
  "pattern": "weather in (?P<city>.*)",
  "steps": [
    [
      {
        "AssignedAgentRole": "researcher",
        "ToolName": "web_search",
        "NarrativeStep": "look up weather in {{city}}",
        "SubTaskInput": {"query": "weather in {{city}}"}
      }
    ]
  ]
}`

func TestLoadTemplates_CompilesPatternAndStages(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weather.json"), []byte(weatherTemplateJSON), 0644))

	templates, err := LoadTemplates(dir)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	require.Equal(t, "weather_query", templates[0].Name)

	plan, ok := MatchTemplates(templates, "what is the weather in London")
	require.True(t, ok)
	require.Equal(t, "London", plan.Stages[0][0].SubTaskInput["query"].(string)[len("weather in "):])
}

func TestLoadTemplates_RejectsInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"name":"x","pattern":"(","steps":[]}`), 0644))

	_, err := LoadTemplates(dir)
	require.Error(t, err)
}

func TestLoadTemplates_RejectsMissingName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"pattern":"x","steps":[]}`), 0644))

	_, err := LoadTemplates(dir)
	require.Error(t, err)
}

func TestValidateTemplateDirectory_CountsTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weather.json"), []byte(weatherTemplateJSON), 0644))

	count, err := ValidateTemplateDirectory(dir)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
