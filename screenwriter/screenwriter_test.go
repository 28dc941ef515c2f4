package screenwriter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoreel-pipeline/types"
)

const sampleResponse = `{
	"title": "What if **Rome** never fell?",
	"premise": "The Western Roman Empire survives the year 476.",
	"location_name": "Rome",
	"location_prompt": "the eternal city of Rome, marble forums and basalt streets",
	"stage_1": {"year": "476 AD", "label": "Rome, 476 AD", "description": "Legions hold the city gates against Odoacer.", "mood": "tense, stormy, torchlit"},
	"stage_2": {"year": "1200 AD", "label": "Rome, 1200 AD", "description": "A Roman renaissance of aqueducts and printing presses.", "mood": "golden, bustling, proud"},
	"stage_3": {"year": "2024 AD", "label": "Rome, 2024 AD", "description": "A gleaming imperial capital of glass towers around the Colosseum.", "mood": "futuristic, imperial, vast"}
}`

func TestParseScenario(t *testing.T) {
	scenario, err := parseScenario(sampleResponse)
	require.NoError(t, err)

	assert.Equal(t, "Rome", scenario.LocationName)
	assert.Equal(t, "The Western Roman Empire survives the year 476.", scenario.Premise)
	assert.Equal(t, types.StatusPending, scenario.Status)
	assert.True(t, strings.HasPrefix(scenario.ID, "scenario_"))
	assert.NotEmpty(t, scenario.CreatedAt)

	assert.Equal(t, "476 AD", scenario.Stage(1).Year)
	assert.Equal(t, "Rome, 1200 AD", scenario.Stage(2).Label)
	assert.Equal(t, "futuristic, imperial, vast", scenario.Stage(3).Mood)
}

func TestParseScenarioStripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + sampleResponse + "\n```"
	scenario, err := parseScenario(fenced)
	require.NoError(t, err)
	assert.Equal(t, "Rome", scenario.LocationName)
}

func TestParseScenarioRejectsIncomplete(t *testing.T) {
	_, err := parseScenario(`{"title": "x", "premise": "y"}`)
	require.Error(t, err)

	_, err = parseScenario(`not json at all`)
	require.Error(t, err)

	missingStage := `{
		"premise": "p", "location_name": "l",
		"stage_1": {"year": "1", "description": "d", "mood": "m"},
		"stage_2": {"year": "2", "description": "", "mood": "m"},
		"stage_3": {"year": "3", "description": "d", "mood": "m"}
	}`
	_, err = parseScenario(missingStage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage 2")
}

func TestBuildUserPromptAvoidList(t *testing.T) {
	prompt := buildUserPrompt([]string{"Rome survives", "Napoleon wins"})
	assert.Contains(t, prompt, "Rome survives")
	assert.Contains(t, prompt, "Napoleon wins")

	empty := buildUserPrompt(nil)
	assert.NotContains(t, empty, "existing premises")
}

func TestBuildUserPromptCapsAvoidList(t *testing.T) {
	premises := make([]string, 80)
	for i := range premises {
		premises[i] = "premise"
	}
	premises[0] = "oldest premise"
	premises[79] = "newest premise"

	prompt := buildUserPrompt(premises)
	assert.NotContains(t, prompt, "oldest premise")
	assert.Contains(t, prompt, "newest premise")
	assert.Equal(t, 50, strings.Count(prompt, "- "))
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON(`  {"a":1}  `))
}
