package artdept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoreel-pipeline/types"
)

func TestConsistencyPartsCompareAllFrames(t *testing.T) {
	scenario := &types.Scenario{LocationName: "Rome"}
	scenario.Stages[0].Description = "a thriving forum"
	scenario.Stages[1].Description = "the forum in ruins"
	scenario.Stages[2].Description = "the forum rebuilt in glass"

	frames := [][]byte{[]byte("png1"), []byte("png2"), []byte("png3")}
	parts := consistencyParts(scenario, frames)

	// one request carries the prompt and every frame together
	require.Len(t, parts, 4)
	require.NotEmpty(t, parts[0].Text)
	for i := 1; i <= 3; i++ {
		require.NotNil(t, parts[i].InlineData, "part %d should be an image", i)
		assert.Equal(t, "image/png", parts[i].InlineData.MIMEType)
	}

	prompt := parts[0].Text
	assert.Contains(t, prompt, "Rome")
	assert.Contains(t, prompt, "a thriving forum")
	assert.Contains(t, prompt, "the forum in ruins")
	assert.Contains(t, prompt, "the forum rebuilt in glass")
	assert.Contains(t, prompt, "same location")
}

func TestParseVerdict(t *testing.T) {
	pass, reason, err := parseVerdict(`{"pass": true, "reason": "location matches"}`)
	require.NoError(t, err)
	assert.True(t, pass)
	assert.Equal(t, "location matches", reason)

	pass, reason, err = parseVerdict(`{"pass": false, "reason": "wrong city"}`)
	require.NoError(t, err)
	assert.False(t, pass)
	assert.Equal(t, "wrong city", reason)
}

func TestParseVerdictFencedJSON(t *testing.T) {
	pass, _, err := parseVerdict("```json\n{\"pass\": true, \"reason\": \"ok\"}\n```")
	require.NoError(t, err)
	assert.True(t, pass)
}

func TestParseVerdictBareText(t *testing.T) {
	pass, _, err := parseVerdict("PASS")
	require.NoError(t, err)
	assert.True(t, pass)

	pass, reason, err := parseVerdict("FAIL: the location is unrecognizable")
	require.NoError(t, err)
	assert.False(t, pass)
	assert.Contains(t, reason, "unrecognizable")

	_, _, err = parseVerdict("no verdict here")
	require.Error(t, err)
}
