package costs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationCallScalesWithDuration(t *testing.T) {
	tr := NewTracker()

	five := tr.LogGenerationCall("fal", "fal-ai/minimax/hailuo-2.3/pro/image-to-video", "s1", "animation", 5)
	ten := tr.LogGenerationCall("fal", "fal-ai/minimax/hailuo-2.3/pro/image-to-video", "s1", "animation", 10)

	assert.InDelta(t, 0.10, five, 1e-9)
	assert.InDelta(t, 0.20, ten, 1e-9)
	assert.Equal(t, 2, tr.CallCount())
}

func TestBreakdowns(t *testing.T) {
	tr := NewTracker()
	tr.LogGenerationCall("fal", "fal-ai/flux/schnell", "s1", "keyframe", 0)
	tr.LogGenerationCall("fal", "fal-ai/flux/schnell", "s2", "keyframe", 0)
	tr.LogGeminiCall("gemini-2.0-flash", "s1", "scenario", 1000, 500)

	byService := tr.BreakdownByService()
	assert.Len(t, byService, 2)
	assert.InDelta(t, 0.006, byService["fal"], 1e-9)

	byOp := tr.BreakdownByOperation()
	assert.Contains(t, byOp, "keyframe")
	assert.Contains(t, byOp, "scenario")

	assert.InDelta(t, tr.SessionTotal(),
		tr.ScenarioTotal("s1")+tr.ScenarioTotal("s2"), 1e-9)
}

func TestUnknownModelFallbackEstimate(t *testing.T) {
	tr := NewTracker()
	cost := tr.LogGenerationCall("fal", "fal-ai/some-new-model", "s1", "keyframe", 5)
	assert.InDelta(t, 0.01, cost, 1e-9)
	assert.Equal(t, 1, tr.CallCount())
}

func TestSaveToFile(t *testing.T) {
	dir := t.TempDir()
	tr := NewTracker()
	tr.LogUpload("s1", 50<<20, "video")

	path, err := tr.SaveToFile(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Contains(t, out, "calls")
}
