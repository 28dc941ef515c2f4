package cinematographer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/types"
)

func TestMotionPromptPrefersImprovedPrompt(t *testing.T) {
	stage := &types.StageData{
		Description: "a crumbling forum at dusk",
		ImagePrompt: "crumbling Roman forum, golden hour, cinematic",
	}
	style := config.StyleConfig{VideoPrompt: "slow push-in"}

	got := MotionPrompt(stage, style)
	assert.Equal(t, "crumbling Roman forum, golden hour, cinematic. slow push-in", got)
}

func TestMotionPromptFallsBackToDescription(t *testing.T) {
	stage := &types.StageData{Description: "a crumbling forum at dusk"}

	got := MotionPrompt(stage, config.StyleConfig{})
	assert.Equal(t, "a crumbling forum at dusk", got)
}
