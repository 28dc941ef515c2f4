package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoreel-pipeline/types"
)

func mediaScenario() *types.Scenario {
	s := &types.Scenario{ID: "s1"}
	for i := 0; i < 3; i++ {
		s.Stages[i].Mood = "somber"
	}
	return s
}

func TestLoadStageMediaMissingAudioIsEmbedded(t *testing.T) {
	fakeTools(t, "4.2")
	dir := t.TempDir()
	for _, name := range []string{"video_1.mp4", "video_2.mp4", "video_3.mp4"} {
		writeDummy(t, dir, name)
	}

	clips, audio, err := LoadStageMedia(mediaScenario(), dir, 5)
	require.NoError(t, err)
	require.Len(t, clips, 3)
	assert.Empty(t, audio)
	for _, c := range clips {
		assert.True(t, c.HasAudio, "stage %d: no bed on disk means embedded audio", c.Stage)
		assert.InDelta(t, 4.2, c.Duration, 1e-9)
	}
}

func TestLoadStageMediaPicksUpBeds(t *testing.T) {
	fakeTools(t, "5.0")
	dir := t.TempDir()
	for _, name := range []string{"video_1.mp4", "video_2.mp4", "video_3.mp4", "audio_2.mp3"} {
		writeDummy(t, dir, name)
	}

	clips, audio, err := LoadStageMedia(mediaScenario(), dir, 5)
	require.NoError(t, err)
	require.Len(t, audio, 1)
	assert.Equal(t, 2, audio[0].Stage)
	assert.Equal(t, "somber", audio[0].Mood)
	assert.True(t, clips[0].HasAudio)
	assert.False(t, clips[1].HasAudio)
	assert.True(t, clips[2].HasAudio)
}

func TestLoadStageMediaMissingVideoFails(t *testing.T) {
	fakeTools(t, "5.0")
	dir := t.TempDir()
	writeDummy(t, dir, "video_1.mp4")

	_, _, err := LoadStageMedia(mediaScenario(), dir, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage 2")
}

func TestLoadStageMediaProbeFallback(t *testing.T) {
	fakeTools(t, "") // ffprobe output unparsable
	dir := t.TempDir()
	for _, name := range []string{"video_1.mp4", "video_2.mp4", "video_3.mp4"} {
		writeDummy(t, dir, name)
	}

	clips, _, err := LoadStageMedia(mediaScenario(), dir, 7.5)
	require.NoError(t, err)
	for _, c := range clips {
		assert.InDelta(t, 7.5, c.Duration, 1e-9)
	}
}
