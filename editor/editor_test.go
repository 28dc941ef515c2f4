package editor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/types"
)

// fakeTools puts stub ffmpeg/ffprobe scripts on PATH. The ffmpeg stub
// appends its argv to a log and writes a dummy output file; the ffprobe
// stub prints probeOut as the duration. Returns the argv log path.
func fakeTools(t *testing.T, probeOut string) string {
	t.Helper()
	bin := t.TempDir()
	logPath := filepath.Join(bin, "ffmpeg_args.log")

	ffmpeg := `#!/bin/sh
echo "$@" >> "$FFMPEG_ARGS_LOG"
for a in "$@"; do out="$a"; done
printf fake > "$out"
`
	ffprobe := fmt.Sprintf("#!/bin/sh\necho \"%s\"\n", probeOut)
	require.NoError(t, os.WriteFile(filepath.Join(bin, "ffmpeg"), []byte(ffmpeg), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "ffprobe"), []byte(ffprobe), 0755))

	t.Setenv("FFMPEG_ARGS_LOG", logPath)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	return logPath
}

func writeDummy(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("media"), 0644))
	return path
}

func assembleScenario() *types.Scenario {
	s := &types.Scenario{Title: "What if **Rome** won?"}
	for i := 0; i < 3; i++ {
		s.Stages[i].Label = fmt.Sprintf("Rome, stage %d", i+1)
	}
	return s
}

func TestAssembleProducesFinalCut(t *testing.T) {
	logPath := fakeTools(t, "5.0")
	dir := t.TempDir()

	clips := []types.VideoClip{
		{Stage: 1, Path: writeDummy(t, dir, "video_1.mp4"), Duration: 5, HasAudio: true},
		{Stage: 2, Path: writeDummy(t, dir, "video_2.mp4"), Duration: 5},
		{Stage: 3, Path: writeDummy(t, dir, "video_3.mp4"), Duration: 5, HasAudio: true},
	}
	audio := []types.AudioClip{
		{Stage: 2, Path: writeDummy(t, dir, "audio_2.mp3"), Duration: 5},
	}

	ed := New(config.EditorConfig{FPS: 24, Teaser: config.TeaserConfig{Enabled: true, Duration: 2}}, dir)
	final, err := ed.Assemble(context.Background(), assembleScenario(), clips, audio)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "final_cut.mp4"), final)

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	argLog, err := os.ReadFile(logPath)
	require.NoError(t, err)
	log := string(argLog)

	// teaser + three segments + concat
	lines := strings.Split(strings.TrimSpace(log), "\n")
	require.Len(t, lines, 5)
	// the title opens the video: on the teaser, not repeated on stage 1
	assert.Contains(t, lines[0], "What if")
	assert.NotContains(t, lines[1], "What if")
	assert.Contains(t, log, "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920")
	// each stage runs its probed duration, the teaser its configured slice
	assert.Contains(t, log, "-t 5.000")
	assert.Contains(t, log, "-t 2.000")
	// stage 2 maps its separate bed, the others keep embedded audio
	assert.Contains(t, log, "-map 1:a")
	assert.Contains(t, log, "-map 0:a?")
	assert.Contains(t, log, "-f concat")
	assert.Contains(t, log, "-c copy")
}

func TestAssembleRequiresThreeClips(t *testing.T) {
	ed := New(config.EditorConfig{FPS: 24}, t.TempDir())
	_, err := ed.Assemble(context.Background(), assembleScenario(),
		[]types.VideoClip{{Stage: 1}}, nil)
	assert.Error(t, err)
}
