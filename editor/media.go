package editor

import (
	"fmt"
	"os"
	"path/filepath"

	"chronoreel-pipeline/types"
)

// LoadStageMedia rebuilds clip records from a scenario directory's
// expected layout, for runs resumed after animation finished.
// video_{1..3}.mp4 must exist; a stage without audio_{n}.mp3 is treated
// as having embedded audio. Durations come from ffprobe, falling back
// to fallbackDur when probing fails.
func LoadStageMedia(scenario *types.Scenario, dir string, fallbackDur float64) ([]types.VideoClip, []types.AudioClip, error) {
	var clips []types.VideoClip
	var audio []types.AudioClip

	for n := 1; n <= 3; n++ {
		videoPath := filepath.Join(dir, fmt.Sprintf("video_%d.mp4", n))
		if _, err := os.Stat(videoPath); err != nil {
			return nil, nil, fmt.Errorf("missing clip for stage %d: %s", n, videoPath)
		}
		dur, err := ProbeDuration(videoPath)
		if err != nil || dur <= 0 {
			dur = fallbackDur
		}

		audioPath := filepath.Join(dir, fmt.Sprintf("audio_%d.mp3", n))
		hasBed := false
		if _, err := os.Stat(audioPath); err == nil {
			hasBed = true
			aDur, err := ProbeDuration(audioPath)
			if err != nil || aDur <= 0 {
				aDur = dur
			}
			audio = append(audio, types.AudioClip{Stage: n, Path: audioPath, Duration: aDur, Mood: scenario.Stage(n).Mood})
		}
		clips = append(clips, types.VideoClip{Stage: n, Path: videoPath, Duration: dur, HasAudio: !hasBed})
	}
	return clips, audio, nil
}
