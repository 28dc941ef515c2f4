package editor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/types"
)

// Editor composites the three stage clips, their audio beds, and the
// text overlays into the final vertical video.
type Editor struct {
	cfg       config.EditorConfig
	outputDir string
}

func New(cfg config.EditorConfig, outputDir string) *Editor {
	return &Editor{cfg: cfg, outputDir: outputDir}
}

// Assemble renders final_cut.mp4 from per-stage clips and optional
// audio beds. Stages are concatenated in ascending order, with an
// optional teaser cut from the final stage prepended.
func (e *Editor) Assemble(ctx context.Context, scenario *types.Scenario, clips []types.VideoClip, audio []types.AudioClip) (string, error) {
	if len(clips) != 3 {
		return "", fmt.Errorf("expected 3 stage clips, got %d", len(clips))
	}
	sort.Slice(clips, func(i, j int) bool { return clips[i].Stage < clips[j].Stage })

	audioByStage := make(map[int]types.AudioClip, len(audio))
	for _, a := range audio {
		audioByStage[a.Stage] = a
	}

	labels := [3]string{}
	for i := 0; i < 3; i++ {
		labels[i] = scenario.Stages[i].Label
	}

	var segments []string

	// the title overlay belongs to whichever segment starts the video
	title := scenario.Title
	if e.cfg.Teaser.Enabled && e.cfg.Teaser.Duration > 0 {
		teaser, err := e.renderTeaser(ctx, clips[2], labels, title)
		if err != nil {
			return "", err
		}
		segments = append(segments, teaser)
		title = ""
	}

	for _, clip := range clips {
		segment, err := e.renderSegment(ctx, scenario, clip, audioByStage, labels, title)
		if err != nil {
			return "", err
		}
		segments = append(segments, segment)
	}

	return e.concat(ctx, segments)
}

func (e *Editor) renderSegment(ctx context.Context, scenario *types.Scenario, clip types.VideoClip, audioByStage map[int]types.AudioClip, labels [3]string, title string) (string, error) {
	log.Printf("[editor] rendering stage %d segment...", clip.Stage)

	videoDur := e.measuredDuration(clip.Path, clip.Duration)
	bed, hasBed := audioByStage[clip.Stage]
	audioDur := 0.0
	if hasBed {
		audioDur = e.measuredDuration(bed.Path, bed.Duration)
	}
	plan := Reconcile(videoDur, audioDur)

	args := []string{"-y"}
	if plan.VideoLoops > 0 {
		args = append(args, "-stream_loop", fmt.Sprintf("%d", plan.VideoLoops))
	}
	args = append(args, "-i", clip.Path)
	if hasBed {
		if plan.AudioLoops > 0 {
			args = append(args, "-stream_loop", fmt.Sprintf("%d", plan.AudioLoops))
		}
		args = append(args, "-i", bed.Path)
	}

	if clip.Stage != 1 {
		title = ""
	}
	filters := stageFilters(labels, scenario.Stages[clip.Stage-1].Label, title, clip.Stage, clip.Stage)
	args = append(args, "-filter_complex", "[0:v]"+filters+"[v]", "-map", "[v]")
	if hasBed {
		args = append(args, "-map", "1:a")
	} else {
		// embedded audio when the video model generated one
		args = append(args, "-map", "0:a?")
	}

	outFile := filepath.Join(e.outputDir, fmt.Sprintf("segment_%d.mp4", clip.Stage))
	args = append(args, e.encodeArgs(plan.Target)...)
	args = append(args, outFile)

	if err := e.runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("render stage %d: %w", clip.Stage, err)
	}
	return outFile, nil
}

// renderTeaser cuts a short slice from the final stage's footage with
// every ranking label already revealed. It opens the video, so it also
// carries the title overlay.
func (e *Editor) renderTeaser(ctx context.Context, finalClip types.VideoClip, labels [3]string, title string) (string, error) {
	log.Printf("[editor] rendering %.1fs teaser...", e.cfg.Teaser.Duration)

	filters := stageFilters(labels, "", title, 0, 3)
	outFile := filepath.Join(e.outputDir, "teaser.mp4")

	args := []string{"-y", "-i", finalClip.Path,
		"-filter_complex", "[0:v]" + filters + "[v]", "-map", "[v]", "-map", "0:a?"}
	args = append(args, e.encodeArgs(e.cfg.Teaser.Duration)...)
	args = append(args, outFile)

	if err := e.runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("render teaser: %w", err)
	}
	return outFile, nil
}

func (e *Editor) concat(ctx context.Context, segments []string) (string, error) {
	log.Printf("[editor] concatenating %d segments...", len(segments))

	listFile := filepath.Join(e.outputDir, "concat.txt")
	var lines []string
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("file '%s'", s))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", err
	}

	outFile := filepath.Join(e.outputDir, "final_cut.mp4")
	args := []string{"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-movflags", "+faststart",
		outFile,
	}
	if err := e.runFFmpeg(ctx, args); err != nil {
		return "", fmt.Errorf("ffmpeg concat: %w", err)
	}

	log.Printf("[editor] ✅ final cut ready: %s", outFile)
	return outFile, nil
}

// encodeArgs keeps every segment encoding identical so the concat
// step can stream-copy.
func (e *Editor) encodeArgs(duration float64) []string {
	return []string{
		"-t", fmt.Sprintf("%.3f", duration),
		"-r", fmt.Sprintf("%d", e.cfg.FPS),
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "22",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
	}
}

func (e *Editor) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// measuredDuration probes the real container duration, falling back to
// the provider-reported one when ffprobe is unavailable.
func (e *Editor) measuredDuration(path string, fallback float64) float64 {
	dur, err := ProbeDuration(path)
	if err != nil || dur <= 0 {
		return fallback
	}
	return dur
}

// ProbeDuration reads a media file's duration in seconds via ffprobe.
func ProbeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	var dur float64
	_, err = fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &dur)
	return dur, err
}
