package cinematographer

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/costs"
	"chronoreel-pipeline/falclient"
	"chronoreel-pipeline/kieclient"
	"chronoreel-pipeline/types"
)

// Cinematographer animates the verified keyframes into short clips.
type Cinematographer struct {
	fal     *falclient.Client
	kie     *kieclient.Client
	cfg     *config.ModelConfig
	style   config.StyleConfig
	tracker *costs.Tracker

	// pause between provider calls, shrunk in tests
	callGap time.Duration
}

func New(fal *falclient.Client, kie *kieclient.Client, cfg *config.ModelConfig, style config.StyleConfig, tracker *costs.Tracker) *Cinematographer {
	return &Cinematographer{fal: fal, kie: kie, cfg: cfg, style: style, tracker: tracker, callGap: time.Second}
}

// AnimateAll turns each keyframe into video_{stage}.mp4 under outputDir.
// The keyframe's hosted URL feeds the image-to-video model, so nothing
// is re-uploaded.
func (c *Cinematographer) AnimateAll(ctx context.Context, scenario *types.Scenario, keyframes []types.Keyframe, outputDir string) ([]types.VideoClip, error) {
	clips := make([]types.VideoClip, 0, len(keyframes))
	for i, kf := range keyframes {
		if i > 0 {
			time.Sleep(c.callGap)
		}

		clip, err := c.animate(ctx, scenario, kf, outputDir)
		if err != nil {
			return nil, fmt.Errorf("stage %d animation: %w", kf.Stage, err)
		}
		clips = append(clips, *clip)
		log.Printf("[cinematographer] stage %d clip ready (%.1fs, audio=%t)", clip.Stage, clip.Duration, clip.HasAudio)
	}

	log.Printf("[cinematographer] ✅ all %d clips animated", len(clips))
	return clips, nil
}

func (c *Cinematographer) animate(ctx context.Context, scenario *types.Scenario, kf types.Keyframe, outputDir string) (*types.VideoClip, error) {
	prompt := MotionPrompt(scenario.Stage(kf.Stage), c.style)
	outFile := filepath.Join(outputDir, fmt.Sprintf("video_%d.mp4", kf.Stage))
	log.Printf("[cinematographer] animating stage %d: %s", kf.Stage, truncate(prompt, 80))

	if c.kie != nil && c.cfg.Kie.Enabled {
		return c.animateKie(ctx, scenario, kf, prompt, outFile)
	}
	return c.animateFal(ctx, scenario, kf, prompt, outFile)
}

func (c *Cinematographer) animateFal(ctx context.Context, scenario *types.Scenario, kf types.Keyframe, prompt, outFile string) (*types.VideoClip, error) {
	model := c.cfg.FalVideo.Model
	result, err := c.fal.Subscribe(ctx, model, map[string]any{
		"prompt":       prompt,
		"image_url":    kf.URL,
		"duration":     c.cfg.FalVideo.Duration,
		"aspect_ratio": "9:16",
	})
	if err != nil {
		return nil, fmt.Errorf("fal %s: %w", model, err)
	}
	videoURL, err := result.VideoURL()
	if err != nil {
		return nil, err
	}
	if err := falclient.Download(ctx, videoURL, outFile); err != nil {
		return nil, fmt.Errorf("download clip: %w", err)
	}
	c.tracker.LogGenerationCall("fal", model, scenario.ID, "animation", c.cfg.FalVideo.Duration)

	return &types.VideoClip{Stage: kf.Stage, Path: outFile, Duration: c.cfg.FalVideo.Duration, HasAudio: false}, nil
}

func (c *Cinematographer) animateKie(ctx context.Context, scenario *types.Scenario, kf types.Keyframe, prompt, outFile string) (*types.VideoClip, error) {
	sd := c.cfg.KieVideo.Seedance
	result, err := c.kie.GenerateVideo(ctx, sd.Model, prompt, kf.URL, sd.Duration, sd.Resolution, sd.AspectRatio, sd.GenerateAudio)
	if err != nil {
		return nil, fmt.Errorf("kie %s: %w", sd.Model, err)
	}
	if err := falclient.Download(ctx, result.VideoURL, outFile); err != nil {
		return nil, fmt.Errorf("download clip: %w", err)
	}
	c.tracker.LogGenerationCall("kie", sd.Model, scenario.ID, "animation", float64(sd.Duration))

	return &types.VideoClip{Stage: kf.Stage, Path: outFile, Duration: float64(sd.Duration), HasAudio: result.HasAudio}, nil
}

// MotionPrompt combines the stage's visual prompt with the style's
// camera-motion direction.
func MotionPrompt(stage *types.StageData, style config.StyleConfig) string {
	base := stage.ImagePrompt
	if base == "" {
		base = stage.Description
	}
	if style.VideoPrompt == "" {
		return base
	}
	return base + ". " + style.VideoPrompt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
