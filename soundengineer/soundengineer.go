package soundengineer

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
	"chronoreel-pipeline/types"
)

// Engineer generates per-stage ambient audio beds via Fal.ai.
type Engineer struct {
	fal      *falclient.Client
	cfg      *config.ModelConfig
	baseMood string
	tracker  *costs.Tracker

	callGap time.Duration
}

// New builds an Engineer. baseMood is the channel-wide audio character
// appended to every stage prompt.
func New(fal *falclient.Client, cfg *config.ModelConfig, baseMood string, tracker *costs.Tracker) *Engineer {
	return &Engineer{fal: fal, cfg: cfg, baseMood: baseMood, tracker: tracker, callGap: time.Second}
}

// GenerateAll produces audio_{stage}.mp3 for every clip that has no
// embedded audio track. Stages whose clips carry native audio are
// skipped entirely.
func (e *Engineer) GenerateAll(ctx context.Context, scenario *types.Scenario, clips []types.VideoClip, outputDir string) ([]types.AudioClip, error) {
	audio := make([]types.AudioClip, 0, len(clips))
	first := true
	for _, clip := range clips {
		if clip.HasAudio {
			log.Printf("[soundengineer] stage %d clip has embedded audio, skipping", clip.Stage)
			continue
		}
		if e.fal == nil {
			// Kie-only runs with generate_audio off land here.
			log.Printf("[soundengineer] ⚠️  no Fal client configured, stage %d gets no ambient bed", clip.Stage)
			continue
		}
		if !first {
			time.Sleep(e.callGap)
		}
		first = false

		ac, err := e.generate(ctx, scenario, clip.Stage, outputDir)
		if err != nil {
			return nil, fmt.Errorf("stage %d audio: %w", clip.Stage, err)
		}
		audio = append(audio, *ac)
	}

	if len(audio) > 0 {
		log.Printf("[soundengineer] ✅ %d ambient tracks generated", len(audio))
	}
	return audio, nil
}

func (e *Engineer) generate(ctx context.Context, scenario *types.Scenario, stageNum int, outputDir string) (*types.AudioClip, error) {
	stage := scenario.Stage(stageNum)
	prompt := stage.AudioPrompt
	if prompt == "" {
		prompt = stage.Mood + " ambience, " + stage.Description
	}
	if e.baseMood != "" {
		prompt += ", " + e.baseMood
	}

	model := e.cfg.FalAudio.Model
	duration := e.cfg.FalAudio.Duration
	log.Printf("[soundengineer] stage %d ambience: %s", stageNum, truncate(prompt, 80))

	result, err := e.fal.Subscribe(ctx, model, BuildArgs(model, prompt, duration))
	if err != nil {
		return nil, fmt.Errorf("fal %s: %w", model, err)
	}
	url, err := result.AudioURL()
	if err != nil {
		return nil, err
	}

	outFile := filepath.Join(outputDir, fmt.Sprintf("audio_%d.mp3", stageNum))
	if err := falclient.Download(ctx, url, outFile); err != nil {
		return nil, fmt.Errorf("download audio: %w", err)
	}
	e.tracker.LogGenerationCall("fal", model, scenario.ID, "ambience", duration)

	return &types.AudioClip{Stage: stageNum, Path: outFile, Duration: duration, Mood: stage.Mood}, nil
}

// BuildArgs shapes the request for the configured audio model. The
// sound-effects endpoints disagree on parameter names.
func BuildArgs(model, prompt string, duration float64) map[string]any {
	switch {
	case strings.Contains(model, "elevenlabs"):
		return map[string]any{"text": prompt, "duration_seconds": duration}
	case strings.Contains(model, "stable-audio"):
		return map[string]any{"prompt": prompt, "seconds_total": duration}
	default:
		return map[string]any{"prompt": prompt, "duration": duration}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
