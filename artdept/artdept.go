package artdept

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/costs"
	"chronoreel-pipeline/falclient"
	"chronoreel-pipeline/kieclient"
	"chronoreel-pipeline/screenwriter"
	"chronoreel-pipeline/types"
)

// Department generates the three stage keyframes and verifies location
// consistency with a vision check before anything is animated.
type Department struct {
	fal        *falclient.Client
	kie        *kieclient.Client
	gemini     *genai.Client
	cfg        *config.ModelConfig
	tracker    *costs.Tracker
	maxRetries int
}

func New(ctx context.Context, fal *falclient.Client, kie *kieclient.Client, cfg *config.ModelConfig, maxRetries int, tracker *costs.Tracker) (*Department, error) {
	gemini, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Department{fal: fal, kie: kie, gemini: gemini, cfg: cfg, tracker: tracker, maxRetries: maxRetries}, nil
}

// GenerateKeyframes produces keyframe_1..3.png under outputDir. Stage 1
// is text-to-image; stages 2 and 3 are image-to-image chained off the
// stage 1 hosted URL so the location stays recognizable. The vision gate
// then compares the three frames with each other; a set that fails the
// consistency check is regenerated whole, up to maxRetries times.
func (d *Department) GenerateKeyframes(ctx context.Context, scenario *types.Scenario, outputDir string) ([]types.Keyframe, error) {
	for n := 1; n <= 3; n++ {
		if scenario.Stage(n).ImagePrompt == "" {
			return nil, fmt.Errorf("stage %d has no image prompt", n)
		}
	}

	var lastReason string
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		log.Printf("[artdept] keyframe set, attempt %d/%d...", attempt, d.maxRetries)

		keyframes, err := d.generateSet(ctx, scenario, outputDir)
		if err != nil {
			if attempt == d.maxRetries {
				return nil, err
			}
			log.Printf("[artdept] generation failed, retrying: %v", err)
			continue
		}

		if !d.cfg.Gemini.VisionGate.Enabled {
			log.Printf("[artdept] ✅ all 3 keyframes generated (vision gate disabled)")
			return keyframes, nil
		}

		pass, reason, err := d.verifyConsistency(ctx, scenario, keyframes)
		if err != nil {
			// A broken verifier should not block production.
			log.Printf("[artdept] vision check errored, accepting keyframes: %v", err)
			return keyframes, nil
		}
		if pass {
			log.Printf("[artdept] ✅ keyframe set passed vision check")
			return keyframes, nil
		}
		lastReason = reason
		log.Printf("[artdept] ⚠️  keyframe set rejected: %s", reason)
	}
	return nil, fmt.Errorf("keyframes rejected after %d attempts: %s", d.maxRetries, lastReason)
}

// generateSet produces one complete chain of three keyframes. Stage 1
// restarts from scratch on every call so a rejected set gets a fresh
// base image, not the same one re-edited.
func (d *Department) generateSet(ctx context.Context, scenario *types.Scenario, outputDir string) ([]types.Keyframe, error) {
	keyframes := make([]types.Keyframe, 0, 3)
	var baseURL string

	for n := 1; n <= 3; n++ {
		keyframe, err := d.generateOne(ctx, scenario, n, baseURL, outputDir)
		if err != nil {
			return nil, fmt.Errorf("stage %d keyframe: %w", n, err)
		}
		if n == 1 {
			baseURL = keyframe.URL
		}
		keyframes = append(keyframes, *keyframe)
	}
	return keyframes, nil
}

func (d *Department) generateOne(ctx context.Context, scenario *types.Scenario, n int, baseURL, outputDir string) (*types.Keyframe, error) {
	stage := scenario.Stage(n)
	outFile := filepath.Join(outputDir, fmt.Sprintf("keyframe_%d.png", n))

	var hostedURL, model string
	var err error
	if d.kie != nil && d.cfg.Kie.Enabled {
		hostedURL, model, err = d.generateKie(ctx, stage.ImagePrompt, baseURL)
	} else {
		hostedURL, model, err = d.generateFal(ctx, stage.ImagePrompt, baseURL)
	}
	if err != nil {
		return nil, err
	}

	if err := falclient.Download(ctx, hostedURL, outFile); err != nil {
		return nil, fmt.Errorf("download keyframe: %w", err)
	}
	d.tracker.LogGenerationCall(serviceName(d.kie != nil && d.cfg.Kie.Enabled), model, scenario.ID, "keyframe", 0)

	return &types.Keyframe{Stage: n, Path: outFile, URL: hostedURL, Prompt: stage.ImagePrompt}, nil
}

func (d *Department) generateFal(ctx context.Context, prompt, baseURL string) (string, string, error) {
	var model string
	args := map[string]any{
		"prompt": prompt,
		"image_size": map[string]any{
			"width":  d.cfg.Fal.ImageSize.Width,
			"height": d.cfg.Fal.ImageSize.Height,
		},
	}
	if baseURL == "" {
		model = d.cfg.Fal.TextToImage.Model
		args["num_inference_steps"] = d.cfg.Fal.TextToImage.NumInferenceSteps
	} else {
		model = d.cfg.Fal.ImageToImage.Model
		args["image_url"] = baseURL
		args["strength"] = d.cfg.Fal.ImageToImage.Strength
		args["num_inference_steps"] = d.cfg.Fal.ImageToImage.NumInferenceSteps
	}

	result, err := d.fal.Subscribe(ctx, model, args)
	if err != nil {
		return "", "", fmt.Errorf("fal %s: %w", model, err)
	}
	url, err := result.ImageURL()
	if err != nil {
		return "", "", err
	}
	return url, model, nil
}

func (d *Department) generateKie(ctx context.Context, prompt, baseURL string) (string, string, error) {
	var result *kieclient.ImageResult
	var err error
	if baseURL == "" {
		result, err = d.kie.GenerateImage(ctx, prompt, "9:16")
	} else {
		result, err = d.kie.EditImage(ctx, prompt, baseURL, "9:16")
	}
	if err != nil {
		return "", "", fmt.Errorf("kie image: %w", err)
	}
	return result.ImageURL, "nano-banana-pro", nil
}

func serviceName(kie bool) string {
	if kie {
		return "kie"
	}
	return "fal"
}

const visionPrompt = `You are a continuity checker for a video production.
The three attached images are keyframes of the same location at three
points in time, in order. Verify they show the same location
consistently: same vantage point and landmark geometry, with only the
era-appropriate changes described below.

Location: %s
Frame 1: %s
Frame 2: %s
Frame 3: %s

Reject the set if any frame shows a different location or vantage point,
has visible text or watermarking, or is malformed.

Respond with ONLY valid JSON: {"pass": true|false, "reason": "..."}`

// consistencyParts assembles the vision request: the comparison prompt
// followed by all three frames in stage order, so the model judges them
// against each other, not one at a time.
func consistencyParts(scenario *types.Scenario, frames [][]byte) []*genai.Part {
	prompt := fmt.Sprintf(visionPrompt, scenario.LocationName,
		scenario.Stage(1).Description,
		scenario.Stage(2).Description,
		scenario.Stage(3).Description)

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, frame := range frames {
		parts = append(parts, genai.NewPartFromBytes(frame, "image/png"))
	}
	return parts
}

func (d *Department) verifyConsistency(ctx context.Context, scenario *types.Scenario, keyframes []types.Keyframe) (bool, string, error) {
	frames := make([][]byte, 0, len(keyframes))
	for _, kf := range keyframes {
		data, err := os.ReadFile(kf.Path)
		if err != nil {
			return false, "", fmt.Errorf("read keyframe: %w", err)
		}
		frames = append(frames, data)
	}

	parts := consistencyParts(scenario, frames)
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	result, err := d.gemini.Models.GenerateContent(ctx, d.cfg.Gemini.Model, contents,
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"})
	if err != nil {
		return false, "", fmt.Errorf("vision check: %w", err)
	}
	d.tracker.LogGeminiCall(d.cfg.Gemini.Model, scenario.ID, "vision_gate", 3000, 50)

	return parseVerdict(result.Text())
}

func parseVerdict(content string) (bool, string, error) {
	content = screenwriter.CleanJSON(content)

	var verdict struct {
		Pass   bool   `json:"pass"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		// Some models answer with a bare PASS/FAIL despite JSON mode.
		upper := strings.ToUpper(content)
		if strings.Contains(upper, "PASS") && !strings.Contains(upper, "FAIL") {
			return true, "", nil
		}
		if strings.Contains(upper, "FAIL") {
			return false, content, nil
		}
		return false, "", fmt.Errorf("parse vision verdict: %w", err)
	}
	return verdict.Pass, verdict.Reason, nil
}
