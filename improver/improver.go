package improver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/costs"
	"chronoreel-pipeline/screenwriter"
	"chronoreel-pipeline/types"
)

const systemPrompt = `You turn scenario stage descriptions into production-ready generation prompts.

You MUST respond with ONLY valid JSON, exactly:
{"image_prompt": "...", "audio_prompt": "..."}

image_prompt rules:
- Cinematic still-frame description of the given location at the given moment.
- Keep the location visually recognizable and consistent across stages.
- Include lighting, atmosphere, camera framing. Vertical 9:16 composition.
- No text, no watermarks, no people looking at camera.

audio_prompt rules:
- Short ambient soundscape description matching the stage mood.
- Environmental sound only: no music genre names, no lyrics, no speech.`

// Improver refines stage descriptions into image and audio prompts.
type Improver struct {
	client  *genai.Client
	model   string
	style   config.StyleConfig
	tracker *costs.Tracker
}

func New(ctx context.Context, model string, style config.StyleConfig, tracker *costs.Tracker) (*Improver, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Improver{client: client, model: model, style: style, tracker: tracker}, nil
}

// ImproveAll fills ImagePrompt and AudioPrompt on every stage of the
// scenario. A failed Gemini call falls back to assembling prompts from
// the raw stage fields so the pipeline never stalls here.
func (im *Improver) ImproveAll(ctx context.Context, scenario *types.Scenario) {
	for n := 1; n <= 3; n++ {
		stage := scenario.Stage(n)
		imagePrompt, audioPrompt, err := im.improveStage(ctx, scenario, n)
		if err != nil {
			log.Printf("[improver] stage %d fell back to raw prompts: %v", n, err)
			imagePrompt, audioPrompt = FallbackPrompts(stage, im.style)
		} else {
			im.tracker.LogGeminiCall(im.model, scenario.ID, "prompt_improve", 400, 200)
		}
		stage.ImagePrompt = imagePrompt
		stage.AudioPrompt = audioPrompt
		log.Printf("[improver] stage %d image prompt: %s", n, truncate(imagePrompt, 80))
	}
}

func (im *Improver) improveStage(ctx context.Context, scenario *types.Scenario, n int) (string, string, error) {
	stage := scenario.Stage(n)

	userPrompt := fmt.Sprintf(`Location: %s
Location visuals: %s
Stage %d of 3 (%s): %s
Mood: %s
Visual style to apply: %s

Respond ONLY with the JSON object.`,
		scenario.LocationName, scenario.LocationPrompt,
		n, stage.Year, stage.Description, stage.Mood, im.style.ImageSuffix)

	result, err := im.client.Models.GenerateContent(ctx, im.model, genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleModel),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return "", "", fmt.Errorf("gemini request: %w", err)
	}

	var parsed struct {
		ImagePrompt string `json:"image_prompt"`
		AudioPrompt string `json:"audio_prompt"`
	}
	content := screenwriter.CleanJSON(result.Text())
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", "", fmt.Errorf("parse improver JSON: %w", err)
	}
	if parsed.ImagePrompt == "" || parsed.AudioPrompt == "" {
		return "", "", fmt.Errorf("improver JSON missing prompts")
	}
	return parsed.ImagePrompt, parsed.AudioPrompt, nil
}

// FallbackPrompts assembles usable prompts straight from the stage
// fields when the improver call fails.
func FallbackPrompts(stage *types.StageData, style config.StyleConfig) (string, string) {
	imagePrompt := stage.Description
	if style.ImageSuffix != "" {
		imagePrompt += ", " + style.ImageSuffix
	}
	audioPrompt := stage.Description + " ambience"
	if stage.Mood != "" {
		audioPrompt = stage.Mood + " ambience, " + stage.Description
	}
	return imagePrompt, audioPrompt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
