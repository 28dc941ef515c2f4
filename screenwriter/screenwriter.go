package screenwriter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/genai"

	"chronoreel-pipeline/costs"
	"chronoreel-pipeline/types"
)

const systemPrompt = `You are a creative director for a short-form video channel about alternate history.
You invent "what if" scenarios showing how ONE location changes across THREE moments in time.

You MUST respond with ONLY valid JSON - no preamble, no markdown, no explanation.

The JSON must have exactly these fields:
- "title": a hook title; wrap the most dramatic words in ** markers (e.g. "What if **Rome** never fell?")
- "premise": one sentence stating the divergence (no "What if" prefix)
- "location_name": a single real, recognizable place that anchors every frame
- "stage_1", "stage_2", "stage_3": objects with:
  - "year": the year or era label for that stage
  - "label": short on-screen label (e.g. "Rome, 476 AD")
  - "description": 1-2 sentences describing the location at that moment
  - "mood": 2-3 comma-separated mood words
- "location_prompt": a visual description of the location usable in image prompts

Rules:
- The three stages must be chronological and escalate the divergence.
- Stage 1 shows the moment of divergence, stage 2 the turning point, stage 3 the new reality.
- Descriptions must be visual and concrete (architecture, weather, crowds, technology).
- The premise must be plausible enough to be interesting, surprising enough to be shareable.`

// scenarioJSON mirrors the structure Gemini returns.
type scenarioJSON struct {
	Title          string    `json:"title"`
	Premise        string    `json:"premise"`
	LocationName   string    `json:"location_name"`
	LocationPrompt string    `json:"location_prompt"`
	Stage1         stageJSON `json:"stage_1"`
	Stage2         stageJSON `json:"stage_2"`
	Stage3         stageJSON `json:"stage_3"`
}

type stageJSON struct {
	Year        string `json:"year"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Mood        string `json:"mood"`
}

// Writer generates alternate-history scenarios with Gemini.
type Writer struct {
	client  *genai.Client
	model   string
	tracker *costs.Tracker
}

// New creates a Writer. The API key comes from GOOGLE_API_KEY (or
// GEMINI_API_KEY), resolved by the genai client itself.
func New(ctx context.Context, model string, tracker *costs.Tracker) (*Writer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Writer{client: client, model: model, tracker: tracker}, nil
}

// Generate writes one new scenario, steering away from existing premises.
func (w *Writer) Generate(ctx context.Context, avoidPremises []string) (*types.Scenario, error) {
	log.Printf("[screenwriter] generating scenario via %s...", w.model)

	userPrompt := buildUserPrompt(avoidPremises)

	result, err := w.client.Models.GenerateContent(ctx, w.model, genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleModel),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](1.0),
		})
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	scenario, err := parseScenario(result.Text())
	if err != nil {
		return nil, err
	}

	w.tracker.LogGeminiCall(w.model, scenario.ID, "screenplay", 500, 1000)
	log.Printf("[screenwriter] scenario ready: %q (%s)", scenario.Premise, scenario.ID)
	return scenario, nil
}

func buildUserPrompt(avoidPremises []string) string {
	var sb strings.Builder
	sb.WriteString("Invent one new alternate-history scenario.\n\n")

	if len(avoidPremises) > 0 {
		sb.WriteString("Do NOT reuse or closely resemble any of these existing premises:\n")
		// Cap the avoid list so the prompt stays small on long-running sheets.
		start := 0
		if len(avoidPremises) > 50 {
			start = len(avoidPremises) - 50
		}
		for _, p := range avoidPremises[start:] {
			sb.WriteString("- " + p + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Respond ONLY with valid JSON. No markdown. No explanation.")
	return sb.String()
}

func parseScenario(content string) (*types.Scenario, error) {
	content = CleanJSON(content)

	var raw scenarioJSON
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse scenario JSON: %w\nraw content: %s", err, truncate(content, 200))
	}
	if raw.Premise == "" || raw.LocationName == "" {
		return nil, fmt.Errorf("scenario JSON missing premise or location")
	}

	scenario := &types.Scenario{
		ID:             types.NewScenarioID(),
		Title:          raw.Title,
		Premise:        raw.Premise,
		LocationName:   raw.LocationName,
		LocationPrompt: raw.LocationPrompt,
		Status:         types.StatusPending,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	for i, s := range []stageJSON{raw.Stage1, raw.Stage2, raw.Stage3} {
		scenario.Stages[i] = types.StageData{
			Year:        s.Year,
			Label:       s.Label,
			Description: s.Description,
			Mood:        s.Mood,
		}
		if scenario.Stages[i].Description == "" {
			return nil, fmt.Errorf("scenario JSON missing stage %d description", i+1)
		}
	}

	return scenario, nil
}

// CleanJSON strips markdown fences when the model wraps its reply in
// a code block despite JSON mode.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
