package costs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Per-call price estimates. Video rates are for a 5s clip and scale
// linearly with duration.
var pricing = map[string]float64{
	"fal-ai/nano-banana-pro":                        0.01,
	"fal-ai/nano-banana-pro/edit":                   0.015,
	"fal-ai/flux/schnell":                           0.003,
	"fal-ai/flux/dev/image-to-image":                0.025,
	"fal-ai/flux-pro":                               0.05,
	"fal-ai/minimax/hailuo-2.3/pro/image-to-video":  0.10,
	"fal-ai/kling-video/v1.6/pro/image-to-video":    0.10,
	"bytedance/seedance-1.5-pro":                    0.12,
	"fal-ai/cassetteai/sound-effects":               0.01,
	"fal-ai/elevenlabs/tts":                         0.01,
}

type geminiRate struct{ input, output float64 }

var geminiPricing = map[string]geminiRate{
	"gemini-2.0-flash": {input: 0.075 / 1e6, output: 0.30 / 1e6},
	"gemini-2.5-flash": {input: 0.15 / 1e6, output: 0.60 / 1e6},
}

const gcsPerGB = 0.12

// Call is one recorded external API call.
type Call struct {
	Timestamp     string         `json:"timestamp"`
	Service       string         `json:"service"`
	Model         string         `json:"model"`
	ScenarioID    string         `json:"scenario_id"`
	Operation     string         `json:"operation"`
	EstimatedCost float64        `json:"estimated_cost"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Tracker accumulates estimated API costs for one pipeline run.
// It is passed explicitly to every component that makes external calls,
// never held as package state.
type Tracker struct {
	calls        []Call
	sessionStart time.Time
}

// NewTracker starts a fresh accumulator.
func NewTracker() *Tracker {
	return &Tracker{sessionStart: time.Now()}
}

func (t *Tracker) record(service, model, scenarioID, operation string, cost float64, metadata map[string]any) float64 {
	t.calls = append(t.calls, Call{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Service:       service,
		Model:         model,
		ScenarioID:    scenarioID,
		Operation:     operation,
		EstimatedCost: cost,
		Metadata:      metadata,
	})
	return cost
}

// LogGenerationCall records an image/video/audio generation call against
// either provider. Unknown models fall back to a $0.01 estimate.
func (t *Tracker) LogGenerationCall(service, model, scenarioID, operation string, durationSec float64) float64 {
	cost, ok := pricing[model]
	if !ok {
		cost = 0.01
	}
	metadata := map[string]any{}
	if durationSec > 0 {
		cost = cost * (durationSec / 5.0)
		metadata["duration_seconds"] = durationSec
	}
	return t.record(service, model, scenarioID, operation, cost, metadata)
}

// LogGeminiCall records a text/vision call with token estimates.
func (t *Tracker) LogGeminiCall(model, scenarioID, operation string, inputTokens, outputTokens int) float64 {
	rate, ok := geminiPricing[model]
	if !ok {
		rate = geminiRate{input: 0.0001 / 1e3, output: 0.0003 / 1e3}
	}
	cost := float64(inputTokens)*rate.input + float64(outputTokens)*rate.output
	return t.record("gemini", model, scenarioID, operation, cost, map[string]any{
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	})
}

// LogUpload records a cloud storage upload by size.
func (t *Tracker) LogUpload(scenarioID string, sizeBytes int64, fileType string) float64 {
	cost := float64(sizeBytes) / (1 << 30) * gcsPerGB
	return t.record("gcs", "storage", scenarioID, "upload_"+fileType, cost, map[string]any{
		"file_size_bytes": sizeBytes,
		"file_type":       fileType,
	})
}

// SessionTotal is the estimated cost of everything recorded so far.
func (t *Tracker) SessionTotal() float64 {
	var total float64
	for _, c := range t.calls {
		total += c.EstimatedCost
	}
	return total
}

// ScenarioTotal is the estimated cost attributed to one scenario.
func (t *Tracker) ScenarioTotal(scenarioID string) float64 {
	var total float64
	for _, c := range t.calls {
		if c.ScenarioID == scenarioID {
			total += c.EstimatedCost
		}
	}
	return total
}

// BreakdownByService sums costs per service name.
func (t *Tracker) BreakdownByService() map[string]float64 {
	out := make(map[string]float64)
	for _, c := range t.calls {
		out[c.Service] += c.EstimatedCost
	}
	return out
}

// BreakdownByOperation sums costs per operation name.
func (t *Tracker) BreakdownByOperation() map[string]float64 {
	out := make(map[string]float64)
	for _, c := range t.calls {
		out[c.Operation] += c.EstimatedCost
	}
	return out
}

// CallCount reports how many calls were recorded.
func (t *Tracker) CallCount() int {
	return len(t.calls)
}

// PrintSummary logs the session cost breakdown.
func (t *Tracker) PrintSummary() {
	log.Printf("[costs] %d API calls, estimated total $%.4f", len(t.calls), t.SessionTotal())
	for _, line := range sortedBreakdown(t.BreakdownByService()) {
		log.Printf("[costs]   service %s", line)
	}
	for _, line := range sortedBreakdown(t.BreakdownByOperation()) {
		log.Printf("[costs]   op      %s", line)
	}
}

func sortedBreakdown(b map[string]float64) []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return b[keys[i]] > b[keys[j]] })
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: $%.4f", k, b[k]))
	}
	return lines
}

// SaveToFile writes the full call log as JSON under outputDir.
func (t *Tracker) SaveToFile(outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, fmt.Sprintf("cost_log_%s.json", time.Now().Format("20060102_150405")))
	payload := map[string]any{
		"session_start":          t.sessionStart.UTC().Format(time.RFC3339),
		"session_end":            time.Now().UTC().Format(time.RFC3339),
		"total_calls":            len(t.calls),
		"estimated_total_cost":   t.SessionTotal(),
		"breakdown_by_service":   t.BreakdownByService(),
		"breakdown_by_operation": t.BreakdownByOperation(),
		"calls":                  t.calls,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
