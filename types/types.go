package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scenario status values, in lifecycle order.
const (
	StatusPending       = "PENDING"
	StatusImagesDone    = "IMAGES_DONE"
	StatusAnimationDone = "ANIMATION_DONE"
	StatusCompleted     = "COMPLETED"
	StatusFailed        = "FAILED"
)

// StageData describes one narrative time-point of a scenario.
// ImagePrompt and AudioPrompt are empty until the prompt improver runs.
type StageData struct {
	Year        string `json:"year"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Mood        string `json:"mood"`
	ImagePrompt string `json:"image_prompt,omitempty"`
	AudioPrompt string `json:"audio_prompt,omitempty"`
}

// Scenario is one alternate-history premise with exactly three stages.
// It is the unit of work for a pipeline run and maps to one sheet row.
type Scenario struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Premise        string       `json:"premise"`
	LocationName   string       `json:"location_name"`
	LocationPrompt string       `json:"location_prompt"`
	Stages         [3]StageData `json:"stages"`
	Status         string       `json:"status"`
	CreatedAt      string       `json:"created_at"`
	VideoURL       string       `json:"video_url,omitempty"`
}

// NewScenarioID returns a fresh scenario identifier.
func NewScenarioID() string {
	return fmt.Sprintf("scenario_%s_%s",
		time.Now().UTC().Format("20060102"),
		uuid.NewString()[:8])
}

// Stage returns the stage data for a 1-indexed stage number.
func (s *Scenario) Stage(n int) *StageData {
	return &s.Stages[n-1]
}

// Keyframe is one generated still image anchoring a stage.
// URL is the provider-hosted copy, kept for image-to-image and
// image-to-video chaining without re-uploading.
type Keyframe struct {
	Stage  int    `json:"stage"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

// VideoClip is a per-stage generated video artifact.
// HasAudio is true when the generation model embedded its own audio track.
type VideoClip struct {
	Stage    int     `json:"stage"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	HasAudio bool    `json:"has_audio"`
}

// AudioClip is a per-stage generated ambient audio artifact.
type AudioClip struct {
	Stage    int     `json:"stage"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Mood     string  `json:"mood"`
}

// RunState tracks the full state of one pipeline run, saved as JSON
// alongside the run's assets.
type RunState struct {
	RunID       string     `json:"run_id"`
	StartedAt   string     `json:"started_at"`
	CompletedAt string     `json:"completed_at"`
	Scenario    *Scenario  `json:"scenario,omitempty"`
	Keyframes   []Keyframe `json:"keyframes,omitempty"`
	VideoClips  []VideoClip `json:"video_clips,omitempty"`
	AudioClips  []AudioClip `json:"audio_clips,omitempty"`
	FinalVideo  string     `json:"final_video,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	Error       string     `json:"error,omitempty"`
}
