package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ImageModelConfig is one Fal.ai image endpoint with its tuning knobs.
type ImageModelConfig struct {
	Model             string  `yaml:"model"`
	Strength          float64 `yaml:"strength"`
	NumInferenceSteps int     `yaml:"num_inference_steps"`
}

// ImageSize is the requested keyframe resolution.
type ImageSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// FalConfig groups the Fal.ai image models.
type FalConfig struct {
	TextToImage  ImageModelConfig `yaml:"text_to_image"`
	ImageToImage ImageModelConfig `yaml:"image_to_image"`
	ImageSize    ImageSize        `yaml:"image_size"`
}

// FalVideoConfig is the Fal.ai image-to-video model.
type FalVideoConfig struct {
	Model    string  `yaml:"model"`
	Duration float64 `yaml:"duration"`
}

// FalAudioConfig is the Fal.ai sound-effects model.
type FalAudioConfig struct {
	Model    string  `yaml:"model"`
	Duration float64 `yaml:"duration"`
}

// KieConfig toggles the Kie.ai provider.
type KieConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SeedanceConfig is the Kie.ai Seedance image-to-video model.
// Seedance can generate native audio alongside the video.
type SeedanceConfig struct {
	Model         string `yaml:"model"`
	Duration      int    `yaml:"duration"`
	Resolution    string `yaml:"resolution"`
	AspectRatio   string `yaml:"aspect_ratio"`
	GenerateAudio bool   `yaml:"generate_audio"`
}

// KieVideoConfig selects the Kie.ai video provider and its settings.
type KieVideoConfig struct {
	Provider string         `yaml:"provider"`
	Seedance SeedanceConfig `yaml:"seedance"`
}

// VisionGateConfig toggles keyframe consistency verification.
type VisionGateConfig struct {
	Enabled bool `yaml:"enabled"`
}

// GeminiModelConfig is the Gemini section of the model config.
type GeminiModelConfig struct {
	Model      string           `yaml:"model"`
	VisionGate VisionGateConfig `yaml:"vision_gate"`
}

// TeaserConfig controls the optional preview segment.
type TeaserConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Duration float64 `yaml:"duration"`
}

// EditorConfig tunes the assembly step.
type EditorConfig struct {
	FPS    int          `yaml:"fps"`
	Teaser TeaserConfig `yaml:"teaser"`
}

// ModelConfig is configs/model_config.yaml: provider selection and
// per-model generation parameters, shared by all styles.
type ModelConfig struct {
	Fal      FalConfig         `yaml:"fal"`
	FalVideo FalVideoConfig    `yaml:"fal_video"`
	FalAudio FalAudioConfig    `yaml:"fal_audio"`
	Kie      KieConfig         `yaml:"kie"`
	KieVideo KieVideoConfig    `yaml:"kie_video"`
	Gemini   GeminiModelConfig `yaml:"gemini"`
	Editor   EditorConfig      `yaml:"editor"`
}

// DefaultModelConfig returns the fallback used when model_config.yaml is
// absent or a field is unset.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		Fal: FalConfig{
			TextToImage:  ImageModelConfig{Model: "fal-ai/flux/schnell", NumInferenceSteps: 4},
			ImageToImage: ImageModelConfig{Model: "fal-ai/flux/dev/image-to-image", Strength: 0.65, NumInferenceSteps: 28},
			ImageSize:    ImageSize{Width: 720, Height: 1280},
		},
		FalVideo: FalVideoConfig{Model: "fal-ai/minimax/hailuo-2.3/pro/image-to-video", Duration: 5.0},
		FalAudio: FalAudioConfig{Model: "fal-ai/cassetteai/sound-effects", Duration: 5.0},
		KieVideo: KieVideoConfig{
			Provider: "seedance",
			Seedance: SeedanceConfig{
				Model:         "bytedance/seedance-1.5-pro",
				Duration:      5,
				Resolution:    "720p",
				AspectRatio:   "9:16",
				GenerateAudio: true,
			},
		},
		Gemini: GeminiModelConfig{Model: "gemini-2.0-flash", VisionGate: VisionGateConfig{Enabled: true}},
		Editor: EditorConfig{FPS: 24, Teaser: TeaserConfig{Enabled: true, Duration: 2.0}},
	}
}

// LoadModelConfig reads configs/model_config.yaml next to the style config.
// Missing file is not an error: defaults apply.
func LoadModelConfig(configDir string) (*ModelConfig, error) {
	mc := DefaultModelConfig()

	data, err := os.ReadFile(filepath.Join(configDir, "model_config.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return mc, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, mc); err != nil {
		return nil, err
	}
	if mc.Editor.FPS <= 0 {
		mc.Editor.FPS = 24
	}
	return mc, nil
}
