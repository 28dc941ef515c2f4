package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StyleConfig controls how generated content looks, not what it is about.
type StyleConfig struct {
	Name        string `yaml:"name"`
	ImageSuffix string `yaml:"image_suffix"`
	VideoPrompt string `yaml:"video_prompt"`
}

// GeminiConfig selects the text/vision model.
type GeminiConfig struct {
	Model string `yaml:"model"`
}

// SocialConfig controls downstream publishing.
type SocialConfig struct {
	Enabled bool `yaml:"enabled"`

	InstagramEnabled bool `yaml:"instagram_enabled"`
	FacebookEnabled  bool `yaml:"facebook_enabled"`
	TikTokEnabled    bool `yaml:"tiktok_enabled"`
	YouTubeEnabled   bool `yaml:"youtube_enabled"`

	MetaTokenPath    string `yaml:"meta_token_path"`
	TikTokTokenPath  string `yaml:"tiktok_token_path"`
	YouTubeTokenPath string `yaml:"youtube_token_path"`

	InstagramAccountID string `yaml:"instagram_account_id"`
	FacebookPageID     string `yaml:"facebook_page_id"`
	TikTokOpenID       string `yaml:"tiktok_open_id"`
	YouTubeChannelID   string `yaml:"youtube_channel_id"`

	PublishDelaySeconds int  `yaml:"publish_delay_seconds"`
	RetryOnFailure      bool `yaml:"retry_on_failure"`
	MaxRetries          int  `yaml:"max_retries"`
}

// EnabledPlatforms returns the names of platforms switched on.
func (s *SocialConfig) EnabledPlatforms() []string {
	var platforms []string
	if s.InstagramEnabled {
		platforms = append(platforms, "instagram")
	}
	if s.FacebookEnabled {
		platforms = append(platforms, "facebook")
	}
	if s.TikTokEnabled {
		platforms = append(platforms, "tiktok")
	}
	if s.YouTubeEnabled {
		platforms = append(platforms, "youtube")
	}
	return platforms
}

// Settings is the per-style configuration loaded from configs/<style>.yaml.
type Settings struct {
	ChannelName   string       `yaml:"channel_name"`
	GoogleSheetID string       `yaml:"google_sheet_id"`
	Style         StyleConfig  `yaml:"style"`
	GCSBucket     string       `yaml:"gcs_bucket"`
	DriveFolderID string       `yaml:"drive_folder_id"`
	AudioMood     string       `yaml:"audio_mood"`
	Gemini        GeminiConfig `yaml:"gemini"`
	ImageRetries  int          `yaml:"image_retries"`
	Social        SocialConfig `yaml:"social"`

	// Runtime paths, set after loading.
	ConfigPath string `yaml:"-"`
	OutputDir  string `yaml:"-"`
}

// Load reads and validates a style config file.
func Load(path string) (*Settings, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s", abs)
	}

	settings := &Settings{
		AudioMood:    "cinematic, atmospheric",
		Gemini:       GeminiConfig{Model: "gemini-2.0-flash"},
		ImageRetries: 3,
		Social: SocialConfig{
			MetaTokenPath:       "secrets/meta_token.json",
			TikTokTokenPath:     "secrets/tiktok_token.json",
			YouTubeTokenPath:    "secrets/youtube_token.json",
			PublishDelaySeconds: 60,
			RetryOnFailure:      true,
			MaxRetries:          3,
		},
	}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var missing []string
	if settings.ChannelName == "" {
		missing = append(missing, "channel_name")
	}
	if settings.GoogleSheetID == "" {
		missing = append(missing, "google_sheet_id")
	}
	if settings.Style.Name == "" {
		missing = append(missing, "style")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required config fields: %v", missing)
	}

	settings.ConfigPath = abs
	// Output lives next to the configs directory, one level up.
	projectRoot := filepath.Dir(filepath.Dir(abs))
	settings.OutputDir = filepath.Join(projectRoot, "output")
	if err := os.MkdirAll(settings.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	return settings, nil
}

// ResolvePath picks the config file from CLI args: an explicit --config path
// wins, otherwise configs/<style>.yaml relative to the working directory.
func ResolvePath(style, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join("configs", style+".yaml")
}
