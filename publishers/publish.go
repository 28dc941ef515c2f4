package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/socialmeta"
)

// ForConfig builds the publisher set the config switches on.
func ForConfig(cfg config.SocialConfig) []Publisher {
	var pubs []Publisher
	if cfg.YouTubeEnabled {
		pubs = append(pubs, NewYouTube(cfg))
	}
	if cfg.TikTokEnabled {
		pubs = append(pubs, NewTikTok(cfg))
	}
	if cfg.InstagramEnabled || cfg.FacebookEnabled {
		pubs = append(pubs, NewMeta(cfg))
	}
	return pubs
}

// PublishAll pushes the video to every publisher in turn, pausing
// between platforms and retrying per config. One platform failing
// never stops the rest.
func PublishAll(ctx context.Context, cfg config.SocialConfig, pubs []Publisher, videoPath, hostedURL string, bundle *socialmeta.Bundle) []PublishResult {
	if err := ValidateVideo(videoPath); err != nil {
		log.Printf("[publish] ❌ refusing to publish: %v", err)
		return []PublishResult{{Platform: "all", Success: false, Error: err.Error()}}
	}

	delay := time.Duration(cfg.PublishDelaySeconds) * time.Second
	results := make([]PublishResult, 0, len(pubs))

	for i, pub := range pubs {
		if i > 0 && delay > 0 {
			log.Printf("[publish] waiting %s before next platform...", delay)
			time.Sleep(delay)
		}
		results = append(results, publishOne(ctx, cfg, pub, videoPath, hostedURL, bundle))
	}
	return results
}

func publishOne(ctx context.Context, cfg config.SocialConfig, pub Publisher, videoPath, hostedURL string, bundle *socialmeta.Bundle) PublishResult {
	attempts := 1
	if cfg.RetryOnFailure && cfg.MaxRetries > 1 {
		attempts = cfg.MaxRetries
	}

	var last PublishResult
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := pub.Authenticate(ctx); err != nil {
			log.Printf("[publish] %s auth failed: %v", pub.Name(), err)
			last = *failure(pub.Name(), err)
			continue
		}

		result, err := pub.Upload(ctx, videoPath, hostedURL, bundle)
		if result != nil {
			last = *result
		}
		if err == nil {
			return last
		}
		log.Printf("[publish] %s attempt %d/%d failed: %v", pub.Name(), attempt, attempts, err)
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	return last
}

// SaveResults writes the publish outcomes next to the other run
// artifacts for post-hoc inspection.
func SaveResults(outputDir string, results []PublishResult) (string, error) {
	outFile := filepath.Join(outputDir, fmt.Sprintf("publish_%s.json", time.Now().Format("20060102_150405")))
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return "", err
	}
	log.Printf("[publish] results saved: %s", outFile)
	return outFile, nil
}
