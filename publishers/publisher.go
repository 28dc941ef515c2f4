package publishers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chronoreel-pipeline/socialmeta"
)

// maxUploadBytes is the most restrictive cross-platform size cap.
const maxUploadBytes = 256 << 20

// PublishResult records one platform's outcome.
type PublishResult struct {
	Platform string `json:"platform"`
	PostID   string `json:"post_id,omitempty"`
	URL      string `json:"url,omitempty"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// Publisher is one social platform destination. hostedURL is the
// publicly reachable copy of the video; platforms that ingest by URL
// use it instead of the local file.
type Publisher interface {
	Name() string
	Authenticate(ctx context.Context) error
	Upload(ctx context.Context, videoPath, hostedURL string, bundle *socialmeta.Bundle) (*PublishResult, error)
}

// ValidateVideo rejects files no platform would accept before any
// network call is spent on them.
func ValidateVideo(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("video file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp4" && ext != ".mov" {
		return fmt.Errorf("unsupported video format %q (need .mp4 or .mov)", ext)
	}
	if info.Size() > maxUploadBytes {
		return fmt.Errorf("video is %.0f MB, over the %d MB platform cap",
			float64(info.Size())/1024/1024, maxUploadBytes/1024/1024)
	}
	if info.Size() == 0 {
		return fmt.Errorf("video file is empty: %s", path)
	}
	return nil
}

func failure(platform string, err error) *PublishResult {
	return &PublishResult{Platform: platform, Success: false, Error: err.Error()}
}
