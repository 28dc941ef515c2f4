package publishers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/secrets"
	"chronoreel-pipeline/socialmeta"
)

const tiktokBaseURL = "https://open.tiktokapis.com/v2"

// TikTok publishes via the Content Posting API: init an upload, PUT
// the bytes, then poll the publish status.
type TikTok struct {
	cfg         config.SocialConfig
	baseURL     string
	httpClient  *http.Client
	accessToken string

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewTikTok(cfg config.SocialConfig) *TikTok {
	return &TikTok{
		cfg:          cfg,
		baseURL:      tiktokBaseURL,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		pollInterval: 5 * time.Second,
		pollTimeout:  3 * time.Minute,
	}
}

// NewTikTokWithBaseURL is used by tests to point at a fake server.
func NewTikTokWithBaseURL(cfg config.SocialConfig, baseURL string) *TikTok {
	t := NewTikTok(cfg)
	t.baseURL = baseURL
	t.pollInterval = 10 * time.Millisecond
	t.pollTimeout = 5 * time.Second
	return t
}

func (t *TikTok) Name() string { return "tiktok" }

func (t *TikTok) Authenticate(ctx context.Context) error {
	if token := os.Getenv("TIKTOK_ACCESS_TOKEN"); token != "" {
		t.accessToken = token
		return nil
	}
	var creds struct {
		AccessToken string `json:"access_token"`
	}
	if err := secrets.LoadJSON(ctx, t.cfg.TikTokTokenPath, "tiktok-token", &creds); err != nil {
		return fmt.Errorf("tiktok credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return fmt.Errorf("tiktok token file has no access_token")
	}
	t.accessToken = creds.AccessToken
	return nil
}

type tiktokInitRequest struct {
	PostInfo struct {
		Title        string `json:"title"`
		PrivacyLevel string `json:"privacy_level"`
	} `json:"post_info"`
	SourceInfo struct {
		Source          string `json:"source"`
		VideoSize       int64  `json:"video_size"`
		ChunkSize       int64  `json:"chunk_size"`
		TotalChunkCount int    `json:"total_chunk_count"`
	} `json:"source_info"`
}

type tiktokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
		UploadURL string `json:"upload_url"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type tiktokStatusResponse struct {
	Data struct {
		Status     string `json:"status"`
		FailReason string `json:"fail_reason"`
	} `json:"data"`
}

func (t *TikTok) Upload(ctx context.Context, videoPath, hostedURL string, bundle *socialmeta.Bundle) (*PublishResult, error) {
	if t.accessToken == "" {
		err := fmt.Errorf("tiktok: not authenticated")
		return failure(t.Name(), err), err
	}
	if err := ValidateVideo(videoPath); err != nil {
		return failure(t.Name(), err), err
	}

	data, err := os.ReadFile(videoPath)
	if err != nil {
		return failure(t.Name(), err), err
	}

	log.Printf("[publish] tiktok: initializing upload (%.1f MB)...", float64(len(data))/1024/1024)
	init, err := t.initUpload(ctx, bundle, int64(len(data)))
	if err != nil {
		return failure(t.Name(), err), err
	}

	if err := t.putVideo(ctx, init.Data.UploadURL, data); err != nil {
		return failure(t.Name(), err), err
	}

	if err := t.waitForPublish(ctx, init.Data.PublishID); err != nil {
		return failure(t.Name(), err), err
	}

	log.Printf("[publish] tiktok: ✅ publish %s complete", init.Data.PublishID)
	return &PublishResult{Platform: t.Name(), PostID: init.Data.PublishID, Success: true}, nil
}

func (t *TikTok) initUpload(ctx context.Context, bundle *socialmeta.Bundle, size int64) (*tiktokInitResponse, error) {
	var reqBody tiktokInitRequest
	reqBody.PostInfo.Title = socialmeta.TikTokCaption(bundle)
	reqBody.PostInfo.PrivacyLevel = "PUBLIC_TO_EVERYONE"
	reqBody.SourceInfo.Source = "FILE_UPLOAD"
	reqBody.SourceInfo.VideoSize = size
	reqBody.SourceInfo.ChunkSize = size
	reqBody.SourceInfo.TotalChunkCount = 1

	var initResp tiktokInitResponse
	if err := t.postJSON(ctx, "/post/publish/video/init/", reqBody, &initResp); err != nil {
		return nil, err
	}
	if initResp.Error.Code != "" && initResp.Error.Code != "ok" {
		return nil, fmt.Errorf("tiktok init: %s (%s)", initResp.Error.Message, initResp.Error.Code)
	}
	if initResp.Data.UploadURL == "" {
		return nil, fmt.Errorf("tiktok init returned no upload URL")
	}
	return &initResp, nil
}

func (t *TikTok) putVideo(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(data)-1, len(data)))

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tiktok upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("tiktok upload HTTP %d", resp.StatusCode)
	}
	return nil
}

func (t *TikTok) waitForPublish(ctx context.Context, publishID string) error {
	deadline := time.Now().Add(t.pollTimeout)
	for {
		var status tiktokStatusResponse
		err := t.postJSON(ctx, "/post/publish/status/fetch/", map[string]string{"publish_id": publishID}, &status)
		if err != nil {
			return err
		}

		switch status.Data.Status {
		case "PUBLISH_COMPLETE":
			return nil
		case "FAILED":
			return fmt.Errorf("tiktok publish failed: %s", status.Data.FailReason)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("tiktok publish %s timed out", publishID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.pollInterval):
		}
	}
}

func (t *TikTok) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tiktok %s: %w", path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse tiktok response: %w", err)
	}
	return nil
}
