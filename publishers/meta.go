package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/secrets"
	"chronoreel-pipeline/socialmeta"
)

const graphBaseURL = "https://graph.facebook.com/v19.0"

// Meta publishes Instagram Reels and Facebook page videos through the
// Graph API. Both ingest by public URL, so the GCS copy is required.
type Meta struct {
	cfg         config.SocialConfig
	baseURL     string
	httpClient  *http.Client
	accessToken string

	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewMeta(cfg config.SocialConfig) *Meta {
	return &Meta{
		cfg:          cfg,
		baseURL:      graphBaseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: 5 * time.Second,
		pollTimeout:  5 * time.Minute,
	}
}

// NewMetaWithBaseURL is used by tests to point at a fake server.
func NewMetaWithBaseURL(cfg config.SocialConfig, baseURL string) *Meta {
	m := NewMeta(cfg)
	m.baseURL = baseURL
	m.pollInterval = 10 * time.Millisecond
	m.pollTimeout = 5 * time.Second
	return m
}

func (m *Meta) Name() string { return "meta" }

func (m *Meta) Authenticate(ctx context.Context) error {
	if token := os.Getenv("META_ACCESS_TOKEN"); token != "" {
		m.accessToken = token
		return nil
	}
	var creds struct {
		AccessToken string `json:"access_token"`
	}
	if err := secrets.LoadJSON(ctx, m.cfg.MetaTokenPath, "meta-token", &creds); err != nil {
		return fmt.Errorf("meta credentials: %w", err)
	}
	if creds.AccessToken == "" {
		return fmt.Errorf("meta token file has no access_token")
	}
	m.accessToken = creds.AccessToken
	return nil
}

// Upload publishes to whichever of Instagram/Facebook is configured.
// The video must already be hosted at a public URL.
func (m *Meta) Upload(ctx context.Context, videoPath, hostedURL string, bundle *socialmeta.Bundle) (*PublishResult, error) {
	if m.accessToken == "" {
		err := fmt.Errorf("meta: not authenticated")
		return failure(m.Name(), err), err
	}
	if hostedURL == "" {
		err := fmt.Errorf("meta publishing needs a hosted video URL")
		return failure(m.Name(), err), err
	}

	var ids []string
	if m.cfg.InstagramEnabled && m.cfg.InstagramAccountID != "" {
		id, err := m.publishReel(ctx, hostedURL, bundle)
		if err != nil {
			return failure(m.Name(), err), err
		}
		ids = append(ids, "ig:"+id)
	}
	if m.cfg.FacebookEnabled && m.cfg.FacebookPageID != "" {
		id, err := m.publishPageVideo(ctx, hostedURL, bundle)
		if err != nil {
			return failure(m.Name(), err), err
		}
		ids = append(ids, "fb:"+id)
	}
	if len(ids) == 0 {
		err := fmt.Errorf("meta enabled but no account or page configured")
		return failure(m.Name(), err), err
	}

	return &PublishResult{Platform: m.Name(), PostID: strings.Join(ids, ","), Success: true}, nil
}

type graphResponse struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Error      *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// publishReel runs the Instagram three-step flow: create a media
// container from the hosted URL, wait for processing, then publish.
func (m *Meta) publishReel(ctx context.Context, hostedURL string, bundle *socialmeta.Bundle) (string, error) {
	log.Printf("[publish] instagram: creating reel container...")

	container, err := m.call(ctx, "POST", "/"+m.cfg.InstagramAccountID+"/media", url.Values{
		"media_type": {"REELS"},
		"video_url":  {hostedURL},
		"caption":    {socialmeta.InstagramCaption(bundle)},
	})
	if err != nil {
		return "", fmt.Errorf("create reel container: %w", err)
	}

	if err := m.waitForContainer(ctx, container.ID); err != nil {
		return "", err
	}

	published, err := m.call(ctx, "POST", "/"+m.cfg.InstagramAccountID+"/media_publish", url.Values{
		"creation_id": {container.ID},
	})
	if err != nil {
		return "", fmt.Errorf("publish reel: %w", err)
	}

	log.Printf("[publish] instagram: ✅ reel %s", published.ID)
	return published.ID, nil
}

func (m *Meta) waitForContainer(ctx context.Context, containerID string) error {
	deadline := time.Now().Add(m.pollTimeout)
	for {
		status, err := m.call(ctx, "GET", "/"+containerID, url.Values{
			"fields": {"status_code"},
		})
		if err != nil {
			return err
		}

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("reel container %s: %s", containerID, status.StatusCode)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("reel container %s timed out", containerID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.pollInterval):
		}
	}
}

func (m *Meta) publishPageVideo(ctx context.Context, hostedURL string, bundle *socialmeta.Bundle) (string, error) {
	log.Printf("[publish] facebook: uploading page video...")

	resp, err := m.call(ctx, "POST", "/"+m.cfg.FacebookPageID+"/videos", url.Values{
		"file_url":    {hostedURL},
		"description": {socialmeta.FacebookCaption(bundle)},
		"title":       {bundle.Title},
	})
	if err != nil {
		return "", fmt.Errorf("facebook upload: %w", err)
	}

	log.Printf("[publish] facebook: ✅ video %s", resp.ID)
	return resp.ID, nil
}

func (m *Meta) call(ctx context.Context, method, path string, params url.Values) (*graphResponse, error) {
	params.Set("access_token", m.accessToken)

	var req *http.Request
	var err error
	if method == "GET" {
		req, err = http.NewRequestWithContext(ctx, "GET", m.baseURL+path+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, m.baseURL+path, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", path, err)
	}
	defer resp.Body.Close()

	var parsed graphResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse graph response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("graph error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	return &parsed, nil
}
