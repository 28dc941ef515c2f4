package falclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

const queueBaseURL = "https://queue.fal.run"

// Client talks to the Fal.ai queue API: submit a request, poll its
// status URL until completion, then fetch the response payload.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// New creates a client using FAL_KEY from the environment.
func New() (*Client, error) {
	apiKey := os.Getenv("FAL_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("FAL_KEY not set")
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      queueBaseURL,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: 2 * time.Second,
		pollTimeout:  5 * time.Minute,
	}, nil
}

// NewWithBaseURL is used by tests to point the client at a fake server.
func NewWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		pollInterval: 10 * time.Millisecond,
		pollTimeout:  5 * time.Second,
	}
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Result is the raw JSON payload of a completed request, with helpers
// for the artifact URL shapes the models actually return.
type Result map[string]json.RawMessage

// ImageURL extracts the first image URL (images[0].url).
func (r Result) ImageURL() (string, error) {
	var images []struct {
		URL string `json:"url"`
	}
	if raw, ok := r["images"]; ok {
		if err := json.Unmarshal(raw, &images); err == nil && len(images) > 0 && images[0].URL != "" {
			return images[0].URL, nil
		}
	}
	return "", fmt.Errorf("no image URL in response")
}

// VideoURL extracts video.url, with video_url and url fallbacks.
func (r Result) VideoURL() (string, error) {
	if url := r.nestedURL("video"); url != "" {
		return url, nil
	}
	if url := r.stringField("video_url"); url != "" {
		return url, nil
	}
	if url := r.stringField("url"); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("no video URL in response")
}

// AudioURL extracts audio.url, with audio_file.url and flat fallbacks.
func (r Result) AudioURL() (string, error) {
	if url := r.nestedURL("audio"); url != "" {
		return url, nil
	}
	if url := r.nestedURL("audio_file"); url != "" {
		return url, nil
	}
	if url := r.stringField("audio_url"); url != "" {
		return url, nil
	}
	if url := r.stringField("url"); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("no audio URL in response")
}

func (r Result) nestedURL(key string) string {
	var nested struct {
		URL string `json:"url"`
	}
	if raw, ok := r[key]; ok {
		if err := json.Unmarshal(raw, &nested); err == nil {
			return nested.URL
		}
	}
	return ""
}

func (r Result) stringField(key string) string {
	var s string
	if raw, ok := r[key]; ok {
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return ""
}

// Subscribe submits a request for the given model and blocks until the
// queue reports completion, returning the response payload.
func (c *Client) Subscribe(ctx context.Context, model string, args map[string]any) (Result, error) {
	sub, err := c.submit(ctx, model, args)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.pollTimeout)
	for {
		status, err := c.status(ctx, sub.StatusURL)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case "COMPLETED":
			return c.response(ctx, sub.ResponseURL)
		case "FAILED", "ERROR":
			return nil, fmt.Errorf("fal request %s failed: %s", sub.RequestID, status.Error)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("fal request %s timed out after %s", sub.RequestID, c.pollTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) submit(ctx context.Context, model string, args map[string]any) (*submitResponse, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/"+model, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fal submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fal submit HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, fmt.Errorf("parse fal submit response: %w", err)
	}
	if sub.StatusURL == "" || sub.ResponseURL == "" {
		return nil, fmt.Errorf("fal submit response missing queue URLs")
	}
	return &sub, nil
}

func (c *Client) status(ctx context.Context, statusURL string) (*statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", statusURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fal status: %w", err)
	}
	defer resp.Body.Close()

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("parse fal status: %w", err)
	}
	return &status, nil
}

func (c *Client) response(ctx context.Context, responseURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", responseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fal response: %w", err)
	}
	defer resp.Body.Close()

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse fal response: %w", err)
	}
	return result, nil
}

// Download fetches a generated artifact URL to a local file.
func Download(ctx context.Context, url, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download HTTP %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes), likely an error page", len(data))
	}

	if err := os.WriteFile(outFile, data, 0644); err != nil {
		return err
	}
	log.Printf("[fal] saved %s (%.1f KB)", outFile, float64(len(data))/1024)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
