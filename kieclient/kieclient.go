package kieclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.kie.ai/api/v1"

// Client talks to the Kie.ai jobs API: create a task, then poll
// recordInfo until the task finishes.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	pollInterval time.Duration
}

// New creates a client using KIE_AI_KEY from the environment.
func New() (*Client, error) {
	apiKey := os.Getenv("KIE_AI_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("KIE_AI_KEY not set")
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: 5 * time.Second,
	}, nil
}

// NewWithBaseURL is used by tests to point the client at a fake server.
func NewWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		pollInterval: 10 * time.Millisecond,
	}
}

// ImageResult is a completed image generation.
type ImageResult struct {
	ImageURL string
	TaskID   string
}

// VideoResult is a completed video generation. HasAudio reports whether
// the model generated a native audio track.
type VideoResult struct {
	VideoURL string
	TaskID   string
	HasAudio bool
}

// taskRecord is the recordInfo payload after unwrapping the data field.
// resultJson arrives as a JSON string, not a nested object.
type taskRecord struct {
	State      string          `json:"state"`
	Status     string          `json:"status"`
	FailMsg    string          `json:"failMsg"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	ResultJSON string          `json:"resultJson"`
	Output     json.RawMessage `json:"output"`
}

// CreateTask submits a generation job and returns its task ID.
func (c *Client) CreateTask(ctx context.Context, model string, input map[string]any) (string, error) {
	payload := map[string]any{"model": model, "input": input}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/jobs/createTask", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("kie createTask: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("kie createTask HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var envelope struct {
		Code int `json:"code"`
		Data struct {
			TaskID    string `json:"taskId"`
			TaskIDAlt string `json:"task_id"`
		} `json:"data"`
		TaskID string `json:"taskId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("parse kie createTask response: %w", err)
	}

	taskID := envelope.Data.TaskID
	if taskID == "" {
		taskID = envelope.Data.TaskIDAlt
	}
	if taskID == "" {
		taskID = envelope.TaskID
	}
	if taskID == "" {
		return "", fmt.Errorf("no taskId in kie response")
	}
	return taskID, nil
}

func (c *Client) queryTask(ctx context.Context, taskID string) (*taskRecord, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/jobs/recordInfo?taskId="+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kie recordInfo: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parse kie recordInfo: %w", err)
	}

	var record taskRecord
	// data can be null; fall back to the top-level object.
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		err = json.Unmarshal(envelope.Data, &record)
	} else {
		err = json.Unmarshal(raw, &record)
	}
	if err != nil {
		return nil, fmt.Errorf("parse kie task record: %w", err)
	}
	return &record, nil
}

// WaitForCompletion polls until the task finishes or timeout elapses.
func (c *Client) WaitForCompletion(ctx context.Context, taskID string, timeout time.Duration) (*taskRecord, error) {
	deadline := time.Now().Add(timeout)
	for {
		record, err := c.queryTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		state := strings.ToLower(record.State)
		if state == "" {
			state = strings.ToLower(record.Status)
		}

		switch state {
		case "completed", "success", "done":
			return record, nil
		case "failed", "error", "fail":
			msg := record.FailMsg
			if msg == "" {
				msg = record.Error
			}
			if msg == "" {
				msg = record.Message
			}
			return nil, fmt.Errorf("kie task %s failed: %s", taskID, msg)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("kie task %s timed out after %s", taskID, timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

// resultURL pulls the artifact URL out of a completed record. Kie
// delivers URLs inside the resultJson string; older responses use an
// output object instead.
func (r *taskRecord) resultURL() (string, error) {
	if r.ResultJSON != "" {
		var parsed struct {
			ResultUrls     []string `json:"resultUrls"`
			ResultVideoURL string   `json:"resultVideoUrl"`
			VideoURL       string   `json:"videoUrl"`
		}
		if err := json.Unmarshal([]byte(r.ResultJSON), &parsed); err == nil {
			if len(parsed.ResultUrls) > 0 {
				return parsed.ResultUrls[0], nil
			}
			if parsed.ResultVideoURL != "" {
				return parsed.ResultVideoURL, nil
			}
			if parsed.VideoURL != "" {
				return parsed.VideoURL, nil
			}
		}
	}

	if len(r.Output) > 0 {
		var output struct {
			ImageURL  string   `json:"image_url"`
			VideoURL  string   `json:"video_url"`
			URL       string   `json:"url"`
			Images    []string `json:"images"`
			ImageURLs []string `json:"image_urls"`
		}
		if err := json.Unmarshal(r.Output, &output); err == nil {
			for _, candidate := range []string{output.ImageURL, output.VideoURL, output.URL} {
				if candidate != "" {
					return candidate, nil
				}
			}
			if len(output.Images) > 0 {
				return output.Images[0], nil
			}
			if len(output.ImageURLs) > 0 {
				return output.ImageURLs[0], nil
			}
		}
	}

	return "", fmt.Errorf("no result URL in kie response")
}

// GenerateImage runs a text-to-image task on nano-banana-pro.
func (c *Client) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*ImageResult, error) {
	log.Printf("[kie] generating image (nano-banana-pro)...")

	taskID, err := c.CreateTask(ctx, "nano-banana-pro", map[string]any{
		"prompt":       prompt,
		"aspect_ratio": aspectRatio,
		"resolution":   "1K",
		"num_images":   1,
	})
	if err != nil {
		return nil, err
	}

	record, err := c.WaitForCompletion(ctx, taskID, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	url, err := record.resultURL()
	if err != nil {
		return nil, err
	}
	return &ImageResult{ImageURL: url, TaskID: taskID}, nil
}

// EditImage runs an image-to-image task referencing a hosted image URL.
func (c *Client) EditImage(ctx context.Context, prompt, referenceImageURL, aspectRatio string) (*ImageResult, error) {
	log.Printf("[kie] editing image (nano-banana-pro)...")

	taskID, err := c.CreateTask(ctx, "nano-banana-pro", map[string]any{
		"prompt":       prompt,
		"image_urls":   []string{referenceImageURL},
		"aspect_ratio": aspectRatio,
		"resolution":   "1K",
		"num_images":   1,
	})
	if err != nil {
		return nil, err
	}

	record, err := c.WaitForCompletion(ctx, taskID, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	url, err := record.resultURL()
	if err != nil {
		return nil, err
	}
	return &ImageResult{ImageURL: url, TaskID: taskID}, nil
}

// GenerateVideo runs an image-to-video task on Seedance 1.5 Pro.
func (c *Client) GenerateVideo(ctx context.Context, model, prompt, imageURL string, duration int, resolution, aspectRatio string, generateAudio bool) (*VideoResult, error) {
	log.Printf("[kie] generating video (%s)...", model)

	taskID, err := c.CreateTask(ctx, model, map[string]any{
		"prompt": prompt,
		"image":  imageURL,
		// Seedance expects duration as a string.
		"duration":       strconv.Itoa(duration),
		"resolution":     resolution,
		"aspect_ratio":   aspectRatio,
		"generate_audio": generateAudio,
	})
	if err != nil {
		return nil, err
	}

	record, err := c.WaitForCompletion(ctx, taskID, 10*time.Minute)
	if err != nil {
		return nil, err
	}
	url, err := record.resultURL()
	if err != nil {
		return nil, err
	}
	return &VideoResult{VideoURL: url, TaskID: taskID, HasAudio: generateAudio}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
