package kieclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTaskUnwrapsEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/createTask", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "nano-banana-pro", payload["model"])

		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]string{"taskId": "task-abc"},
		})
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL)
	taskID, err := client.CreateTask(context.Background(), "nano-banana-pro", map[string]any{"prompt": "x"})
	require.NoError(t, err)
	assert.Equal(t, "task-abc", taskID)
}

func TestCreateTaskSnakeCaseFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]string{"task_id": "task-snake"},
		})
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL)
	taskID, err := client.CreateTask(context.Background(), "m", nil)
	require.NoError(t, err)
	assert.Equal(t, "task-snake", taskID)
}

func TestWaitForCompletionPollsStates(t *testing.T) {
	polls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/recordInfo", r.URL.Path)
		assert.Equal(t, "task-abc", r.URL.Query().Get("taskId"))

		polls++
		state := "waiting"
		if polls >= 3 {
			state = "success"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{
				"state":      state,
				"resultJson": `{"resultUrls": ["https://cdn.kie.ai/img.png"]}`,
			},
		})
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL)
	record, err := client.WaitForCompletion(context.Background(), "task-abc", 5*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, polls, 3)

	url, err := record.resultURL()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.kie.ai/img.png", url)
}

func TestWaitForCompletionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"state": "failed", "failMsg": "content policy"},
		})
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL)
	_, err := client.WaitForCompletion(context.Background(), "task-x", time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content policy")
}

func TestResultURLShapes(t *testing.T) {
	record := &taskRecord{ResultJSON: `{"resultVideoUrl": "https://cdn/v.mp4"}`}
	url, err := record.resultURL()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v.mp4", url)

	record = &taskRecord{Output: json.RawMessage(`{"video_url": "https://cdn/o.mp4"}`)}
	url, err = record.resultURL()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/o.mp4", url)

	record = &taskRecord{Output: json.RawMessage(`{"image_urls": ["https://cdn/i.png"]}`)}
	url, err = record.resultURL()
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/i.png", url)

	record = &taskRecord{}
	_, err = record.resultURL()
	require.Error(t, err)
}

func TestGenerateVideoSendsDurationAsString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/jobs/createTask":
			var payload struct {
				Model string         `json:"model"`
				Input map[string]any `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "bytedance/seedance-1.5-pro", payload.Model)
			assert.Equal(t, "5", payload.Input["duration"])
			assert.Equal(t, true, payload.Input["generate_audio"])
			json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]string{"taskId": "vid-1"},
			})
		case "/jobs/recordInfo":
			json.NewEncoder(w).Encode(map[string]any{
				"code": 200,
				"data": map[string]any{
					"state":      "completed",
					"resultJson": `{"resultUrls": ["https://cdn.kie.ai/v.mp4"]}`,
				},
			})
		}
	}))
	defer server.Close()

	client := NewWithBaseURL("test-key", server.URL)
	result, err := client.GenerateVideo(context.Background(), "bytedance/seedance-1.5-pro",
		"slow push in", "https://cdn/kf.png", 5, "720p", "9:16", true)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.kie.ai/v.mp4", result.VideoURL)
	assert.True(t, result.HasAudio)
}
