package publishers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/socialmeta"
)

func TestMetaReelFlow(t *testing.T) {
	containerPolls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/17840012345/media", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "REELS", r.Form.Get("media_type"))
		assert.Equal(t, "https://storage.googleapis.com/bucket/v.mp4", r.Form.Get("video_url"))
		assert.Equal(t, "secret-token", r.Form.Get("access_token"))
		json.NewEncoder(w).Encode(map[string]string{"id": "container-1"})
	})
	mux.HandleFunc("/container-1", func(w http.ResponseWriter, r *http.Request) {
		containerPolls++
		status := "IN_PROGRESS"
		if containerPolls >= 2 {
			status = "FINISHED"
		}
		json.NewEncoder(w).Encode(map[string]string{"status_code": status})
	})
	mux.HandleFunc("/17840012345/media_publish", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "container-1", r.Form.Get("creation_id"))
		json.NewEncoder(w).Encode(map[string]string{"id": "reel-99"})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := config.SocialConfig{
		InstagramEnabled:   true,
		InstagramAccountID: "17840012345",
	}
	m := NewMetaWithBaseURL(cfg, server.URL)
	t.Setenv("META_ACCESS_TOKEN", "secret-token")
	require.NoError(t, m.Authenticate(context.Background()))

	result, err := m.Upload(context.Background(), writeVideo(t, "v.mp4", 1024),
		"https://storage.googleapis.com/bucket/v.mp4",
		&socialmeta.Bundle{Title: "t", Caption: "c"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "ig:reel-99", result.PostID)
	assert.GreaterOrEqual(t, containerPolls, 2)
}

func TestMetaGraphError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid OAuth token", "code": 190},
		})
	}))
	defer server.Close()

	cfg := config.SocialConfig{FacebookEnabled: true, FacebookPageID: "page-1"}
	m := NewMetaWithBaseURL(cfg, server.URL)
	t.Setenv("META_ACCESS_TOKEN", "expired")
	require.NoError(t, m.Authenticate(context.Background()))

	result, err := m.Upload(context.Background(), writeVideo(t, "v.mp4", 1024),
		"https://example.com/v.mp4", &socialmeta.Bundle{})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, err.Error(), "Invalid OAuth token")
}

func TestMetaRequiresHostedURL(t *testing.T) {
	m := NewMeta(config.SocialConfig{InstagramEnabled: true, InstagramAccountID: "x"})
	t.Setenv("META_ACCESS_TOKEN", "tok")
	require.NoError(t, m.Authenticate(context.Background()))

	_, err := m.Upload(context.Background(), writeVideo(t, "v.mp4", 1024), "", &socialmeta.Bundle{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hosted video URL")
}
