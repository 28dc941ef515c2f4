package publishers

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"chronoreel-pipeline/config"
	"chronoreel-pipeline/secrets"
	"chronoreel-pipeline/socialmeta"
)

// youtubeCredentials is the token file shape. Env vars win over the
// file so CI and local runs need no secrets on disk.
type youtubeCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// YouTube uploads Shorts via the Data API v3.
type YouTube struct {
	cfg config.SocialConfig
	svc *youtube.Service
}

func NewYouTube(cfg config.SocialConfig) *YouTube {
	return &YouTube{cfg: cfg}
}

func (y *YouTube) Name() string { return "youtube" }

func (y *YouTube) Authenticate(ctx context.Context) error {
	creds := youtubeCredentials{
		ClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		ClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		RefreshToken: os.Getenv("YOUTUBE_REFRESH_TOKEN"),
	}
	if creds.RefreshToken == "" {
		if err := secrets.LoadJSON(ctx, y.cfg.YouTubeTokenPath, "youtube-token", &creds); err != nil {
			return fmt.Errorf("youtube credentials: %w", err)
		}
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return fmt.Errorf("incomplete youtube credentials")
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}
	token := &oauth2.Token{
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, conf.TokenSource(ctx, token))))
	if err != nil {
		return fmt.Errorf("youtube service: %w", err)
	}
	y.svc = svc
	return nil
}

func (y *YouTube) Upload(ctx context.Context, videoPath, hostedURL string, bundle *socialmeta.Bundle) (*PublishResult, error) {
	if y.svc == nil {
		return failure(y.Name(), fmt.Errorf("not authenticated")), fmt.Errorf("youtube: not authenticated")
	}
	if err := ValidateVideo(videoPath); err != nil {
		return failure(y.Name(), err), err
	}

	log.Printf("[publish] youtube: uploading %q", bundle.Title)

	status := &youtube.VideoStatus{
		PrivacyStatus:           "public",
		SelfDeclaredMadeForKids: false,
		// disclose generated footage
		ContainsSyntheticMedia: true,
		ForceSendFields:        []string{"ContainsSyntheticMedia", "SelfDeclaredMadeForKids"},
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       socialmeta.Truncate(bundle.Title, socialmeta.YouTubeTitleLimit),
			Description: socialmeta.YouTubeDescription(bundle),
			Tags:        socialmeta.YouTubeTags(bundle),
			CategoryId:  "27", // Education
		},
		Status: status,
	}

	f, err := os.Open(videoPath)
	if err != nil {
		return failure(y.Name(), err), err
	}
	defer f.Close()

	uploaded, err := y.svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f).Context(ctx).Do()
	if err != nil {
		err = fmt.Errorf("youtube upload: %w", err)
		return failure(y.Name(), err), err
	}

	url := "https://www.youtube.com/watch?v=" + uploaded.Id
	log.Printf("[publish] youtube: ✅ %s", url)
	return &PublishResult{Platform: y.Name(), PostID: uploaded.Id, URL: url, Success: true}, nil
}
