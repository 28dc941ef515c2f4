package socialmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"chronoreel-pipeline/costs"
	"chronoreel-pipeline/screenwriter"
	"chronoreel-pipeline/types"
)

// Platform caption/description character limits, per each network's
// published API documentation.
const (
	InstagramCaptionLimit   = 2200
	TikTokCaptionLimit      = 4000
	FacebookCaptionLimit    = 63206
	YouTubeDescriptionLimit = 5000
	YouTubeTitleLimit       = 100
	YouTubeTagsLimit        = 500
)

// Bundle is one set of publish-ready metadata shared by all platforms,
// trimmed per platform at caption-build time.
type Bundle struct {
	Title       string   `json:"title"`
	Caption     string   `json:"caption"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
}

// Generator writes social metadata with Gemini, with a deterministic
// fallback so publishing never blocks on a failed model call.
type Generator struct {
	client  *genai.Client
	model   string
	channel string
	tracker *costs.Tracker
}

func New(ctx context.Context, model, channelName string, tracker *costs.Tracker) (*Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Generator{client: client, model: model, channel: channelName, tracker: tracker}, nil
}

const systemPrompt = `You write social media metadata for short-form alternate-history videos.

Respond with ONLY valid JSON:
{"title": "...", "caption": "...", "description": "...", "hashtags": ["...", ...]}

- title: under 90 characters, hook-first, no hashtags
- caption: 1-3 punchy sentences ending with a question to drive comments
- description: 2-4 sentences with more historical context
- hashtags: 8-12 relevant tags WITHOUT the # prefix`

// Generate builds a metadata bundle for the scenario. Errors degrade
// to Fallback rather than propagating.
func (g *Generator) Generate(ctx context.Context, scenario *types.Scenario) *Bundle {
	userPrompt := fmt.Sprintf(`Channel: %s
Premise: %s
Location: %s
Era span: %s to %s

Respond ONLY with the JSON object.`,
		g.channel, scenario.Premise, scenario.LocationName,
		scenario.Stage(1).Year, scenario.Stage(3).Year)

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleModel),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		log.Printf("[socialmeta] generation failed, using fallback: %v", err)
		return Fallback(scenario)
	}

	var bundle Bundle
	content := screenwriter.CleanJSON(result.Text())
	if err := json.Unmarshal([]byte(content), &bundle); err != nil || bundle.Title == "" {
		log.Printf("[socialmeta] unparseable metadata, using fallback")
		return Fallback(scenario)
	}
	g.tracker.LogGeminiCall(g.model, scenario.ID, "social_metadata", 300, 400)

	bundle.Hashtags = CleanHashtags(bundle.Hashtags)
	bundle.Title = Truncate(bundle.Title, YouTubeTitleLimit)
	return &bundle
}

// Fallback assembles serviceable metadata straight from the scenario.
func Fallback(scenario *types.Scenario) *Bundle {
	title := strings.ReplaceAll(scenario.Title, "**", "")
	if title == "" {
		title = "What if " + strings.TrimSuffix(scenario.Premise, ".") + "?"
	}
	return &Bundle{
		Title:       Truncate(title, YouTubeTitleLimit),
		Caption:     scenario.Premise + " Which timeline would you pick?",
		Description: fmt.Sprintf("An alternate history of %s. %s", scenario.LocationName, scenario.Premise),
		Hashtags: CleanHashtags([]string{
			"alternatehistory", "whatif", "history", "shorts",
			strings.ReplaceAll(scenario.LocationName, " ", ""),
		}),
	}
}

// CleanHashtags normalizes tags: strips # prefixes, lowercases, removes
// internal spaces, and deduplicates preserving first occurrence. The
// operation is idempotent.
func CleanHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.TrimPrefix(strings.TrimSpace(tag), "#")
		t = strings.ToLower(strings.ReplaceAll(t, " ", ""))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	return cleaned
}

// Truncate clips s to at most limit bytes without splitting a rune,
// never panicking on short input.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// hashtagSuffix renders tags as "#a #b #c".
func hashtagSuffix(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "#" + t
	}
	return strings.Join(parts, " ")
}

// captionWithTags appends hashtags to the caption, then trims the whole
// thing to the platform limit.
func captionWithTags(b *Bundle, limit int) string {
	caption := b.Caption
	if tags := hashtagSuffix(b.Hashtags); tags != "" {
		caption += "\n\n" + tags
	}
	return Truncate(caption, limit)
}

// InstagramCaption fits the bundle to Instagram's limit.
func InstagramCaption(b *Bundle) string { return captionWithTags(b, InstagramCaptionLimit) }

// TikTokCaption fits the bundle to TikTok's limit.
func TikTokCaption(b *Bundle) string { return captionWithTags(b, TikTokCaptionLimit) }

// FacebookCaption fits the bundle to Facebook's limit.
func FacebookCaption(b *Bundle) string { return captionWithTags(b, FacebookCaptionLimit) }

// AIDisclosure goes into every YouTube description, alongside the
// containsSyntheticMedia status flag.
const AIDisclosure = "This video features AI-generated visuals and audio."

// YouTubeDescription fits description, disclosure and hashtags to
// YouTube's limit.
func YouTubeDescription(b *Bundle) string {
	desc := b.Description
	if desc != "" {
		desc += "\n\n"
	}
	desc += AIDisclosure
	if tags := hashtagSuffix(b.Hashtags); tags != "" {
		desc += "\n\n" + tags
	}
	return Truncate(desc, YouTubeDescriptionLimit)
}

// YouTubeTags fits the tag list into YouTube's 500-character budget.
func YouTubeTags(b *Bundle) []string {
	var tags []string
	total := 0
	for _, t := range b.Hashtags {
		// commas between tags count against the budget
		cost := len(t)
		if total > 0 {
			cost++
		}
		if total+cost > YouTubeTagsLimit {
			break
		}
		tags = append(tags, t)
		total += cost
	}
	return tags
}
