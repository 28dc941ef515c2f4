package socialmeta

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoreel-pipeline/types"
)

func TestCleanHashtags(t *testing.T) {
	assert.Equal(t, []string{"test", "viral"}, CleanHashtags([]string{"#Test", "test", "VIRAL"}))
	assert.Equal(t, []string{"newyork"}, CleanHashtags([]string{"New York", "#newyork"}))
	assert.Empty(t, CleanHashtags([]string{"", "#", "  "}))
}

func TestCleanHashtagsIdempotent(t *testing.T) {
	input := []string{"#Alternate History", "whatif", "#WHATIF", "Rome"}
	once := CleanHashtags(input)
	twice := CleanHashtags(once)
	assert.Equal(t, once, twice)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "abcde", Truncate("abcdefgh", 5))
	assert.Equal(t, "", Truncate("", 5))
}

func testBundle(captionLen int) *Bundle {
	return &Bundle{
		Title:       "What if Rome never fell?",
		Caption:     strings.Repeat("x", captionLen),
		Description: "An alternate history of Rome.",
		Hashtags:    []string{"alternatehistory", "rome", "whatif"},
	}
}

func TestPlatformCaptionLimits(t *testing.T) {
	huge := testBundle(100000)

	assert.LessOrEqual(t, len(InstagramCaption(huge)), InstagramCaptionLimit)
	assert.LessOrEqual(t, len(TikTokCaption(huge)), TikTokCaptionLimit)
	assert.LessOrEqual(t, len(FacebookCaption(huge)), FacebookCaptionLimit)
	assert.LessOrEqual(t, len(YouTubeDescription(huge)), YouTubeDescriptionLimit)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := "ローマが勝ったら？" // 3 bytes per rune
	got := Truncate(s, 8)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "ロー", got)

	// exact boundary and ASCII stay byte-precise
	assert.Equal(t, "ローマ", Truncate(s, 9))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "short", Truncate("short", 100))
}

func TestYouTubeDescriptionDisclosure(t *testing.T) {
	b := testBundle(50)
	desc := YouTubeDescription(b)
	assert.Contains(t, desc, AIDisclosure)
	assert.Contains(t, desc, "#alternatehistory")
}

func TestCaptionIncludesHashtags(t *testing.T) {
	b := testBundle(50)
	caption := InstagramCaption(b)
	assert.Contains(t, caption, "#alternatehistory")
	assert.Contains(t, caption, "#rome")
}

func TestYouTubeTagsBudget(t *testing.T) {
	b := &Bundle{Hashtags: []string{strings.Repeat("a", 200), strings.Repeat("b", 200), strings.Repeat("c", 200)}}
	tags := YouTubeTags(b)
	require.Len(t, tags, 2)

	total := 0
	for i, tag := range tags {
		total += len(tag)
		if i > 0 {
			total++
		}
	}
	assert.LessOrEqual(t, total, YouTubeTagsLimit)
}

func TestFallbackBundle(t *testing.T) {
	scenario := &types.Scenario{
		Title:        "What if **Rome** never fell?",
		Premise:      "The Western Roman Empire survives 476.",
		LocationName: "Rome",
	}
	b := Fallback(scenario)

	assert.Equal(t, "What if Rome never fell?", b.Title)
	assert.NotContains(t, b.Title, "**")
	assert.Contains(t, b.Hashtags, "rome")
	assert.Contains(t, b.Description, "Rome")
	assert.LessOrEqual(t, len(b.Title), YouTubeTitleLimit)
}

func TestFallbackWithoutTitle(t *testing.T) {
	scenario := &types.Scenario{
		Premise:      "Napoleon wins at Waterloo.",
		LocationName: "Paris",
	}
	b := Fallback(scenario)
	assert.Equal(t, "What if Napoleon wins at Waterloo?", b.Title)
}
