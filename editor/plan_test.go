package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileTargetIsLongerSource(t *testing.T) {
	plan := Reconcile(5.0, 8.0)
	assert.InDelta(t, 8.0, plan.Target, 1e-9)
	assert.Equal(t, 1, plan.VideoLoops)
	assert.Equal(t, 0, plan.AudioLoops)

	plan = Reconcile(10.0, 4.0)
	assert.InDelta(t, 10.0, plan.Target, 1e-9)
	assert.Equal(t, 0, plan.VideoLoops)
	assert.Equal(t, 2, plan.AudioLoops)

	plan = Reconcile(5.0, 5.0)
	assert.InDelta(t, 5.0, plan.Target, 1e-9)
	assert.Equal(t, 0, plan.VideoLoops)
	assert.Equal(t, 0, plan.AudioLoops)
}

func TestReconcileEmbeddedAudio(t *testing.T) {
	plan := Reconcile(6.5, 0)
	assert.InDelta(t, 6.5, plan.Target, 1e-9)
	assert.Equal(t, 0, plan.VideoLoops)
	assert.Equal(t, 0, plan.AudioLoops)
}

func TestReconcileLoopCoverage(t *testing.T) {
	// looped source length must always reach the target
	cases := [][2]float64{{5, 8}, {3, 10}, {2.5, 5}, {4.9, 5}, {7, 21}}
	for _, c := range cases {
		plan := Reconcile(c[0], c[1])
		covered := c[0] * float64(plan.VideoLoops+1)
		assert.GreaterOrEqual(t, covered, plan.Target-1e-9, "video %v audio %v", c[0], c[1])
	}
}

func TestParseMarkupAlternatingRuns(t *testing.T) {
	runs := ParseMarkup("What if **Rome** never fell?")
	require.Len(t, runs, 3)
	assert.Equal(t, TextRun{Text: "What if ", Bold: false}, runs[0])
	assert.Equal(t, TextRun{Text: "Rome", Bold: true}, runs[1])
	assert.Equal(t, TextRun{Text: " never fell?", Bold: false}, runs[2])
}

func TestParseMarkupEdgeCases(t *testing.T) {
	runs := ParseMarkup("no markup here")
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Bold)

	runs = ParseMarkup("**all bold**")
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Bold)

	// unclosed marker stays plain
	runs = ParseMarkup("oops **dangling")
	require.Len(t, runs, 2)
	assert.False(t, runs[1].Bold)

	assert.Empty(t, ParseMarkup(""))
}

func TestWrapWords(t *testing.T) {
	words := splitWords(ParseMarkup("one two three four five six"))
	lines := wrapWords(words, 12)
	for _, line := range lines {
		chars := len(line) - 1
		for _, w := range line {
			chars += len(w.text)
		}
		assert.LessOrEqual(t, chars, 12)
	}

	// a word longer than the limit still gets placed
	lines = wrapWords(splitWords([]TextRun{{Text: "extraordinarily"}}), 5)
	require.Len(t, lines, 1)
}

func TestLayoutTitleCentersAndMergesRuns(t *testing.T) {
	placed := LayoutTitle("What if **Rome** won?")
	require.NotEmpty(t, placed)

	// runs on the same line advance left to right
	byY := map[int][]PlacedRun{}
	for _, p := range placed {
		byY[p.Y] = append(byY[p.Y], p)
	}
	for _, line := range byY {
		for i := 1; i < len(line); i++ {
			assert.Greater(t, line[i].X, line[i-1].X)
			assert.NotEqual(t, line[i].Bold, line[i-1].Bold, "adjacent same-style runs should merge")
		}
	}

	var boldText []string
	for _, p := range placed {
		if p.Bold {
			boldText = append(boldText, p.Text)
		}
	}
	assert.Equal(t, []string{"Rome"}, boldText)
}

func TestRankingLinesProgressiveReveal(t *testing.T) {
	labels := [3]string{"Rome, 476 AD", "Rome, 1200 AD", "Rome, 2024 AD"}

	lines := RankingLines(labels, 1)
	assert.Equal(t, []string{"1. Rome, 476 AD", "2.", "3."}, lines)

	lines = RankingLines(labels, 2)
	assert.Equal(t, []string{"1. Rome, 476 AD", "2. Rome, 1200 AD", "3."}, lines)

	lines = RankingLines(labels, 3)
	assert.Equal(t, "3. Rome, 2024 AD", lines[2])

	// numerals visible even with nothing revealed
	lines = RankingLines(labels, 0)
	assert.Equal(t, []string{"1.", "2.", "3."}, lines)
}

func TestStageTaglines(t *testing.T) {
	assert.Equal(t, "Wait for it...", StageTagline(1))
	assert.Equal(t, "The Turning Point", StageTagline(2))
	assert.Equal(t, "The New Reality", StageTagline(3))
	assert.Empty(t, StageTagline(0))
}

func TestEscapeDrawtext(t *testing.T) {
	assert.Equal(t, `Rome\: 476`, escapeDrawtext("Rome: 476"))
	assert.Equal(t, `100\%`, escapeDrawtext("100%"))
	assert.Equal(t, `a\,b`, escapeDrawtext("a,b"))
}

func TestStageFiltersShape(t *testing.T) {
	labels := [3]string{"A", "B", "C"}
	chain := stageFilters(labels, "Rome, 476 AD", "What if **Rome** won?", 1, 1)

	assert.True(t, strings.HasPrefix(chain, "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920"))
	assert.Contains(t, chain, "Wait for it...")
	assert.Contains(t, chain, "enable='lt(t,3)'")
	assert.Contains(t, chain, "1. A")
	assert.NotContains(t, chain, "2. B")

	// stage 3 reveals everything; no title by this point
	chain = stageFilters(labels, "Rome, 2024 AD", "", 3, 3)
	assert.Contains(t, chain, "3. C")
	assert.Contains(t, chain, "The New Reality")
	assert.NotContains(t, chain, "What if")

	// a teaser-style call carries the title with the timed enable
	chain = stageFilters(labels, "", "What if **Rome** won?", 0, 3)
	assert.Contains(t, chain, "What if")
	assert.Contains(t, chain, "enable='lt(t,3)'")
	assert.Contains(t, chain, "3. C")
}
