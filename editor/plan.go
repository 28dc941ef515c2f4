package editor

import (
	"math"
	"strings"
)

// Canvas is the fixed vertical output frame.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920
)

// ReconcilePlan says how to stretch a stage's media to a common length.
// Loop counts are extra whole-clip repetitions (ffmpeg -stream_loop
// semantics), applied before trimming to Target.
type ReconcilePlan struct {
	Target     float64
	VideoLoops int
	AudioLoops int
}

// Reconcile picks the longer of video and audio as the stage duration
// and loops whichever source is shorter until it covers the target.
// audioDur 0 means the clip carries its own audio; the video duration
// wins and nothing loops.
func Reconcile(videoDur, audioDur float64) ReconcilePlan {
	if audioDur <= 0 {
		return ReconcilePlan{Target: videoDur}
	}

	plan := ReconcilePlan{Target: math.Max(videoDur, audioDur)}
	if videoDur < plan.Target {
		plan.VideoLoops = extraLoops(videoDur, plan.Target)
	}
	if audioDur < plan.Target {
		plan.AudioLoops = extraLoops(audioDur, plan.Target)
	}
	return plan
}

func extraLoops(src, target float64) int {
	if src <= 0 {
		return 0
	}
	return int(math.Ceil(target/src)) - 1
}

// TextRun is a span of title text, either plain or emphasized.
type TextRun struct {
	Text string
	Bold bool
}

// ParseMarkup splits a title on ** markers into alternating plain and
// emphasized runs. An unclosed marker keeps the trailing text plain.
func ParseMarkup(s string) []TextRun {
	parts := strings.Split(s, "**")
	runs := make([]TextRun, 0, len(parts))
	unclosed := len(parts)%2 == 0
	for i, part := range parts {
		if part == "" {
			continue
		}
		bold := i%2 == 1
		if bold && unclosed && i == len(parts)-1 {
			bold = false
		}
		runs = append(runs, TextRun{Text: part, Bold: bold})
	}
	return runs
}

type word struct {
	text string
	bold bool
}

func splitWords(runs []TextRun) []word {
	var words []word
	for _, run := range runs {
		for _, w := range strings.Fields(run.Text) {
			words = append(words, word{text: w, bold: run.Bold})
		}
	}
	return words
}

// wrapWords packs words into lines no wider than maxChars (counting
// single spaces between words). A word longer than maxChars gets its
// own line rather than being split.
func wrapWords(words []word, maxChars int) [][]word {
	var lines [][]word
	var line []word
	width := 0
	for _, w := range words {
		needed := len(w.text)
		if len(line) > 0 {
			needed++
		}
		if len(line) > 0 && width+needed > maxChars {
			lines = append(lines, line)
			line = nil
			width = 0
			needed = len(w.text)
		}
		line = append(line, w)
		width += needed
	}
	if len(line) > 0 {
		lines = append(lines, line)
	}
	return lines
}

// Title layout tuning. Character width is an estimate for the bundled
// font at titleFontSize; exact kerning is not worth a font-metrics
// dependency for a centered block.
const (
	titleFontSize  = 64
	titleCharWidth = 36
	titleLineStep  = 88
	titleTopY      = 280
	titleMaxChars  = 24
)

// PlacedRun is a styled text span at absolute canvas coordinates.
type PlacedRun struct {
	Text string
	Bold bool
	X    int
	Y    int
}

// LayoutTitle turns a marked-up title into absolutely positioned runs:
// markup parsed, words wrapped into a fixed-width block, each line
// centered, adjacent same-style words merged into one run.
func LayoutTitle(title string) []PlacedRun {
	lines := wrapWords(splitWords(ParseMarkup(title)), titleMaxChars)

	var placed []PlacedRun
	for i, line := range lines {
		lineChars := len(line) - 1
		for _, w := range line {
			lineChars += len(w.text)
		}
		x := (CanvasWidth - lineChars*titleCharWidth) / 2
		y := titleTopY + i*titleLineStep

		// merge consecutive words sharing a style
		j := 0
		for j < len(line) {
			k := j
			var sb strings.Builder
			for k < len(line) && line[k].bold == line[j].bold {
				if k > j {
					sb.WriteString(" ")
				}
				sb.WriteString(line[k].text)
				k++
			}
			placed = append(placed, PlacedRun{Text: sb.String(), Bold: line[j].bold, X: x, Y: y})
			x += (sb.Len() + 1) * titleCharWidth
			j = k
		}
	}
	return placed
}

// RankingLines renders the three numbered overlay lines. Numerals are
// always visible; a line's label appears only once the video has
// reached that stage. revealedThrough is the highest revealed stage.
func RankingLines(labels [3]string, revealedThrough int) []string {
	lines := make([]string, 3)
	for i := 0; i < 3; i++ {
		n := i + 1
		if n <= revealedThrough && labels[i] != "" {
			lines[i] = numeral(n) + " " + labels[i]
		} else {
			lines[i] = numeral(n)
		}
	}
	return lines
}

func numeral(n int) string {
	return string(rune('0'+n)) + "."
}

// StageTagline is the short caption shown under the year label.
func StageTagline(stage int) string {
	switch stage {
	case 1:
		return "Wait for it..."
	case 2:
		return "The Turning Point"
	case 3:
		return "The New Reality"
	}
	return ""
}
