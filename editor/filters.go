package editor

import (
	"fmt"
	"os"
	"strings"
)

const defaultFontFile = "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"

func fontFile() string {
	if f := os.Getenv("CHRONOREEL_FONT"); f != "" {
		return f
	}
	return defaultFontFile
}

// Overlay styling on the 1080x1920 canvas.
const (
	rankingFontSize = 48
	rankingX        = 64
	rankingTopY     = 140
	rankingLineStep = 68

	labelFontSize   = 56
	labelY          = 1640
	taglineFontSize = 44
	taglineY        = 1726

	titleShowSeconds = 3
	boldColor        = "0xFFD54A"
	plainColor       = "white"
)

var drawtextEscaper = strings.NewReplacer(
	`\`, `\\`,
	`:`, `\:`,
	`'`, `\\\'`,
	`%`, `\%`,
	`,`, `\,`,
)

func escapeDrawtext(s string) string {
	return drawtextEscaper.Replace(s)
}

type drawtext struct {
	text     string
	fontSize int
	color    string
	x        string
	y        string
	enable   string
	box      bool
}

func (d drawtext) filter() string {
	var sb strings.Builder
	sb.WriteString("drawtext=fontfile=")
	sb.WriteString(fontFile())
	sb.WriteString(":text='" + escapeDrawtext(d.text) + "'")
	sb.WriteString(fmt.Sprintf(":fontsize=%d:fontcolor=%s", d.fontSize, d.color))
	sb.WriteString(":x=" + d.x + ":y=" + d.y)
	if d.box {
		sb.WriteString(":box=1:boxcolor=black@0.45:boxborderw=14")
	}
	if d.enable != "" {
		sb.WriteString(":enable='" + d.enable + "'")
	}
	return sb.String()
}

// aspectFill scales the source to cover the canvas and center-crops to
// exact pixel dimensions. Never letterboxes.
func aspectFill() string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d",
		CanvasWidth, CanvasHeight, CanvasWidth, CanvasHeight)
}

// stageFilters builds the full per-stage video filter chain: aspect
// fill, ranking block, year label, tagline, and the timed title
// treatment. Callers pass a non-empty title only for the segment that
// opens the video.
func stageFilters(labels [3]string, stageLabel, title string, stage, revealedThrough int) string {
	filters := []string{aspectFill()}

	for i, line := range RankingLines(labels, revealedThrough) {
		filters = append(filters, drawtext{
			text:     line,
			fontSize: rankingFontSize,
			color:    plainColor,
			x:        fmt.Sprintf("%d", rankingX),
			y:        fmt.Sprintf("%d", rankingTopY+i*rankingLineStep),
			box:      true,
		}.filter())
	}

	if stageLabel != "" {
		filters = append(filters, drawtext{
			text:     stageLabel,
			fontSize: labelFontSize,
			color:    plainColor,
			x:        "(w-text_w)/2",
			y:        fmt.Sprintf("%d", labelY),
			box:      true,
		}.filter())
	}

	if tagline := StageTagline(stage); tagline != "" {
		filters = append(filters, drawtext{
			text:     tagline,
			fontSize: taglineFontSize,
			color:    boldColor,
			x:        "(w-text_w)/2",
			y:        fmt.Sprintf("%d", taglineY),
			enable:   fmt.Sprintf("lt(t,%d)", titleShowSeconds),
		}.filter())
	}

	if title != "" {
		enable := fmt.Sprintf("lt(t,%d)", titleShowSeconds)
		for _, run := range LayoutTitle(title) {
			color := plainColor
			if run.Bold {
				color = boldColor
			}
			filters = append(filters, drawtext{
				text:     run.Text,
				fontSize: titleFontSize,
				color:    color,
				x:        fmt.Sprintf("%d", run.X),
				y:        fmt.Sprintf("%d", run.Y),
				enable:   enable,
				box:      true,
			}.filter())
		}
	}

	return strings.Join(filters, ",")
}
