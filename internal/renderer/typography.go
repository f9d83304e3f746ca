package renderer

import (
	"image/color"
	"strings"

	"github.com/ivlev/trailer2video/internal/timeline"
	"golang.org/x/image/font"
	"golang.org/x/text/unicode/norm"
)

var (
	textPrimary   = color.NRGBA{R: 239, G: 239, B: 239, A: 255} // oklch 0.95
	textSecondary = color.NRGBA{R: 223, G: 223, B: 223, A: 255} // oklch 0.90
	textMuted     = color.NRGBA{R: 206, G: 206, B: 206, A: 255} // oklch 0.85
)

const (
	titleOffsetY     = -80.0
	subtitleOffsetY  = 0.0
	titleLinesStartY = 60.0
	titleLineHeight  = 50.0

	captionMargin         = 100 // each side
	captionBottomOffset   = 150.0
	captionLineHeight     = 50.0
	captionEmphasisHeight = 60.0
)

func (c *Compositor) planTitleCard(tc timeline.TitleCard, local float64) []Op {
	alpha := TitleCardFade.Alpha(local)
	if alpha <= 0 {
		return nil
	}

	cx := float64(c.Width) / 2
	cy := float64(c.Height) / 2

	var ops []Op
	if tc.Title != "" {
		ops = append(ops, TextOp{
			Text:   normalize(tc.Title),
			Face:   c.fonts.Title,
			Color:  textPrimary,
			X:      cx,
			Y:      cy + titleOffsetY,
			Alpha:  alpha,
			Shadow: &Shadow{Alpha: 0.9, Blur: 20, OffsetY: 4},
		})
	}
	if tc.Subtitle != "" {
		ops = append(ops, TextOp{
			Text:   normalize(tc.Subtitle),
			Face:   c.fonts.Subtitle,
			Color:  textSecondary,
			X:      cx,
			Y:      cy + subtitleOffsetY,
			Alpha:  alpha,
			Shadow: &Shadow{Alpha: 0.8, Blur: 12, OffsetY: 2},
		})
	}
	for i, line := range tc.Lines {
		ops = append(ops, TextOp{
			Text:   normalize(line),
			Face:   c.fonts.Line,
			Color:  textMuted,
			X:      cx,
			Y:      cy + titleLinesStartY + float64(i)*titleLineHeight,
			Alpha:  alpha,
			Shadow: &Shadow{Alpha: 0.8, Blur: 10, OffsetY: 2},
		})
	}
	return ops
}

func (c *Compositor) planCaption(caption string, sceneType timeline.SceneType, local float64) []Op {
	alpha := CaptionFade.Alpha(local)
	if alpha <= 0 {
		return nil
	}

	face := c.fonts.Caption
	y := float64(c.Height) - captionBottomOffset
	lineHeight := captionLineHeight
	if sceneType.Emphasized() {
		face = c.fonts.CaptionEmphasis
		y = float64(c.Height) / 2
		lineHeight = captionEmphasisHeight
	}

	lines := WrapText(face, normalize(caption), c.Width-2*captionMargin)
	startY := y - float64(len(lines)-1)*lineHeight/2

	ops := make([]Op, 0, len(lines))
	for i, line := range lines {
		ops = append(ops, TextOp{
			Text:   line,
			Face:   face,
			Color:  textPrimary,
			X:      float64(c.Width) / 2,
			Y:      startY + float64(i)*lineHeight,
			Alpha:  alpha,
			Shadow: &Shadow{Alpha: 0.8, Blur: 15, OffsetY: 2},
		})
	}
	return ops
}

// WrapText greedily breaks text on spaces so that no line is wider than maxWidth.
// A single word wider than maxWidth gets a line of its own.
func WrapText(face font.Face, text string, maxWidth int) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current != "" && font.MeasureString(face, candidate).Ceil() > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func normalize(s string) string {
	return norm.NFC.String(s)
}
