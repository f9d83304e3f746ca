package renderer

import "math"

// FadeSchedule is a linear fade in from local time 0, a hold, and a linear fade out
// beginning at OutStart.
type FadeSchedule struct {
	In       float64 // fade-in length, seconds
	OutStart float64 // local time the fade-out begins
	Out      float64 // fade-out length, seconds
}

var (
	TitleCardFade = FadeSchedule{In: 0.5, OutStart: 4.0, Out: 1.0}
	CaptionFade   = FadeSchedule{In: 0.3, OutStart: 2.5, Out: 0.5}
)

// Alpha returns the opacity at segment-local time, always within [0,1].
func (f FadeSchedule) Alpha(local float64) float64 {
	alpha := 1.0
	switch {
	case local < f.In:
		alpha = local / f.In
	case local > f.OutStart:
		alpha = 1 - (local-f.OutStart)/f.Out
	}
	return clamp01(alpha)
}

// OverlayMotion returns the horizontal drift (pixels) and opacity of overlay layers.
// It depends on global time only, so overlays keep drifting across cuts.
func OverlayMotion(globalTime float64) (offsetX, alpha float64) {
	offsetX = math.Sin(globalTime*0.5) * 10
	alpha = clamp01(0.6 + math.Sin(globalTime*0.3)*0.2)
	return offsetX, alpha
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
