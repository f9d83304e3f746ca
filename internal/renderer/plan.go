// Package renderer is the frame compositor. Plan turns (segments, global time) into a
// list of drawing operations; Canvas executes them onto an RGBA frame buffer.
//
// Overlay motion follows global time and never resets at a cut. Caption and title
// fades follow segment-local time.
package renderer

import (
	"image"
	"image/color"

	"github.com/ivlev/trailer2video/internal/timeline"
	"golang.org/x/image/font"
)

// Background is the fixed clear color (oklch 0.1, near black).
var Background = color.RGBA{R: 3, G: 3, B: 3, A: 255}

// AssetLookup resolves an asset key to a decoded image. A missing or failed asset
// reports false and is skipped by the compositor.
type AssetLookup interface {
	Lookup(key string) (image.Image, bool)
}

// Op is one drawing instruction.
type Op interface {
	isOp()
}

// FillOp clears the whole frame.
type FillOp struct {
	Color color.RGBA
}

// ImageOp draws an image stretched to the full frame, shifted horizontally.
type ImageOp struct {
	Key     string
	Image   image.Image
	OffsetX float64
	Alpha   float64
	Overlay bool
}

// VignetteOp darkens the frame edges with a radial gradient. Radii are fractions of
// the frame height, measured from the frame center.
type VignetteOp struct {
	Inner     float64
	Outer     float64
	EdgeAlpha float64
}

// Shadow is a blurred drop shadow under text.
type Shadow struct {
	Alpha   float64
	Blur    int
	OffsetY int
}

// TextOp draws a single line centered horizontally on X with its middle on Y.
type TextOp struct {
	Text   string
	Face   font.Face
	Color  color.NRGBA
	X, Y   float64
	Alpha  float64
	Shadow *Shadow
}

func (FillOp) isOp()     {}
func (ImageOp) isOp()    {}
func (VignetteOp) isOp() {}
func (TextOp) isOp()     {}

// DefaultVignette is transparent inside 0.3h and reaches 70% black at 0.8h.
var DefaultVignette = VignetteOp{Inner: 0.3, Outer: 0.8, EdgeAlpha: 0.7}

// Compositor plans frames for a fixed canvas size. It shares font faces with the
// canvas and is not safe for concurrent use.
type Compositor struct {
	Width, Height int
	assets        AssetLookup
	fonts         *Fonts
}

func NewCompositor(width, height int, assets AssetLookup, fonts *Fonts) *Compositor {
	return &Compositor{Width: width, Height: height, assets: assets, fonts: fonts}
}

// Plan returns the drawing operations for the frame at globalTime.
func (c *Compositor) Plan(segments []timeline.Segment, globalTime float64) []Op {
	ops := []Op{FillOp{Color: Background}}

	pos, ok := timeline.Locate(segments, globalTime)
	if !ok {
		return ops
	}
	seg := pos.Segment

	if seg.ImageAsset != "" {
		if img, ok := c.lookup(seg.ImageAsset); ok {
			ops = append(ops, ImageOp{Key: seg.ImageAsset, Image: img, Alpha: 1})
		}
	}

	ops = append(ops, c.planOverlays(seg, globalTime)...)
	ops = append(ops, DefaultVignette)

	switch {
	case c.fonts == nil:
	case seg.ShowsTitleCard():
		ops = append(ops, c.planTitleCard(*seg.TitleCard, pos.Local)...)
	case seg.Caption != "":
		ops = append(ops, c.planCaption(seg.Caption, seg.SceneType, pos.Local)...)
	}

	return ops
}

func (c *Compositor) planOverlays(seg timeline.Segment, globalTime float64) []Op {
	if len(seg.Overlays) == 0 {
		return nil
	}

	offsetX, alpha := OverlayMotion(globalTime)
	var ops []Op
	for _, key := range seg.Overlays {
		img, ok := c.lookup(key)
		if !ok {
			continue
		}
		ops = append(ops, ImageOp{Key: key, Image: img, OffsetX: offsetX, Alpha: alpha, Overlay: true})
	}
	return ops
}

func (c *Compositor) lookup(key string) (image.Image, bool) {
	if c.assets == nil {
		return nil, false
	}
	return c.assets.Lookup(key)
}
