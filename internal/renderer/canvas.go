package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/ivlev/trailer2video/internal/system"
	"github.com/ivlev/trailer2video/internal/timeline"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Canvas is the live frame buffer. Render repaints it; Snapshot hands out copies for
// the recorder.
type Canvas struct {
	mu        sync.Mutex
	comp      *Compositor
	frame     *image.RGBA
	vignettes map[VignetteOp]*image.Alpha
	rendered  bool
}

func NewCanvas(comp *Compositor) *Canvas {
	return &Canvas{
		comp:      comp,
		frame:     image.NewRGBA(image.Rect(0, 0, comp.Width, comp.Height)),
		vignettes: make(map[VignetteOp]*image.Alpha),
	}
}

func (c *Canvas) Bounds() image.Rectangle {
	return c.frame.Bounds()
}

// Render repaints the frame for (segments, globalTime) and returns the executed ops.
func (c *Canvas) Render(segments []timeline.Segment, globalTime float64) []Op {
	c.mu.Lock()
	defer c.mu.Unlock()

	ops := c.comp.Plan(segments, globalTime)
	c.execute(c.frame, ops)
	c.rendered = true
	return ops
}

// Snapshot copies the current frame into a pooled image. Callers hand it back with
// system.ReleaseFrame once written.
func (c *Canvas) Snapshot() (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.rendered {
		return nil, false
	}
	img := system.AcquireFrame(c.frame.Rect)
	copy(img.Pix, c.frame.Pix)
	return img, true
}

// EncodePNG writes the current frame as PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return png.Encode(w, c.frame)
}

func (c *Canvas) execute(dst *image.RGBA, ops []Op) {
	for _, op := range ops {
		switch op := op.(type) {
		case FillOp:
			draw.Draw(dst, dst.Bounds(), image.NewUniform(op.Color), image.Point{}, draw.Src)
		case ImageOp:
			drawImage(dst, op)
		case VignetteOp:
			mask := c.vignetteMask(op, dst.Bounds())
			draw.DrawMask(dst, dst.Bounds(), image.Black, image.Point{}, mask, image.Point{}, draw.Over)
		case TextOp:
			drawText(dst, op)
		}
	}
}

// drawImage stretches the image over the full frame shifted by OffsetX. Assets are
// normally pre-scaled to the frame size, which keeps this on the fast path.
func drawImage(dst *image.RGBA, op ImageOp) {
	if op.Image == nil || op.Alpha <= 0 {
		return
	}
	dx := int(math.Round(op.OffsetX))
	r := dst.Bounds().Add(image.Pt(dx, 0))

	src := op.Image
	if src.Bounds().Size() != dst.Bounds().Size() {
		scaled := image.NewRGBA(image.Rect(0, 0, dst.Bounds().Dx(), dst.Bounds().Dy()))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)
		src = scaled
	}

	if op.Alpha >= 1 {
		draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(op.Alpha*255 + 0.5)})
	draw.DrawMask(dst, r, src, src.Bounds().Min, mask, image.Point{}, draw.Over)
}

func (c *Canvas) vignetteMask(op VignetteOp, bounds image.Rectangle) *image.Alpha {
	if m, ok := c.vignettes[op]; ok && m.Bounds() == bounds {
		return m
	}
	m := VignetteMask(op, bounds)
	c.vignettes[op] = m
	return m
}

// VignetteMask computes the per-pixel black coverage of a vignette.
func VignetteMask(op VignetteOp, bounds image.Rectangle) *image.Alpha {
	m := image.NewAlpha(bounds)
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	cx, cy := w/2, h/2
	r0, r1 := op.Inner*h, op.Outer*h

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			t := 0.0
			switch {
			case d >= r1:
				t = 1
			case d > r0:
				t = (d - r0) / (r1 - r0)
			}
			m.Pix[y*m.Stride+x] = uint8(t*op.EdgeAlpha*255 + 0.5)
		}
	}
	return m
}

func drawText(dst *image.RGBA, op TextOp) {
	if op.Face == nil || op.Text == "" || op.Alpha <= 0 {
		return
	}

	width := font.MeasureString(op.Face, op.Text)
	metrics := op.Face.Metrics()
	// Canvas "middle" baseline: the glyph box is centered on Y.
	baseline := op.Y + float64(metrics.Ascent.Round()-metrics.Descent.Round())/2
	origin := fixed.Point26_6{
		X: fixed.Int26_6((op.X - float64(width)/64/2) * 64),
		Y: fixed.Int26_6(baseline * 64),
	}

	if op.Shadow != nil && op.Shadow.Alpha > 0 {
		drawShadow(dst, op, origin)
	}

	col := op.Color
	col.A = uint8(float64(col.A)*op.Alpha + 0.5)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: op.Face, Dot: origin}
	d.DrawString(op.Text)
}

func drawShadow(dst *image.RGBA, op TextOp, origin fixed.Point26_6) {
	bounds, _ := font.BoundString(op.Face, op.Text)
	pad := op.Shadow.Blur
	r := image.Rect(
		(origin.X+bounds.Min.X).Floor()-pad,
		(origin.Y+bounds.Min.Y).Floor()-pad+op.Shadow.OffsetY,
		(origin.X+bounds.Max.X).Ceil()+pad,
		(origin.Y+bounds.Max.Y).Ceil()+pad+op.Shadow.OffsetY,
	)
	if r.Empty() {
		return
	}

	mask := image.NewAlpha(r)
	d := &font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: op.Face,
		Dot:  fixed.Point26_6{X: origin.X, Y: origin.Y + fixed.I(op.Shadow.OffsetY)},
	}
	d.DrawString(op.Text)
	boxBlur(mask, op.Shadow.Blur/2)

	shade := image.NewUniform(color.NRGBA{A: uint8(op.Shadow.Alpha*op.Alpha*255 + 0.5)})
	draw.DrawMask(dst, r, shade, image.Point{}, mask, r.Min, draw.Over)
}

// boxBlur runs a separable box blur of the given radius over the mask in place.
func boxBlur(m *image.Alpha, radius int) {
	if radius <= 0 {
		return
	}
	w, h := m.Rect.Dx(), m.Rect.Dy()
	tmp := make([]uint8, len(m.Pix))
	size := 2*radius + 1

	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		sum := 0
		for x := -radius; x <= radius; x++ {
			sum += int(row[clampIndex(x, w)])
		}
		for x := 0; x < w; x++ {
			tmp[y*m.Stride+x] = uint8(sum / size)
			sum += int(row[clampIndex(x+radius+1, w)]) - int(row[clampIndex(x-radius, w)])
		}
	}

	for x := 0; x < w; x++ {
		sum := 0
		for y := -radius; y <= radius; y++ {
			sum += int(tmp[clampIndex(y, h)*m.Stride+x])
		}
		for y := 0; y < h; y++ {
			m.Pix[y*m.Stride+x] = uint8(sum / size)
			sum += int(tmp[clampIndex(y+radius+1, h)*m.Stride+x]) - int(tmp[clampIndex(y-radius, h)*m.Stride+x])
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
