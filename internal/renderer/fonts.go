package renderer

import (
	"fmt"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Fonts holds every face the compositor draws with. Faces cache glyphs and are not
// safe for concurrent use; Canvas serializes access.
type Fonts struct {
	Title           font.Face
	Subtitle        font.Face
	Line            font.Face
	Caption         font.Face
	CaptionEmphasis font.Face
}

// LoadFonts builds the faces from the embedded Go fonts.
func LoadFonts() (*Fonts, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	italic, err := opentype.Parse(goitalic.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse italic font: %w", err)
	}

	f := &Fonts{}
	if f.Title, err = newFace(bold, 96); err != nil {
		return nil, err
	}
	if f.Subtitle, err = newFace(italic, 44); err != nil {
		f.Close()
		return nil, err
	}
	if f.Line, err = newFace(regular, 32); err != nil {
		f.Close()
		return nil, err
	}
	if f.Caption, err = newFace(regular, 36); err != nil {
		f.Close()
		return nil, err
	}
	if f.CaptionEmphasis, err = newFace(italic, 48); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func newFace(src *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %.0fpx face: %w", size, err)
	}
	return face, nil
}

func (f *Fonts) Close() error {
	for _, face := range []font.Face{f.Title, f.Subtitle, f.Line, f.Caption, f.CaptionEmphasis} {
		if face != nil {
			face.Close()
		}
	}
	return nil
}
