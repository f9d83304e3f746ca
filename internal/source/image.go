package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// StillExtensions are the raster formats a storyboard directory may hold.
var StillExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp"}

// ImageSource is a storyboard of stills: one file, or every still in a
// directory ordered so that "shot2" comes before "shot10".
type ImageSource struct {
	stills []string
}

func NewImageSource(path string) (*ImageSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return &ImageSource{stills: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	stills := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(StillExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		stills = append(stills, filepath.Join(path, e.Name()))
	}
	slices.SortFunc(stills, func(a, b string) int {
		return naturalCompare(filepath.Base(a), filepath.Base(b))
	})
	return &ImageSource{stills: stills}, nil
}

func (s *ImageSource) PageCount() int {
	return len(s.stills)
}

func (s *ImageSource) PageSize(index int) (float64, float64, error) {
	var cfg image.Config
	err := s.withStill(index, func(r io.Reader) (err error) {
		cfg, _, err = image.DecodeConfig(r)
		return err
	})
	return float64(cfg.Width), float64(cfg.Height), err
}

// RenderPage decodes the still. dpi only matters for vector pages.
func (s *ImageSource) RenderPage(index int, dpi int) (image.Image, error) {
	var img image.Image
	err := s.withStill(index, func(r io.Reader) (err error) {
		img, _, err = image.Decode(r)
		return err
	})
	return img, err
}

func (s *ImageSource) withStill(index int, fn func(io.Reader) error) error {
	if index < 0 || index >= len(s.stills) {
		return ErrPageOutOfRange
	}
	f, err := os.Open(s.stills[index])
	if err != nil {
		return err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return fmt.Errorf("failed to decode %s: %w", s.stills[index], err)
	}
	return nil
}

func (s *ImageSource) Close() error {
	return nil
}

// naturalCompare orders names by comparing digit runs numerically.
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		da, db := digitPrefix(a), digitPrefix(b)
		if da != "" && db != "" {
			na, nb := strings.TrimLeft(da, "0"), strings.TrimLeft(db, "0")
			if len(na) != len(nb) {
				return len(na) - len(nb)
			}
			if c := strings.Compare(na, nb); c != 0 {
				return c
			}
			a, b = a[len(da):], b[len(db):]
			continue
		}
		if a[0] != b[0] {
			return int(a[0]) - int(b[0])
		}
		a, b = a[1:], b[1:]
	}
	return len(a) - len(b)
}

func digitPrefix(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}
