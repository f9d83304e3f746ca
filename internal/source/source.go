package source

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI is used when rendering PDF storyboard pages.
const DefaultDPI = 144

var ErrPageOutOfRange = errors.New("page index out of range")

// Source yields still images by page index. Stills and directories of stills
// are ImageSource, PDF storyboards are FitzPDFSource.
type Source interface {
	PageCount() int
	PageSize(index int) (width, height float64, err error)
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

// Ref addresses one page of a source. "deck.pdf#3" is the third page of
// deck.pdf; a bare path is its first page.
type Ref struct {
	Path string
	Page int
}

func ParseRef(ref string) (Ref, error) {
	path, frag, found := strings.Cut(ref, "#")
	if path == "" {
		return Ref{}, fmt.Errorf("empty asset path in %q", ref)
	}
	if !found {
		return Ref{Path: path}, nil
	}
	n, err := strconv.Atoi(frag)
	if err != nil || n < 1 {
		return Ref{}, fmt.Errorf("invalid page %q in %q", frag, ref)
	}
	return Ref{Path: path, Page: n - 1}, nil
}

// Open picks the source implementation by extension.
func Open(path string) (Source, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return NewFitzPDFSource(path)
	}
	return NewImageSource(path)
}

// LoadImage renders the page a reference points at.
func LoadImage(ref string, dpi int) (image.Image, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	src, err := Open(r.Path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if r.Page >= src.PageCount() {
		return nil, fmt.Errorf("%s page %d of %d: %w", r.Path, r.Page+1, src.PageCount(), ErrPageOutOfRange)
	}
	return src.RenderPage(r.Page, dpi)
}

// FitzPDFSource renders PDF pages through MuPDF. The document handle is not
// safe for concurrent use, so calls are serialized.
type FitzPDFSource struct {
	mu   sync.Mutex
	doc  *fitz.Document
	path string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.NumPage()
}

func (f *FitzPDFSource) PageSize(index int) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	img, err := f.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render %s page %d: %w", f.path, index+1, err)
	}
	return img, nil
}

func (f *FitzPDFSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Close()
}
