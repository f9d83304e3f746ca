package assets

import (
	"context"
	"image"
	"image/draw"
	"log/slog"
	"sort"
	"sync"

	"github.com/ivlev/trailer2video/internal/source"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

type Status int

const (
	StatusReady Status = iota + 1
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Result records the outcome of loading one asset.
type Result struct {
	Key    string
	Path   string
	Status Status
	Err    error
}

// LoaderFunc decodes the image a file reference points at.
type LoaderFunc func(ref string) (image.Image, error)

type Option func(*Library)

// WithWorkers bounds how many assets are decoded at once.
func WithWorkers(n int) Option {
	return func(l *Library) {
		if n > 0 {
			l.workers = n
		}
	}
}

func WithLoader(fn LoaderFunc) Option {
	return func(l *Library) {
		l.load = fn
	}
}

// Library preloads assets and serves them, pre-scaled to the canvas size,
// to the compositor. Lookups never fail loudly: a missing or broken asset is
// simply absent.
type Library struct {
	root    string
	catalog Catalog
	width   int
	height  int
	workers int
	load    LoaderFunc

	mu      sync.RWMutex
	images  map[string]*image.RGBA
	results map[string]Result
}

func NewLibrary(root string, catalog Catalog, width, height int, opts ...Option) *Library {
	l := &Library{
		root:    root,
		catalog: catalog,
		width:   width,
		height:  height,
		workers: 4,
		load: func(ref string) (image.Image, error) {
			return source.LoadImage(ref, source.DefaultDPI)
		},
		images:  make(map[string]*image.RGBA),
		results: make(map[string]Result),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Preload loads every key not already attempted. Individual failures are
// logged and recorded in Results; only cancellation is returned.
func (l *Library) Preload(ctx context.Context, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for _, key := range l.pending(keys) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l.loadOne(key)
			return nil
		})
	}
	return g.Wait()
}

func (l *Library) pending(keys []string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		if _, done := l.results[k]; !done {
			out = append(out, k)
		}
	}
	return out
}

func (l *Library) loadOne(key string) {
	path, ok := l.catalog.Resolve(l.root, key)
	if !ok {
		slog.Warn("asset not in catalog", "key", key)
		l.record(Result{Key: key, Status: StatusFailed, Err: errUnknownKey(key)}, nil)
		return
	}

	img, err := l.load(path)
	if err != nil {
		slog.Warn("asset failed to load", "key", key, "path", path, "error", err)
		l.record(Result{Key: key, Path: path, Status: StatusFailed, Err: err}, nil)
		return
	}

	slog.Debug("asset ready", "key", key, "path", path, "size", img.Bounds().Size())
	l.record(Result{Key: key, Path: path, Status: StatusReady}, l.fit(img))
}

func (l *Library) record(r Result, img *image.RGBA) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results[r.Key] = r
	if img != nil {
		l.images[r.Key] = img
	}
}

// fit stretches img to the canvas.
func (l *Library) fit(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, l.width, l.height))
	if img.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func (l *Library) Lookup(key string) (image.Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, ok := l.images[key]
	if !ok {
		return nil, false
	}
	return img, true
}

// Results returns the load outcomes sorted by key.
func (l *Library) Results() []Result {
	l.mu.RLock()
	out := make([]Result, 0, len(l.results))
	for _, r := range l.results {
		out = append(out, r)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Failed counts assets that could not be loaded.
func (l *Library) Failed() int {
	n := 0
	for _, r := range l.Results() {
		if r.Status == StatusFailed {
			n++
		}
	}
	return n
}
