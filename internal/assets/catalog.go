package assets

import (
	"path/filepath"
	"strings"
)

// Catalog maps asset keys used by segments to files under the asset root.
// Paths may address a PDF page with a "#N" suffix.
type Catalog map[string]string

// DefaultCatalog lists the stills shipped with the default script.
func DefaultCatalog() Catalog {
	keys := []string{
		"scene-forest-dusk",
		"scene-bungalow-exterior",
		"scene-bungalow-corridor",
		"scene-tribal-village",
		"scene-forest-path",
		"scene-spirit-fragment",
		"overlay-embers",
		"overlay-fog",
		"titlecard-background",
	}
	c := make(Catalog, len(keys))
	for _, k := range keys {
		c[k] = filepath.Join("generated", k+".dim_1920x1080.png")
	}
	return c
}

// Resolve returns the file reference for key. Keys missing from the catalog
// that look like file names ("boards/deck.pdf#2") are used as paths directly.
func (c Catalog) Resolve(root, key string) (string, bool) {
	rel, ok := c[key]
	if !ok {
		name, _, _ := strings.Cut(key, "#")
		if filepath.Ext(name) == "" {
			return "", false
		}
		rel = key
	}
	if filepath.IsAbs(rel) {
		return rel, true
	}
	return filepath.Join(root, rel), true
}
