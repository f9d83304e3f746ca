// Package timeline models the trailer as an ordered list of timed segments and maps a
// single continuous time value onto "active segment + local time".
//
// Everything here is a pure computation over the slice it is given; there is no cached
// index, so callers may freely replace the slice between queries.
package timeline

// SceneType selects how a segment is presented.
type SceneType string

const (
	SceneTypeScene     SceneType = "scene"
	SceneTypeTitleCard SceneType = "titleCard"
	SceneTypeQuickCut  SceneType = "quickCut"
	SceneTypeMontage   SceneType = "montage"
)

// Valid reports whether s is one of the known scene types.
func (s SceneType) Valid() bool {
	switch s {
	case SceneTypeScene, SceneTypeTitleCard, SceneTypeQuickCut, SceneTypeMontage:
		return true
	}
	return false
}

// Emphasized reports whether captions of this scene type are drawn large and centered.
func (s SceneType) Emphasized() bool {
	return s == SceneTypeQuickCut || s == SceneTypeMontage
}

// TitleCard holds the text of a title card segment.
type TitleCard struct {
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Subtitle string   `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Lines    []string `json:"lines,omitempty" yaml:"lines,omitempty"`
}

// Segment is one timed unit of the trailer.
type Segment struct {
	ID         string     `json:"id" yaml:"id"`
	Label      string     `json:"label" yaml:"label"`
	Duration   float64    `json:"duration" yaml:"duration"` // seconds, > 0
	SceneType  SceneType  `json:"sceneType" yaml:"scene_type"`
	ImageAsset string     `json:"imageAsset,omitempty" yaml:"image_asset,omitempty"`
	Overlays   []string   `json:"overlays,omitempty" yaml:"overlays,omitempty"`
	Caption    string     `json:"caption,omitempty" yaml:"caption,omitempty"`
	TitleCard  *TitleCard `json:"titleCard,omitempty" yaml:"title_card,omitempty"`
}

// ShowsTitleCard reports whether the segment renders its title card instead of a caption.
func (s Segment) ShowsTitleCard() bool {
	return s.SceneType == SceneTypeTitleCard && s.TitleCard != nil
}

// AssetKeys returns every image asset the segment references, base image first.
func (s Segment) AssetKeys() []string {
	keys := make([]string, 0, len(s.Overlays)+1)
	if s.ImageAsset != "" {
		keys = append(keys, s.ImageAsset)
	}
	return append(keys, s.Overlays...)
}
