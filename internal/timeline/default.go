package timeline

// DefaultTitle names the built-in script; the export file name is derived from it.
const DefaultTitle = "The Curse of Parsi Falia"

// DefaultScript returns a fresh copy of the built-in trailer script.
func DefaultScript() []Segment {
	return []Segment{
		{
			ID:         "opening",
			Label:      "Opening Shot",
			Duration:   5,
			SceneType:  SceneTypeScene,
			ImageAsset: "scene-forest-dusk",
			Overlays:   []string{"overlay-fog"},
			Caption:    "A slow drone pass over rural Kawant at dusk...",
		},
		{
			ID:         "bungalow-exterior",
			Label:      "Cut - Bungalow",
			Duration:   4,
			SceneType:  SceneTypeScene,
			ImageAsset: "scene-bungalow-exterior",
			Overlays:   []string{"overlay-fog", "overlay-embers"},
			Caption:    "An old colonial-era bungalow stands alone...",
		},
		{
			ID:         "voiceover-1",
			Label:      "Voice-over",
			Duration:   3,
			SceneType:  SceneTypeScene,
			ImageAsset: "scene-bungalow-exterior",
			Overlays:   []string{"overlay-fog"},
			Caption:    `"Some stories never stay buried. Some spirits never rest."`,
		},
		{
			ID:         "corridor",
			Label:      "Inside the Bungalow",
			Duration:   4,
			SceneType:  SceneTypeScene,
			ImageAsset: "scene-bungalow-corridor",
			Caption:    "A dim corridor. A lantern flickers...",
		},
		{
			ID:         "quick-cuts-1",
			Label:      "Quick Cuts",
			Duration:   6,
			SceneType:  SceneTypeQuickCut,
			ImageAsset: "scene-tribal-village",
			Caption:    "Tribal village homes glowing under dying torches...",
		},
		{
			ID:         "quick-cuts-2",
			Label:      "Quick Cuts - Forest",
			Duration:   3,
			SceneType:  SceneTypeQuickCut,
			ImageAsset: "scene-forest-path",
			Overlays:   []string{"overlay-fog"},
			Caption:    "A narrow forest path swallowed by fog...",
		},
		{
			ID:         "whisper",
			Label:      "Whisper",
			Duration:   3,
			SceneType:  SceneTypeScene,
			ImageAsset: "scene-spirit-fragment",
			Caption:    `"You returned... too late."`,
		},
		{
			ID:         "climax-montage",
			Label:      "Climax Montage",
			Duration:   5,
			SceneType:  SceneTypeMontage,
			ImageAsset: "scene-spirit-fragment",
			Overlays:   []string{"overlay-embers", "overlay-fog"},
			Caption:    "Doors slam. Embers burst. The spirit appears...",
		},
		{
			ID:         "voiceover-2",
			Label:      "Final Voice-over",
			Duration:   4,
			SceneType:  SceneTypeScene,
			ImageAsset: "scene-bungalow-exterior",
			Overlays:   []string{"overlay-fog"},
			Caption:    `"In Parsi Falia, the past is not forgotten... it hunts."`,
		},
		{
			ID:         "title-card",
			Label:      "Title Card",
			Duration:   5,
			SceneType:  SceneTypeTitleCard,
			ImageAsset: "titlecard-background",
			TitleCard: &TitleCard{
				Title: "THE CURSE OF PARSI FALIA",
				Lines: []string{"Directed by Mit Rathod", "Coming Soon – August 2026"},
			},
		},
	}
}
