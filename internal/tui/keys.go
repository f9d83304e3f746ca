package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause   key.Binding
	Reset       key.Binding
	Back        key.Binding
	Forward     key.Binding
	Jump        key.Binding
	Shorter     key.Binding
	Longer      key.Binding
	ToggleAudio key.Binding
	VolumeDown  key.Binding
	VolumeUp    key.Binding
	Export      key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	PlayPause:   key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
	Reset:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
	Back:        key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-1s")),
	Forward:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+1s")),
	Jump:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "jump to scene")),
	Shorter:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "shorter")),
	Longer:      key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "longer")),
	ToggleAudio: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "audio on/off")),
	VolumeDown:  key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume")),
	VolumeUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume")),
	Export:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) short() []key.Binding {
	return []key.Binding{k.PlayPause, k.Reset, k.Jump, k.Shorter, k.Longer, k.ToggleAudio, k.Export}
}
