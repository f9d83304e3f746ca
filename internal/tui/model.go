// Package tui is the interactive terminal player.
package tui

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ivlev/trailer2video/internal/audio"
	"github.com/ivlev/trailer2video/internal/clock"
	"github.com/ivlev/trailer2video/internal/recorder"
	"github.com/ivlev/trailer2video/internal/timeline"
)

const (
	refreshInterval = 50 * time.Millisecond
	seekStep        = 1.0
	durationStep    = 0.5
	volumeStep      = 0.1
)

type Player interface {
	TogglePlay()
	Seek(t float64)
	Reset()
	Export(ctx context.Context) error
	SetSegmentDuration(index int, d float64) error
	Segments() []timeline.Segment
	Playback() clock.State
	Recording() recorder.State
}

type AudioControls interface {
	Settings() audio.Settings
	SetEnabled(enabled bool)
	SetVolume(volume float64)
	IsReady() bool
}

type Options struct {
	Title string
	// User is shown in the header when set.
	User string
	// Layout "compact" shows one line per scene.
	Layout string
}

type tickMsg time.Time

type exportStartedMsg struct{}

type recorderEventMsg recorder.Event

type errorMsg struct {
	err error
}

type item struct {
	index    int
	segment  timeline.Segment
	offset   float64
	active   bool
	progress float64
}

func (i item) FilterValue() string { return i.segment.Label }

type itemDelegate struct {
	compact bool
}

func (d itemDelegate) Height() int {
	if d.compact {
		return 1
	}
	return 2
}
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(item)
	if !ok {
		return
	}

	mark := " "
	if i.active {
		mark = ActiveMarkStyle.Render("●")
	}
	str := fmt.Sprintf("%s %s %s", mark, i.segment.Label, DimTextStyle.Render(fmt.Sprintf("%.1fs", i.segment.Duration)))

	fn := ItemStyle.Render
	if index == m.Index() {
		fn = func(s ...string) string {
			return SelectedItemStyle.Render("> " + strings.Join(s, " "))
		}
	}

	if d.compact {
		fmt.Fprintf(w, "%s", fn(str))
		return
	}
	detail := fmt.Sprintf("%s  %s", formatTime(i.offset), string(i.segment.SceneType))
	fmt.Fprintf(w, "%s\n%s", TimestampStyle.Render(detail), fn(str))
}

type model struct {
	ctx     context.Context
	player  Player
	audio   AudioControls
	events  <-chan recorder.Event
	opts    Options
	spinner spinner.Model
	list    list.Model

	playback  clock.State
	recording recorder.State
	exporting bool
	statuses  []string
	errorMsg  string
	quitting  bool
}

// New builds the player model. events carries recorder notifications and
// may be nil.
func New(ctx context.Context, player Player, audio AudioControls, events <-chan recorder.Event, opts Options) tea.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	delegate := itemDelegate{compact: opts.Layout == "compact"}
	l := list.New(nil, delegate, 64, 16)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)
	l.SetShowPagination(false)
	l.AdditionalShortHelpKeys = keys.short

	m := model{
		ctx:     ctx,
		player:  player,
		audio:   audio,
		events:  events,
		opts:    opts,
		spinner: s,
		list:    l,
	}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForEvent(events <-chan recorder.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return recorderEventMsg(e)
	}
}

func exportCmd(ctx context.Context, p Player) tea.Cmd {
	return func() tea.Msg {
		if err := p.Export(ctx); err != nil {
			return errorMsg{err}
		}
		return exportStartedMsg{}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), waitForEvent(m.events))
}

// refresh pulls playback and timeline state from the player.
func (m *model) refresh() {
	m.playback = m.player.Playback()
	m.recording = m.player.Recording()

	segments := m.player.Segments()
	offsets := timeline.Offsets(segments)
	pos, hasActive := timeline.Locate(segments, m.playback.CurrentTime)

	items := make([]list.Item, len(segments))
	for i, seg := range segments {
		it := item{index: i, segment: seg, offset: offsets[i]}
		if hasActive && pos.Index == i {
			it.active = true
			it.progress = pos.Local / seg.Duration
		}
		items[i] = it
	}
	m.list.SetItems(items)
}

func (m model) selected() (item, bool) {
	it, ok := m.list.SelectedItem().(item)
	return it, ok
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.refresh()
		return m, tick()

	case exportStartedMsg:
		m.statuses = append(m.statuses, "Recording started.")
		return m, m.spinner.Tick

	case recorderEventMsg:
		switch msg.Stage {
		case recorder.StageComplete:
			m.exporting = false
			m.statuses = append(m.statuses, msg.Message, "Saved output to "+msg.Location)
		case recorder.StageError:
			m.exporting = false
			if msg.Err != nil {
				m.errorMsg = msg.Err.Error()
			}
			m.statuses = append(m.statuses, msg.Message)
		}
		return m, waitForEvent(m.events)

	case errorMsg:
		m.exporting = false
		m.errorMsg = msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		if m.exporting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.PlayPause):
		m.player.TogglePlay()

	case key.Matches(msg, keys.Reset):
		m.player.Reset()

	case key.Matches(msg, keys.Back):
		m.player.Seek(m.player.Playback().CurrentTime - seekStep)

	case key.Matches(msg, keys.Forward):
		m.player.Seek(m.player.Playback().CurrentTime + seekStep)

	case key.Matches(msg, keys.Jump):
		if it, ok := m.selected(); ok {
			m.player.Seek(it.offset)
		}

	case key.Matches(msg, keys.Shorter), key.Matches(msg, keys.Longer):
		if it, ok := m.selected(); ok {
			step := durationStep
			if key.Matches(msg, keys.Shorter) {
				step = -step
			}
			if err := m.player.SetSegmentDuration(it.index, it.segment.Duration+step); err != nil {
				m.errorMsg = err.Error()
			}
		}

	case key.Matches(msg, keys.ToggleAudio):
		if m.audio != nil {
			m.audio.SetEnabled(!m.audio.Settings().Enabled)
		}

	case key.Matches(msg, keys.VolumeDown), key.Matches(msg, keys.VolumeUp):
		if m.audio != nil {
			step := volumeStep
			if key.Matches(msg, keys.VolumeDown) {
				step = -step
			}
			v := math.Round((m.audio.Settings().Volume+step)*10) / 10
			m.audio.SetVolume(v)
		}

	case key.Matches(msg, keys.Export):
		if m.exporting || m.recording.Recording {
			return m, nil
		}
		m.exporting = true
		m.errorMsg = ""
		return m, tea.Batch(m.spinner.Tick, exportCmd(m.ctx, m.player))

	default:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	m.refresh()
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(BulletStyle.Render("┌") + TitleStyle.Render(m.opts.Title))
	if m.opts.User != "" {
		b.WriteString(DimTextStyle.Render("  " + m.opts.User))
	}
	b.WriteString("\n")
	b.WriteString(styleOutput(m.statuses))

	if m.quitting {
		return b.String()
	}

	state := "paused"
	if m.playback.Playing {
		state = "playing"
	}
	fmt.Fprintf(&b, "%s%s / %s  %s\n",
		BulletStyle.Render("├"),
		TextStyle.Render(formatTime(m.playback.CurrentTime)),
		DimTextStyle.Render(formatTime(m.playback.TotalDuration)),
		DimTextStyle.Render(state))
	b.WriteString(BulletStyle.Render("├") + progressBar(m.playback.Progress(), 40) + "\n")

	if m.audio != nil {
		b.WriteString(BulletStyle.Render("├") + audioLine(m.audio.Settings(), m.audio.IsReady()) + "\n")
	}

	if m.exporting || m.recording.Recording {
		fmt.Fprintf(&b, "%s%sRecording... %d%%\n", BulletStyle.Render("├"), m.spinner.View(), m.recording.Progress)
	}
	if m.errorMsg != "" {
		b.WriteString(BulletStyle.Render("├") + ErrorStyle.Render(m.errorMsg) + "\n")
	}

	b.WriteString(BulletStyle.Render("│") + "\n")
	b.WriteString(m.list.View())
	return b.String()
}

func styleOutput(statuses []string) string {
	var b strings.Builder
	for _, s := range statuses {
		b.WriteString(BulletStyle.Render("├") + SuccessStyle.Render(s) + "\n")
	}
	return b.String()
}

func audioLine(s audio.Settings, ready bool) string {
	if !s.Enabled {
		return DimTextStyle.Render("audio off")
	}
	status := ""
	if !ready {
		status = " (loading)"
	}
	return TextStyle.Render(fmt.Sprintf("audio %s %d%%%s", s.SelectedTrackID, int(math.Round(s.Volume*100)), status))
}

func progressBar(p float64, width int) string {
	filled := int(math.Round(p * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return ProgressFillStyle.Render(strings.Repeat("█", filled)) + DimTextStyle.Render(strings.Repeat("░", width-filled))
}

func formatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	whole := int(sec)
	return fmt.Sprintf("%d:%02d.%d", whole/60, whole%60, int((sec-float64(whole))*10))
}
