package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/ngmaloney/pendulum/internal/appmsg"
	"github.com/ngmaloney/pendulum/internal/platform"
	"github.com/ngmaloney/pendulum/internal/weather"
)

// WeatherSource is the part of the weather manager the window drives
type WeatherSource interface {
	Request(ctx context.Context)
	HandleEvent(ev appmsg.Event)
	Subscribe(fn weather.Callback) func()
	State() weather.State
}

// Options configure a Model
type Options struct {
	Platform  platform.Platform
	Use24Hour bool

	// Weather is nil for the weatherless face
	Weather WeatherSource
	Events  <-chan appmsg.Event

	Logger *zap.Logger
	Now    func() time.Time
}

// ClockState is the time the face currently shows
type ClockState struct {
	Hour   int
	Minute int
}

// Model is the watch window: it owns the display and reacts to ticks,
// channel events and keys one at a time
type Model struct {
	display   *Display
	use24h    bool
	weather   WeatherSource
	events    <-chan appmsg.Event
	readings  chan weather.Reading
	unsubs    func()
	logger    *zap.Logger
	now       func() time.Time
	keys      keyMap
	help      help.Model
	width     int
	height    int
	clock     ClockState
	timeText  string
	tempText  string
	condText  string
	unloaded  bool
	refreshes int
}

// NewModel loads the window: reads the wall clock, computes the layout and
// subscribes to weather readings
func NewModel(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := Model{
		display:  NewDisplay(opts.Platform, opts.Weather != nil),
		use24h:   opts.Use24Hour,
		weather:  opts.Weather,
		events:   opts.Events,
		readings: make(chan weather.Reading, 8),
		logger:   opts.Logger,
		now:      opts.Now,
		keys:     newKeyMap(opts.Weather != nil),
		help:     help.New(),
	}
	m.setClock(m.now())

	unknown := weather.UnknownReading()
	m.tempText = FormatTemperature(unknown)
	m.condText = FormatConditions(unknown)

	if m.weather != nil {
		readings := m.readings
		m.unsubs = m.weather.Subscribe(func(r weather.Reading) {
			select {
			case readings <- r:
			default:
			}
		})
	}

	m.logger.Info("main window loaded",
		zap.String("platform", opts.Platform.Name),
		zap.Bool("weather", m.weather != nil),
		zap.Int("face_size", m.display.Layout().FaceSize))
	return m
}

// Init starts the minute ticks, the event stream and the first weather request
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{loadWindow, tickAtNextMinute(m.now())}
	if m.weather != nil && m.events != nil {
		cmds = append(cmds, waitForEvent(m.events))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case windowLoadMsg:
		m.requestWeather()
		return m.drainReadings(), nil

	case minuteTickMsg:
		t := time.Time(msg)
		m.setClock(t)
		if weather.RefreshDue(t) {
			m.requestWeather()
		}
		return m.drainReadings(), tickAtNextMinute(m.now())

	case channelEventMsg:
		if m.weather == nil {
			return m, nil
		}
		m.weather.HandleEvent(msg.event)
		return m.drainReadings(), waitForEvent(m.events)

	case channelClosedMsg:
		m.logger.Debug("message channel closed")
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m = m.Unload()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			m.refreshes++
			m.requestWeather()
			return m.drainReadings(), nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}
	return m, nil
}

// Unload releases what the window created: its display surface and its
// weather subscription
func (m Model) Unload() Model {
	if m.unloaded {
		return m
	}
	if m.unsubs != nil {
		m.unsubs()
		m.unsubs = nil
	}
	m.display = nil
	m.unloaded = true
	m.logger.Info("main window unloaded")
	return m
}

func (m *Model) setClock(t time.Time) {
	m.clock = ClockState{Hour: t.Hour(), Minute: t.Minute()}
	m.timeText = FormatTime(t, m.use24h)
}

func (m Model) requestWeather() {
	if m.weather == nil {
		return
	}
	m.weather.Request(context.Background())
}

// drainReadings applies readings the manager delivered during this update
func (m Model) drainReadings() Model {
	for {
		select {
		case r := <-m.readings:
			m.tempText = FormatTemperature(r)
			m.condText = FormatConditions(r)
			m.logger.Debug("weather displayed", zap.String("temperature", m.tempText), zap.String("conditions", m.condText))
		default:
			return m
		}
	}
}

// Frame returns what the display currently shows
func (m Model) Frame() Frame {
	return Frame{
		Hour:        m.clock.Hour,
		Minute:      m.clock.Minute,
		Time:        m.timeText,
		Temperature: m.tempText,
		Conditions:  m.condText,
	}
}

// View renders the display and the help line
func (m Model) View() string {
	if m.display == nil {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	footer := helpStyle.Render(m.help.View(m.keys))
	if m.weather != nil {
		footer = lipgloss.JoinHorizontal(lipgloss.Top,
			stateStyle.Render(m.weather.State().String()),
			mutedStyle.Render("  "),
			footer)
	}

	rows := m.height - lipgloss.Height(footer)
	if rows < 1 {
		rows = 1
	}
	screen := m.display.RenderTerminal(m.Frame(), m.width, rows)
	return lipgloss.JoinVertical(lipgloss.Left, screen, footer)
}
