package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ngmaloney/pendulum/internal/appmsg"
)

// windowLoadMsg is sent once when the program starts
type windowLoadMsg struct{}

// minuteTickMsg fires at the start of every wall-clock minute
type minuteTickMsg time.Time

// channelEventMsg carries one outcome from the message channel
type channelEventMsg struct {
	event appmsg.Event
}

// channelClosedMsg is sent when the event stream ends
type channelClosedMsg struct{}

func loadWindow() tea.Msg {
	return windowLoadMsg{}
}

// tickAtNextMinute schedules a minuteTickMsg for the next minute boundary
func tickAtNextMinute(now time.Time) tea.Cmd {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return tea.Tick(next.Sub(now), func(t time.Time) tea.Msg {
		return minuteTickMsg(t)
	})
}

// waitForEvent blocks on the channel's event stream
func waitForEvent(events <-chan appmsg.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return channelClosedMsg{}
		}
		return channelEventMsg{event: ev}
	}
}
