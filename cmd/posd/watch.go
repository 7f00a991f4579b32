// ABOUTME: The watch command: a bubbletea view of one source's overlay while stdin is fed into it
// ABOUTME: Station events and log lines reach the model through Program.Send

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/posoverlay/internal/config"
	"github.com/mauromedda/posoverlay/internal/device"
	"github.com/mauromedda/posoverlay/internal/log"
	"github.com/mauromedda/posoverlay/pkg/preview"
	"github.com/mauromedda/posoverlay/pkg/raster"
)

const (
	recentEvents = 6
	recentLogs   = 4
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)

// pauser is the part of the station the view controls.
type pauser interface {
	Pause(ctx context.Context, posID, ch int) error
	Resume(ctx context.Context, posID, ch int) error
}

type (
	eventMsg    device.Event
	logMsg      string
	feedDoneMsg struct{ err error }
	pausedMsg   struct {
		paused bool
		err    error
	}
)

type watchModel struct {
	ctl    pauser
	source config.Source

	width  int
	frame  *raster.Frame
	art    []string
	events []string
	logs   []string

	framed    int
	overflows int
	renders   int
	paused    bool
	inputDone bool
	inputErr  error
}

func newWatchModel(ctl pauser, src config.Source) watchModel {
	return watchModel{ctl: ctl, source: src, width: 80}
}

func (m watchModel) Init() tea.Cmd { return nil }

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width > 0 && msg.Width != m.width {
			m.width = msg.Width
			m.art = preview.Frame(m.frame, m.width)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "p":
			return m, m.togglePause()
		}
	case eventMsg:
		m.applyEvent(device.Event(msg))
	case logMsg:
		m.logs = pushRecent(m.logs, strings.TrimRight(string(msg), "\n"), recentLogs)
	case feedDoneMsg:
		m.inputDone = true
		m.inputErr = msg.err
	case pausedMsg:
		if msg.err != nil {
			m.logs = pushRecent(m.logs, "pause: "+msg.err.Error(), recentLogs)
			break
		}
		m.paused = msg.paused
	}
	return m, nil
}

func (m *watchModel) applyEvent(ev device.Event) {
	if ev.PosID != m.source.ID {
		return
	}
	switch ev.Kind {
	case device.Framed:
		m.framed++
		m.events = pushRecent(m.events, ev.Framed.String(), recentEvents)
	case device.Overflow:
		m.overflows++
		m.events = pushRecent(m.events, "overflow", recentEvents)
	case device.Rendered:
		m.renders++
		m.frame = ev.Frame
		m.art = preview.Frame(m.frame, m.width)
	}
}

// togglePause pauses or resumes the overlay on every channel of the source.
func (m watchModel) togglePause() tea.Cmd {
	if m.ctl == nil || len(m.source.Channels) == 0 {
		return nil
	}
	ctl, id, channels, pause := m.ctl, m.source.ID, m.source.Channels, !m.paused
	return func() tea.Msg {
		ctx := context.Background()
		var errs []error
		for _, ch := range channels {
			if pause {
				errs = append(errs, ctl.Pause(ctx, id, ch))
			} else {
				errs = append(errs, ctl.Resume(ctx, id, ch))
			}
		}
		return pausedMsg{paused: pause, err: errors.Join(errs...)}
	}
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("pos %d  %s", m.source.ID, m.source.Name)))
	b.WriteByte('\n')

	status := fmt.Sprintf("channels %s  events %d  overflows %d  frames %d",
		channelList(m.source.Channels), m.framed, m.overflows, m.renders)
	if m.paused {
		status += "  " + partialStyle.Render("paused")
	}
	switch {
	case m.inputErr != nil:
		status += "  " + partialStyle.Render("input: "+m.inputErr.Error())
	case m.inputDone:
		status += "  " + dimStyle.Render("input ended")
	}
	b.WriteString(status)
	b.WriteString("\n\n")

	if len(m.art) == 0 {
		b.WriteString(dimStyle.Render("waiting for the first frame"))
		b.WriteByte('\n')
	}
	for _, l := range m.art {
		b.WriteString(l)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	for _, e := range m.events {
		b.WriteString(dimStyle.Render(e))
		b.WriteByte('\n')
	}
	for _, l := range m.logs {
		b.WriteString(partialStyle.Render(l))
		b.WriteByte('\n')
	}
	b.WriteString(dimStyle.Render("p pause/resume  q quit"))
	return b.String()
}

// pushRecent appends s and keeps the last n entries.
func pushRecent(list []string, s string, n int) []string {
	list = append(list, s)
	if len(list) > n {
		list = list[len(list)-n:]
	}
	return list
}

// programLog forwards log output into the view so it does not tear the screen.
type programLog struct{ p *tea.Program }

func (w programLog) Write(b []byte) (int, error) {
	w.p.Send(logMsg(string(b)))
	return len(b), nil
}

func runWatch(ctx context.Context, a watchArgs, e env) error {
	s, err := startSession(ctx, a.config, a.source)
	if err != nil {
		return err
	}

	m := newWatchModel(s.st, s.source)
	// stdin carries the capture, so keys come from the controlling terminal.
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInputTTY(),
		tea.WithOutput(e.stderr),
		tea.WithAltScreen(),
	)
	log.SetOutput(programLog{p: p})
	defer log.SetOutput(nil)

	events, unsubscribe := s.st.Subscribe()
	go func() {
		for ev := range events {
			p.Send(eventMsg(ev))
		}
	}()
	feedCtx, stopFeed := context.WithCancel(ctx)
	go func() {
		err := pump(feedCtx, e.stdin, 4096, func(chunk []byte) error {
			return s.st.Feed(a.source, chunk)
		})
		p.Send(feedDoneMsg{err: err})
	}()

	_, runErr := p.Run()
	stopFeed()
	unsubscribe()
	log.SetOutput(nil)
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}
	if runErr != nil {
		runErr = fmt.Errorf("bubble tea: %w", runErr)
	}
	return errors.Join(runErr, s.close())
}
