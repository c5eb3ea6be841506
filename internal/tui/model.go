package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harun/drawerq/pkg/drawer"
	"github.com/harun/drawerq/pkg/navigation"
	"github.com/rs/zerolog"
)

const (
	defaultWidth   = 80
	defaultHeight  = 24
	maxDrawerWidth = 48
)

// Options configures the demo renderer.
type Options struct {
	Controller     *drawer.Controller
	Navigation     *navigation.Stack
	Routes         []string
	ExitTransition time.Duration
	Logger         zerolog.Logger
}

// overlayMsg carries the controller's current overlay into the update loop.
type overlayMsg drawer.Overlay

// exitDoneMsg fires when the exit transition of id has finished playing.
type exitDoneMsg struct {
	id string
}

// Model is the bubbletea model of the interactive demo. It mounts the
// controller's current overlay and acknowledges closes after the exit
// transition.
type Model struct {
	ctrl   *drawer.Controller
	nav    *navigation.Stack
	routes []string
	exit   time.Duration
	logger zerolog.Logger

	notify    chan struct{}
	done      chan struct{}
	closeOnce *sync.Once
	cancel    func()

	overlay drawer.Overlay
	exiting string
	route   int
	width   int
	height  int
	status  string
}

// New creates the model and subscribes it to the controller. If the
// navigation stack is empty the first route is mounted.
func New(opts Options) Model {
	routes := opts.Routes
	if len(routes) == 0 {
		routes = []string{"main"}
	}

	m := Model{
		ctrl:      opts.Controller,
		nav:       opts.Navigation,
		routes:    routes,
		exit:      opts.ExitTransition,
		logger:    opts.Logger.With().Str("component", "tui").Logger(),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		closeOnce: &sync.Once{},
		status:    "Press 1-4 to open a drawer",
	}

	notify := m.notify
	m.cancel = m.ctrl.Subscribe(func(drawer.Overlay) {
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	if m.nav != nil && m.nav.Depth() == 0 {
		m.nav.Push(routes[0])
	}
	m.overlay = m.ctrl.Current()
	return m
}

// Close detaches the model from the controller.
func (m Model) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		close(m.done)
	})
}

func (m Model) Init() tea.Cmd {
	current := m.ctrl.Current()
	return tea.Batch(
		m.waitForOverlay(),
		func() tea.Msg { return overlayMsg(current) },
	)
}

// waitForOverlay blocks until the controller publishes a change and reports
// the latest overlay. Changes that arrive in a burst coalesce.
func (m Model) waitForOverlay() tea.Cmd {
	notify, done, ctrl := m.notify, m.done, m.ctrl
	return func() tea.Msg {
		select {
		case <-notify:
			return overlayMsg(ctrl.Current())
		case <-done:
			return nil
		}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case overlayMsg:
		cmd := m.observe(drawer.Overlay(msg))
		return m, tea.Batch(m.waitForOverlay(), cmd)

	case exitDoneMsg:
		// exiting stays set while the overlay is still closing, e.g. when
		// the ack was deferred by the lock gate.
		m.logger.Debug().Str("drawerId", msg.id).Msg("Exit transition finished")
		m.ctrl.Acknowledge(msg.id)
		cmd := m.observe(m.ctrl.Current())
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// observe records o as the mounted overlay and starts its exit transition
// the first time it is seen closing.
func (m *Model) observe(o drawer.Overlay) tea.Cmd {
	m.overlay = o
	if !o.Closing {
		m.exiting = ""
		return nil
	}
	if m.exiting == o.ID {
		return nil
	}
	m.exiting = o.ID
	return m.exitTransition(o.ID)
}

func (m Model) exitTransition(id string) tea.Cmd {
	if m.exit <= 0 {
		return func() tea.Msg { return exitDoneMsg{id: id} }
	}
	return tea.Tick(m.exit, func(time.Time) tea.Msg {
		return exitDoneMsg{id: id}
	})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "1", "2", "3", "4":
		id := "drawer" + key
		m.ctrl.Toggle(id, m.scope(), fmt.Sprintf("Drawer %s opened on %s", key, m.routeName()))
		if m.ctrl.Desired(id) {
			m.status = "Requested " + id
		} else {
			m.status = "Withdrew " + id
		}

	case "f":
		m.ctrl.ForceOpen("forced", m.scope(), "Forced drawer, the queue was discarded")
		m.status = "Forced a drawer"

	case "a":
		m.ctrl.Toggle("app", drawer.AppScope, "App-level drawer, survives navigation")
		m.status = "Toggled the app-level drawer"

	case "c", "esc":
		current := m.ctrl.Current()
		if current.Empty() {
			m.status = "Nothing to close"
			break
		}
		m.ctrl.RequestClose(current.ID)
		m.status = "Closing " + current.ID

	case "n":
		if m.nav == nil {
			break
		}
		m.route = (m.route + 1) % len(m.routes)
		scope := m.nav.Replace(m.routes[m.route])
		m.status = "Navigated to " + scope.Route

	case "p":
		if m.nav == nil {
			break
		}
		m.route = (m.route + 1) % len(m.routes)
		scope := m.nav.Push(m.routes[m.route])
		m.status = "Pushed " + scope.Route

	case "b":
		if m.nav == nil || m.nav.Depth() <= 1 {
			m.status = "Already at the root screen"
			break
		}
		m.nav.Pop()
		m.status = "Went back to " + m.routeName()

	case "l":
		if m.ctrl.Locked() {
			m.ctrl.Unlock()
			m.status = "Unlocked"
		} else {
			m.ctrl.Lock()
			m.status = "Locked, changes are deferred"
		}

	default:
		return m, nil
	}

	cmd := m.observe(m.ctrl.Current())
	return m, cmd
}

func (m Model) scope() string {
	if m.nav == nil {
		return drawer.AppScope
	}
	if top, ok := m.nav.Top(); ok {
		return top.ID
	}
	return drawer.AppScope
}

func (m Model) routeName() string {
	if m.nav == nil {
		return "app"
	}
	if top, ok := m.nav.Top(); ok {
		return top.Route
	}
	return "app"
}

func (m Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = defaultWidth
	}
	if height <= 0 {
		height = defaultHeight
	}

	base := fillLines(m.renderScreen(), height)
	if m.overlay.Empty() {
		return base
	}

	box := m.renderDrawer(width)
	x := max(0, (width-lipgloss.Width(box))/2)
	y := max(0, height-lipgloss.Height(box)-1)
	return overlayAt(base, box, x, y, width)
}

func (m Model) renderScreen() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("drawerq"))
	b.WriteString(" ")
	b.WriteString(m.renderRoutes())
	b.WriteString("\n\n")

	snap := m.ctrl.Snapshot()
	pending := "none"
	if ids := snap.PendingIDs(); len(ids) > 0 {
		pending = strings.Join(ids, ", ")
	}
	current := snap.CurrentID()
	if current == "" {
		current = "none"
	}

	b.WriteString(row("state", valueStyle.Render(string(snap.State))))
	b.WriteString(row("current", valueStyle.Render(current)))
	b.WriteString(row("pending", valueStyle.Render(pending)))
	if snap.Held != nil {
		b.WriteString(row("held", warnStyle.Render(snap.Held.ID)))
	}
	if snap.Locked {
		b.WriteString(row("lock", lockStyle.Render(fmt.Sprintf("locked (%d deferred)", snap.Deferred))))
	} else {
		b.WriteString(row("lock", okStyle.Render("unlocked")))
	}

	b.WriteString("\n")
	b.WriteString(infoStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("1-4 toggle · f force · a app drawer · c close · n next · p push · b back · l lock · q quit"))
	return b.String()
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-8s", label)) + " " + value + "\n"
}

func (m Model) renderRoutes() string {
	if m.nav == nil {
		return routeStyle.Render("app")
	}
	scopes := m.nav.Scopes()
	parts := make([]string, 0, len(scopes))
	for i, s := range scopes {
		if i == len(scopes)-1 {
			parts = append(parts, topStyle.Render(s.Route))
			continue
		}
		parts = append(parts, routeStyle.Render(s.Route))
	}
	return strings.Join(parts, routeStyle.Render(" › "))
}

func (m Model) renderDrawer(width int) string {
	o := m.overlay

	header := drawerTitleStyle.Render(o.ID)
	if o.Forced {
		header += " " + forcedBadgeStyle.Render("forced")
	}
	if o.Closing {
		header += " " + closingBadgeStyle.Render("closing")
	}

	lines := []string{header}
	if o.Payload != nil {
		lines = append(lines, "", fmt.Sprint(o.Payload))
	}
	scope := o.Scope
	if scope == drawer.AppScope {
		scope = "app"
	}
	lines = append(lines, "", labelStyle.Render("scope ")+valueStyle.Render(scope))

	style := drawerStyle.Width(min(maxDrawerWidth, max(width-4, 10)))
	if o.Closing {
		style = style.BorderForeground(colorClosing).Faint(true)
	}
	return style.Render(strings.Join(lines, "\n"))
}

// Run starts the demo in the alternate screen and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run demo: %w", err)
	}
	return nil
}
