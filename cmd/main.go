package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"hexit/internal/config"
	sshclient "hexit/internal/ssh"
	"hexit/internal/storage"
	"hexit/internal/ui"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// one row for the tab bar
const tabBarLines = 1

// session is one open input.
type session struct {
	id      int
	model   ui.HexModel
	handler storage.Handler
	// recentKey is the recent_files entry, empty for stdin
	recentKey string
}

// closeTabMsg is a ui.CloseMsg tagged with the session that sent it.
type closeTabMsg struct{ id int }

// AppModel is the root application model.
type AppModel struct {
	width     int
	height    int
	cfg       *config.Config
	keys      ui.KeyMap
	sessions  []session
	activeTab int
	clients   []*sshclient.Client
}

func newAppModel(cfg *config.Config, sessions []session, clients []*sshclient.Client) AppModel {
	return AppModel{
		cfg:      cfg,
		keys:     ui.DefaultKeyMap(),
		sessions: sessions,
		clients:  clients,
	}
}

func (m AppModel) Init() tea.Cmd {
	return nil
}

// tabCmd rewrites a close request from session id so that it still closes
// that session after the active tab has changed.
func tabCmd(id int, cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		msg := cmd()
		if _, ok := msg.(ui.CloseMsg); ok {
			return closeTabMsg{id: id}
		}
		return msg
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.sessions {
			m.sessions[i].model.SetSize(msg.Width, max(msg.Height-tabBarLines, 1))
		}
		return m, nil

	case closeTabMsg:
		idx := m.indexOf(msg.id)
		if idx < 0 {
			return m, nil
		}
		m.closeTab(idx)
		if len(m.sessions) == 0 {
			log.Printf("[AppModel] last tab closed, quitting")
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			log.Printf("[AppModel] ctrl+c, quitting")
			return m, tea.Quit
		}
		if len(m.sessions) == 0 {
			return m, nil
		}
		s := &m.sessions[m.activeTab]
		if !s.model.Prompting() {
			switch {
			case key.Matches(msg, m.keys.NextTab):
				if len(m.sessions) > 1 {
					m.activeTab = (m.activeTab + 1) % len(m.sessions)
					log.Printf("[AppModel] switched to tab %d", m.activeTab)
				}
				return m, nil
			case key.Matches(msg, m.keys.CloseTab):
				var cmd tea.Cmd
				s.model, cmd = s.model.RequestClose()
				return m, tabCmd(s.id, cmd)
			}
		}
		var cmd tea.Cmd
		s.model, cmd = s.model.Update(msg)
		return m, tabCmd(s.id, cmd)
	}

	if len(m.sessions) > 0 {
		s := &m.sessions[m.activeTab]
		var cmd tea.Cmd
		s.model, cmd = s.model.Update(msg)
		return m, tabCmd(s.id, cmd)
	}
	return m, nil
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if len(m.sessions) == 0 {
		return ""
	}

	tabs := make([]ui.Tab, len(m.sessions))
	for i, s := range m.sessions {
		tabs[i] = ui.Tab{
			Title:    ui.TabTitle(s.model.Name(), i),
			Dirty:    s.model.Dirty(),
			ReadOnly: s.model.ReadOnly(),
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		ui.RenderTabBar(tabs, m.activeTab, m.width),
		m.sessions[m.activeTab].model.View(),
	)
}

func (m AppModel) indexOf(id int) int {
	for i, s := range m.sessions {
		if s.id == id {
			return i
		}
	}
	return -1
}

// release remembers where the cursor was and closes the handler.
func (m *AppModel) release(s session) {
	if s.recentKey != "" {
		m.cfg.AddRecent(s.recentKey, s.model.Offset())
	}
	if err := s.handler.Close(); err != nil {
		log.Printf("[AppModel] close %s: %v", s.model.Name(), err)
	}
}

func (m *AppModel) closeTab(idx int) {
	log.Printf("[AppModel] closing tab %d (%s)", idx, m.sessions[idx].model.Name())
	m.release(m.sessions[idx])
	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)
	if m.activeTab >= len(m.sessions) && m.activeTab > 0 {
		m.activeTab = len(m.sessions) - 1
	}
}

// shutdown closes whatever is still open and persists the recent list.
func (m *AppModel) shutdown() {
	for _, s := range m.sessions {
		m.release(s)
	}
	m.sessions = nil
	for _, c := range m.clients {
		if err := c.Close(); err != nil {
			log.Printf("[AppModel] close client %s: %v", c.Address(), err)
		}
	}
	m.clients = nil
	if err := config.Save(m.cfg); err != nil {
		log.Printf("[AppModel] save config: %v", err)
	}
}

// logPath returns the path for the debug log file.
// When running from the project directory (go run / ./bin/hexit), logs go
// to .logs/debug.log.  When installed, logs go to
// ~/.local/state/hexit/debug.log following XDG conventions.
func logPath() string {
	exe, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exe)
		cwd, _ := os.Getwd()
		if strings.HasPrefix(exeDir, cwd) || strings.Contains(exeDir, "go-build") {
			dir := filepath.Join(cwd, ".logs")
			_ = os.MkdirAll(dir, 0o755)
			return filepath.Join(dir, "debug.log")
		}
	}
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, _ := os.UserHomeDir()
		stateDir = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(stateDir, "hexit")
	_ = os.MkdirAll(dir, 0o755)
	return filepath.Join(dir, "debug.log")
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "hexit:", err)
		return 2
	}

	stdinIsTerminal := term.IsTerminal(int(os.Stdin.Fd()))
	if len(opts.files) == 0 && stdinIsTerminal {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	f, err := tea.LogToFile(logPath(), "debug")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Could not open debug log:", err)
		return 1
	}
	defer func() { _ = f.Close() }()
	log.Printf("=== hexit starting (log: %s) ===", logPath())

	cfg, err := config.Load()
	if err != nil {
		log.Printf("[startup] %v, using defaults", err)
		cfg = &config.Config{BytesPerLine: config.DefaultBytesPerLine}
	}

	// ctx outlives startup: remote handlers upload under it on every save.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := newOpener(opts, cfg, config.LoadSSHConfig())

	var sessions []session
	if len(opts.files) == 0 {
		sessions, err = o.openStdin(os.Stdin)
	} else {
		sessions, err = o.openAll(ctx, opts.files)
	}
	o.closeTTY()
	if err != nil {
		o.closeClients()
		fmt.Fprintln(os.Stderr, "hexit:", err)
		return 1
	}

	progOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if !stdinIsTerminal {
		progOpts = append(progOpts, tea.WithInputTTY())
	}
	model := newAppModel(cfg, sessions, o.clientList())
	final, err := tea.NewProgram(model, progOpts...).Run()
	if am, ok := final.(AppModel); ok {
		am.shutdown()
	} else {
		model.shutdown()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
