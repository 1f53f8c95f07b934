package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/arvindnair/webanalyzer/internal/model"
	"github.com/arvindnair/webanalyzer/internal/run"
	"github.com/arvindnair/webanalyzer/internal/telemetry"
)

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true)
	watchDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	watchFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	watchBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

const watchBarWidth = 40

type watchTickMsg time.Time

// watchModel is the bubbletea model for the live run view: it polls the
// in-process driver on a fixed tick and quits once the run is terminal.
type watchModel struct {
	driver  *run.Driver
	handle  string
	runID   string
	seedURL string

	status    run.StatusResult
	statusErr error
	cancelled bool
}

func newWatchModel(driver *run.Driver, handle, runID, seedURL string) watchModel {
	return watchModel{driver: driver, handle: handle, runID: runID, seedURL: seedURL}
}

func watchTick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return watchTick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancelled = true
			_ = m.driver.Cancel(m.handle)
			return m, nil // keep ticking until the cancellation lands
		}
	case watchTickMsg:
		status, err := m.driver.RunStatus(m.handle)
		if err != nil {
			m.statusErr = err
			return m, tea.Quit
		}
		m.status = status
		if status.Ready {
			return m, tea.Quit
		}
		return m, watchTick()
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(watchTitleStyle.Render("webanalyzer"))
	b.WriteString(watchDimStyle.Render("  " + m.seedURL))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("run %s\n", m.runID))

	filled := m.status.Progress * watchBarWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", watchBarWidth-filled)
	b.WriteString(watchBarStyle.Render(bar))
	b.WriteString(fmt.Sprintf(" %3d%%\n", m.status.Progress))

	switch {
	case m.status.State == model.RunFailed:
		b.WriteString(watchFailStyle.Render("failed: " + m.status.Info))
	case m.status.State == model.RunCompleted:
		b.WriteString(watchOKStyle.Render("completed"))
	case m.cancelled:
		b.WriteString(watchDimStyle.Render("cancelling…"))
	default:
		b.WriteString(watchDimStyle.Render(string(m.status.State) + "  (q to cancel)"))
	}
	b.WriteString("\n")
	return b.String()
}

func newWatchCmd() *cobra.Command {
	flags := &crawlFlags{}
	cmd := &cobra.Command{
		Use:   "watch [seed-url]",
		Short: "Crawl a website with a live progress view",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := ""
			if len(args) == 1 {
				seed = args[0]
			}
			cfg, err := flags.build(cmd, seed)
			if err != nil {
				return err
			}

			// Log lines would tear the live view apart, so the watch
			// command runs with a silent sink.
			sink := telemetry.NewSink(io.Discard, charmlog.ErrorLevel)
			st, cleanup, err := buildStore(cmd.Context(), sink)
			if err != nil {
				return err
			}
			defer cleanup()

			driver := run.NewDriver(st, sink)
			started, startErr := driver.StartRun(cfg)
			if startErr != nil {
				return startErr
			}

			p := tea.NewProgram(newWatchModel(driver, started.TaskHandle, started.RunID, cfg.SeedURL()))
			final, err := p.Run()
			if err != nil {
				return err
			}

			m := final.(watchModel)
			if m.statusErr != nil {
				return m.statusErr
			}
			if m.status.Failed {
				return fmt.Errorf("run failed: %s", m.status.Info)
			}

			bundle, getErr := st.GetRun(cmd.Context(), started.RunID)
			if getErr != nil {
				return getErr
			}
			printSummary(bundle)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
