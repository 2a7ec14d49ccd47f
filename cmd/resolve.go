package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tokgrab/internal/link"
	"tokgrab/internal/media"
)

var flagJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "Resolve a TikTok link to a direct video URL",
	Args:  cobra.ExactArgs(1),
	RunE:  resolveRun,
}

func init() {
	resolveCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Output the result as JSON")
}

// errUnresolved makes the command exit non-zero without extra output.
var errUnresolved = errors.New("could not resolve link")

func resolveRun(cmd *cobra.Command, args []string) error {
	target, ok := link.Extract(args[0])
	if !ok {
		return fmt.Errorf("%q is not a TikTok link", args[0])
	}

	res, err := buildResolver(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var result media.Result
	if !flagJSON && term.IsTerminal(int(os.Stdout.Fd())) {
		result, err = resolveInteractive(ctx, cancel, target, func(ctx context.Context) media.Result {
			return res.Resolve(ctx, target)
		})
		if err != nil {
			return err
		}
	} else {
		result = res.Resolve(ctx, target)
	}

	if flagJSON {
		if err := writeJSON(os.Stdout, target, result); err != nil {
			return err
		}
	} else {
		writeResult(os.Stdout, result, term.IsTerminal(int(os.Stdout.Fd())))
	}

	if !result.OK() {
		return errUnresolved
	}
	return nil
}

// resolvedMsg carries the finished resolution into the spinner model.
type resolvedMsg media.Result

// resolveModel shows a spinner while the resolver runs.
type resolveModel struct {
	spinner spinner.Model
	link    string
	run     func() media.Result
	cancel  context.CancelFunc

	result *media.Result
	quit   bool
}

func newResolveModel(target string, run func() media.Result, cancel context.CancelFunc) resolveModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return resolveModel{spinner: s, link: target, run: run, cancel: cancel}
}

func (m resolveModel) Init() tea.Cmd {
	run := m.run
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return resolvedMsg(run())
	})
}

func (m resolveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resolvedMsg:
		r := media.Result(msg)
		m.result = &r
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quit = true
			m.cancel()
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m resolveModel) View() string {
	if m.result != nil || m.quit {
		return ""
	}
	return fmt.Sprintf("%s Resolving %s\n", m.spinner.View(), dimStyle.Render(m.link))
}

func resolveInteractive(ctx context.Context, cancel context.CancelFunc, target string, resolve func(context.Context) media.Result) (media.Result, error) {
	model := newResolveModel(target, func() media.Result { return resolve(ctx) }, cancel)

	final, err := tea.NewProgram(model, tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return media.Result{}, fmt.Errorf("running spinner: %w", err)
	}
	m, _ := final.(resolveModel)
	if m.result == nil {
		return media.Failed(media.Canceled, nil), nil
	}
	return *m.result, nil
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// writeResult prints every attempt and then the outcome. Styles apply only
// when color is set.
func writeResult(w io.Writer, res media.Result, color bool) {
	render := func(s lipgloss.Style, text string) string {
		if color {
			return s.Render(text)
		}
		return text
	}

	for _, a := range res.Attempts {
		line := fmt.Sprintf("  %-10s %s", a.Provider, a.Kind)
		if a.Err != nil {
			line += ": " + a.Err.Error()
		}
		fmt.Fprintln(w, render(dimStyle, line))
	}

	if res.OK() {
		fmt.Fprintf(w, "%s %s (via %s)\n", render(okStyle, "resolved"), res.DirectURL, res.Provider)
		return
	}
	fmt.Fprintf(w, "%s %s\n", render(failStyle, "failed"), res.Reason)
}

type jsonAttempt struct {
	Provider string `json:"provider"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

type jsonResult struct {
	Link     string        `json:"link"`
	Resolved bool          `json:"resolved"`
	URL      string        `json:"url,omitempty"`
	Provider string        `json:"provider,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Attempts []jsonAttempt `json:"attempts"`
}

func writeJSON(w io.Writer, target string, res media.Result) error {
	out := jsonResult{
		Link:     target,
		Resolved: res.OK(),
		URL:      res.DirectURL,
		Provider: res.Provider,
		Attempts: make([]jsonAttempt, 0, len(res.Attempts)),
	}
	if !res.OK() {
		out.Reason = res.Reason.String()
	}
	for _, a := range res.Attempts {
		ja := jsonAttempt{Provider: a.Provider, Outcome: a.Kind.String()}
		if a.Err != nil {
			ja.Error = a.Err.Error()
		}
		out.Attempts = append(out.Attempts, ja)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
