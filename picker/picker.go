package picker

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned when the user cancels the prompt instead
// of choosing an option.
var ErrAborted = errors.New("selection aborted")

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Model is the bubbletea model behind Choose. Exported so tests can
// drive Update directly without a terminal.
type Model struct {
	Title   string
	Options []string

	cursor  int
	choice  string
	aborted bool
}

// NewModel returns a Model over the given options with the cursor
// on the first entry.
func NewModel(title string, options []string) Model {
	return Model{
		Title:   title,
		Options: options,
	}
}

// Choice returns the selected option, or empty string when nothing
// was chosen yet.
func (m Model) Choice() string {
	return m.choice
}

// Aborted reports whether the user cancelled the prompt.
func (m Model) Aborted() bool {
	return m.aborted
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.aborted = true

		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.Options)-1 {
			m.cursor++
		}

	case "enter":
		m.choice = m.Options[m.cursor]

		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	s := titleStyle.Render(m.Title) + "\n\n"

	for i, opt := range m.Options {
		if i == m.cursor {
			s += cursorStyle.Render("> "+opt) + "\n"

			continue
		}

		s += "  " + opt + "\n"
	}

	s += "\n" + helpStyle.Render(
		"up/down to move, enter to select",
	) + "\n"

	return s
}

// Choose blocks until the user selects one of options. There is no
// default and no non-fatal cancellation: aborting the prompt
// returns ErrAborted and the caller terminates.
func Choose(title string, options []string) (string, error) {
	const errCtx = "choosing option"

	if len(options) == 0 {
		return "", fmt.Errorf(
			"%s: no options to choose from", errCtx,
		)
	}

	final, err := tea.NewProgram(
		NewModel(title, options),
	).Run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	m, ok := final.(Model)
	if !ok || m.Aborted() || m.Choice() == "" {
		return "", fmt.Errorf(
			"%s: %w", errCtx, ErrAborted,
		)
	}

	return m.Choice(), nil
}
