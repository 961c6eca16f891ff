package cli

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mbaylis/slideforge/pkg/errors"
	"github.com/mbaylis/slideforge/pkg/slide"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// templatePickerModel is the bubbletea model for interactive template
// selection when --template is omitted on a terminal.
type templatePickerModel struct {
	Templates []slide.Template
	Cursor    int
	Selected  string
}

func newTemplatePickerModel() templatePickerModel {
	return templatePickerModel{Templates: slide.TemplateCatalogue()}
}

func (m templatePickerModel) Init() tea.Cmd {
	return nil
}

func (m templatePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Templates)-1 {
				m.Cursor++
			}
		case "enter":
			m.Selected = m.Templates[m.Cursor].Name
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m templatePickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Template"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	for i, t := range m.Templates {
		cursor := "  "
		style := listNormalStyle
		if i == m.Cursor {
			cursor = "▸ "
			style = listSelectedStyle
		}
		line := fmt.Sprintf("%s%-20s %s", cursor, t.Name, listDimStyle.Render(t.Description))
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// pickTemplate opens the interactive picker. Off a terminal it fails with
// the template list instead of hanging.
func pickTemplate() (string, error) {
	if !stdoutIsTerminal() {
		return "", errors.New(errors.ErrCodeBatchConfig,
			"--template is required (one of: %s)", strings.Join(slide.TemplateNames(), ", "))
	}

	final, err := tea.NewProgram(newTemplatePickerModel()).Run()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBatchConfig, err, "template picker")
	}
	m, ok := final.(templatePickerModel)
	if !ok || m.Selected == "" {
		return "", errors.New(errors.ErrCodeBatchConfig, "no template selected")
	}
	return m.Selected, nil
}

// stdoutIsTerminal reports whether stdout is attached to a terminal.
func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
