package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/engine"
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	presentation *engine.Presentation
	viewport     viewport.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool
}

type presentationMsg struct {
	presentation *engine.Presentation
	err          error
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) *ConsoleUI {
	return &ConsoleUI{
		config:  cfg,
		client:  client,
		loading: true,
	}
}

func (ui *ConsoleUI) Init() tea.Cmd {
	return ui.fetchPresentation()
}

func (ui *ConsoleUI) fetchPresentation() tea.Cmd {
	return func() tea.Msg {
		p, err := getPresentation(ui.client, ui.config.APIBaseURL, ui.config.PlayerID)
		return presentationMsg{presentation: p, err: err}
	}
}

func (ui *ConsoleUI) sendContinue() tea.Cmd {
	return func() tea.Msg {
		p, err := postContinue(ui.client, ui.config.APIBaseURL, ui.config.PlayerID)
		return presentationMsg{presentation: p, err: err}
	}
}

func (ui *ConsoleUI) sendChoice(choice int) tea.Cmd {
	return func() tea.Msg {
		p, err := postChoice(ui.client, ui.config.APIBaseURL, ui.config.PlayerID, choice)
		return presentationMsg{presentation: p, err: err}
	}
}

func (ui *ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		if !ui.ready {
			ui.viewport = viewport.New(msg.Width, msg.Height-2)
			ui.ready = true
		} else {
			ui.viewport.Width = msg.Width
			ui.viewport.Height = msg.Height - 2
		}
		ui.viewport.SetContent(ui.renderContent())
		return ui, nil

	case presentationMsg:
		ui.loading = false
		ui.err = msg.err
		if msg.presentation != nil {
			ui.presentation = msg.presentation
		}
		if ui.ready {
			ui.viewport.SetContent(ui.renderContent())
			ui.viewport.GotoTop()
		}
		return ui, nil

	case tea.KeyMsg:
		return ui.handleKey(msg)
	}

	var cmd tea.Cmd
	ui.viewport, cmd = ui.viewport.Update(msg)
	return ui, cmd
}

func (ui *ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return ui, tea.Quit
	}

	if ui.loading || ui.presentation == nil {
		return ui, nil
	}

	p := ui.presentation
	switch {
	case p.StoryComplete:
		return ui, nil

	case len(p.Choices) > 0:
		idx, err := strconv.Atoi(msg.String())
		if err != nil || idx < 1 || idx > len(p.Choices) {
			return ui, nil
		}
		ui.loading = true
		return ui, ui.sendChoice(idx - 1)

	case msg.Type == tea.KeyEnter:
		ui.loading = true
		return ui, ui.sendContinue()
	}
	return ui, nil
}

func (ui *ConsoleUI) renderContent() string {
	if ui.presentation == nil {
		return loadingStyle.Render("Loading story...")
	}

	width := ui.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	p := ui.presentation

	if p.ChapterTitle != "" {
		b.WriteString(titleStyle.Render(p.ChapterTitle))
		b.WriteString("\n\n")
	}

	if p.StoryComplete {
		b.WriteString(completeStyle.Render("The story is complete. Thanks for playing!"))
		b.WriteString("\n")
		return b.String()
	}

	if p.Text != "" {
		b.WriteString(narratorStyle.Render(wordwrap.String(p.Text, width-4)))
		b.WriteString("\n\n")
	}

	for i, ch := range p.Choices {
		b.WriteString(choiceStyle.Render(fmt.Sprintf("  %d - %s", i+1, ch.Text)))
		b.WriteString("\n")
	}

	return b.String()
}

func (ui *ConsoleUI) View() string {
	if !ui.ready {
		return loadingStyle.Render("Loading...")
	}

	status := ui.statusLine()
	return ui.viewport.View() + "\n" + status
}

func (ui *ConsoleUI) statusLine() string {
	if ui.err != nil {
		return errorStyle.Render("Error: "+ui.err.Error()) + promptStyle.Render("  (q to quit)")
	}
	if ui.loading {
		return loadingStyle.Render("...")
	}
	if ui.presentation == nil {
		return promptStyle.Render("q to quit")
	}

	p := ui.presentation
	switch {
	case p.StoryComplete:
		return promptStyle.Render("q to quit")
	case len(p.Choices) > 0:
		return promptStyle.Render(fmt.Sprintf("1-%d to choose, q to quit", len(p.Choices)))
	default:
		return promptStyle.Render("enter to continue, q to quit")
	}
}
