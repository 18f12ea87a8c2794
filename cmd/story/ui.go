package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/storycli/storycli/internal/config"
	"github.com/storycli/storycli/internal/engine"
	"github.com/storycli/storycli/pkg/chunk"
	"github.com/storycli/storycli/pkg/prompts"
	"github.com/storycli/storycli/pkg/session"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "What do you do?"
)

// entry is one block of transcript content rendered in the chat panel.
type entry struct {
	role string // "you", "narrator", "meta", "error"
	text string
}

// GameUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type GameUI struct {
	cfg *config.Config
	eng *engine.Engine

	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool

	// Setup flow state
	showGenreModal bool
	pickingSub     bool
	selectedMain   int
	selectedSub    int
	showNameModal  bool

	// Quit confirmation state
	showQuitModal bool

	// Progress bar state
	progressTick int

	// Paced narration: chunks not yet revealed
	pending *chunk.Cursor

	entries    []entry
	cancelTurn context.CancelFunc
}

type turnResultMsg struct {
	res *engine.TurnResult
	err error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")) // light grey

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

func NewGameUI(cfg *config.Config, eng *engine.Engine) GameUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return GameUI{
		cfg:            cfg,
		eng:            eng,
		textarea:       ta,
		chatViewport:   chatVp,
		metaViewport:   metaVp,
		showGenreModal: true,
	}
}

func (m GameUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m GameUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showGenreModal {
		return m.updateGenreModal(msg)
	}
	if m.showNameModal {
		return m.updateNameModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.textarea, tiCmd = m.textarea.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.ready = true
		m.writeChatContent()
		m.writeMetadata()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEsc:
			if m.loading && m.cancelTurn != nil {
				// Abandon the outstanding model call. The result is
				// discarded and nothing is recorded.
				m.cancelTurn()
				return m, nil
			}
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			if err := clipboard.WriteAll(m.plainTranscript()); err != nil {
				m.entries = append(m.entries, entry{role: "error", text: "Clipboard copy failed: " + err.Error()})
			} else {
				m.entries = append(m.entries, entry{role: "meta", text: "(transcript copied to clipboard)"})
			}
			m.writeChatContent()
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			if m.pending != nil {
				m.revealNextChunk()
				m.writeChatContent()
				return m, nil
			}

			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()

			fields := strings.Fields(strings.ToLower(input))
			if engine.IsMetaCommand(fields[0]) {
				return m.runMetaCommand(input, fields[0])
			}

			m.entries = append(m.entries, entry{role: "you", text: input})
			m.loading = true
			m.progressTick = 0
			m.writeChatContent()

			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
			m.cancelTurn = cancel
			return m, tea.Batch(m.performTurn(ctx, input), progressTick())
		}

	case turnResultMsg:
		m.loading = false
		if m.cancelTurn != nil {
			m.cancelTurn()
			m.cancelTurn = nil
		}
		if msg.err != nil {
			m.entries = append(m.entries, entry{role: "error", text: "Error: " + msg.err.Error()})
		} else {
			m.presentNarration(msg.res.Text)
		}
		m.writeChatContent()
		m.writeMetadata()
		m.chatViewport.GotoBottom()
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m *GameUI) resize(w, h int) {
	m.width = w
	m.height = h
	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

// chatWidth is the usable content width inside the chat viewport.
func (m *GameUI) chatWidth() int {
	w := m.chatViewport.Width - 6
	if w < 20 {
		w = 20
	}
	return w
}

// runMetaCommand resolves a reserved command synchronously. Engine
// meta-commands never invoke the model, so there is no loading state.
func (m GameUI) runMetaCommand(input, first string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RequestTimeout)
	defer cancel()

	res, err := m.eng.HandleInput(ctx, input)
	if err != nil {
		m.entries = append(m.entries, entry{role: "error", text: "Error: " + err.Error()})
		m.writeChatContent()
		return m, nil
	}
	if res.Kind == engine.ResultQuit {
		return m, tea.Quit
	}
	if first == "load" {
		// A restored session replaces the transcript wholesale.
		m.rebuildTranscript()
		m.pending = nil
	}
	if res.Text != "" {
		m.entries = append(m.entries, entry{role: "meta", text: res.Text})
	}
	m.writeChatContent()
	m.writeMetadata()
	m.chatViewport.GotoBottom()
	return m, nil
}

func (m GameUI) performTurn(ctx context.Context, action string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.eng.HandleInput(ctx, action)
		return turnResultMsg{res, err}
	}
}

// presentNarration paces a narrator response: the first chunk is shown
// immediately and the rest are revealed on Enter.
func (m *GameUI) presentNarration(text string) {
	chunks := chunk.Flow(text, m.chatWidth(), m.cfg.LinesPerChunk)
	if len(chunks) == 0 {
		return
	}
	cur := chunk.NewCursor(chunks)
	first, _ := cur.Next()
	m.entries = append(m.entries, entry{role: "narrator", text: first})
	if cur.Remaining() > 0 {
		m.pending = cur
	} else {
		m.pending = nil
	}
}

func (m *GameUI) revealNextChunk() {
	next, ok := m.pending.Next()
	if ok {
		m.entries = append(m.entries, entry{role: "narrator", text: next})
	}
	if !ok || m.pending.Remaining() == 0 {
		m.pending = nil
	}
	m.chatViewport.GotoBottom()
}

// rebuildTranscript replaces the visible log with the loaded session's
// turn history.
func (m *GameUI) rebuildTranscript() {
	m.entries = nil
	sess := m.eng.Session()
	if sess == nil {
		return
	}
	for _, rec := range sess.Log.Records() {
		m.entries = append(m.entries, entry{role: "you", text: rec.Action})
		m.entries = append(m.entries, entry{role: "narrator", text: rec.Response})
	}
}

func (m *GameUI) plainTranscript() string {
	var b strings.Builder
	for _, e := range m.entries {
		switch e.role {
		case "you":
			b.WriteString("> " + e.text + "\n\n")
		case "narrator":
			b.WriteString(e.text + "\n\n")
		}
	}
	return b.String()
}

func (m *GameUI) writeChatContent() {
	chatWidth := m.chatWidth()

	var content strings.Builder
	content.WriteString(titleStyle.Render("STORY CLI") + "\n\n")
	content.WriteString("Type your actions below to play. Type \"help\" for commands.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, e := range m.entries {
		switch e.role {
		case "you":
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.text, chatWidth-6) + "\n\n")
		case "narrator":
			// Chunks are pre-wrapped by presentNarration; re-wrap in
			// case the window was resized since.
			content.WriteString(narratorStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		case "meta":
			content.WriteString(metaStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		case "error":
			content.WriteString(errorStyle.Render(wordwrap.String(e.text, chatWidth)) + "\n\n")
		}
	}

	if m.loading {
		content.WriteString(m.renderProgressBar())
	} else if m.pending != nil {
		content.WriteString(promptStyle.Render(fmt.Sprintf("── Enter to continue (%d more) ──", m.pending.Remaining())))
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m *GameUI) writeMetadata() {
	ov := m.eng.Overview()
	if ov == nil {
		m.metaViewport.SetContent(titleStyle.Render("STORY CLI"))
		return
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("STORY CLI") + "\n\n")

	content.WriteString("Session:\n")
	content.WriteString(ov.SessionID[:8] + "...\n\n")

	content.WriteString("Genre:\n")
	content.WriteString(prompts.Describe(ov.Genre) + "\n\n")

	content.WriteString(ov.Name + ":\n")
	if hp, ok := ov.Stats[session.StatHealth]; ok {
		content.WriteString(fmt.Sprintf("• health: %d\n", hp))
	}
	names := make([]string, 0, len(ov.Stats))
	for name := range ov.Stats {
		if name != session.StatHealth {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		content.WriteString(fmt.Sprintf("• %s: %d\n", name, ov.Stats[name]))
	}
	content.WriteString("\n")

	content.WriteString("Inventory:\n")
	if len(ov.Inventory) == 0 {
		content.WriteString("Empty\n")
	} else {
		for _, item := range ov.Inventory {
			content.WriteString("• " + item + "\n")
		}
	}
	content.WriteString("\n")

	if len(ov.Flags) > 0 {
		content.WriteString("Story flags:\n")
		for _, f := range ov.Flags {
			content.WriteString("• " + f + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString(fmt.Sprintf("Turns: %d\n\n", ov.Turns))

	content.WriteString("Commands:\n")
	content.WriteString("• help: Commands\n")
	content.WriteString("• save / load\n")
	content.WriteString("• Ctrl+Y: Copy log\n")
	content.WriteString("• Ctrl+C: Quit\n")

	m.metaViewport.SetContent(content.String())
}

func (m GameUI) updateGenreModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.pickingSub {
				m.pickingSub = false
				return m, nil
			}
			m.showQuitModal = true
			return m, nil
		case tea.KeyUp:
			if m.pickingSub {
				if m.selectedSub > 0 {
					m.selectedSub--
				}
			} else if m.selectedMain > 0 {
				m.selectedMain--
			}
		case tea.KeyDown:
			if m.pickingSub {
				if m.selectedSub < len(session.SubGenres())-1 {
					m.selectedSub++
				}
			} else if m.selectedMain < len(session.MainGenres())-1 {
				m.selectedMain++
			}
		case tea.KeyEnter:
			if !m.pickingSub {
				m.pickingSub = true
				return m, nil
			}
			sel := session.GenreSelection{
				Main: session.MainGenres()[m.selectedMain],
				Sub:  session.SubGenres()[m.selectedSub],
			}
			if err := m.eng.ChooseGenre(sel); err != nil {
				m.err = err
				return m, nil
			}
			m.showGenreModal = false
			m.showNameModal = true
			m.textarea.Placeholder = "Enter your character's name..."
			m.textarea.Focus()
			return m, textarea.Blink
		}
	}
	return m, nil
}

func (m GameUI) updateNameModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			name := strings.TrimSpace(m.textarea.Value())
			if name == "" {
				return m, nil
			}
			opening, err := m.eng.BeginStory(name)
			if err != nil {
				m.err = err
				return m, nil
			}
			m.showNameModal = false
			m.textarea.Reset()
			m.textarea.Placeholder = PlaceHolderText
			m.presentNarration(opening)
			m.writeChatContent()
			m.writeMetadata()
			m.ready = true
			return m, textarea.Blink
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m GameUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				if !m.showGenreModal {
					m.textarea.Focus()
					return m, textarea.Blink
				}
				return m, nil
			}
		}
	}
	return m, nil
}

func (m GameUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to abandon your adventure?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m GameUI) renderGenreModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	if m.err != nil {
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(m.err.Error()))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	} else if !m.pickingSub {
		content.WriteString(modalTitleStyle.Render("Choose a Genre"))
		content.WriteString("\n\n")
		for i, g := range session.MainGenres() {
			if i == m.selectedMain {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", g)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", g)))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	} else {
		content.WriteString(modalTitleStyle.Render("Choose a Setting"))
		content.WriteString("\n\n")
		for i, g := range session.SubGenres() {
			if i == m.selectedSub {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", g)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", g)))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Esc to go back"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m GameUI) renderNameModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Name Your Character"))
	content.WriteString("\n\n")
	content.WriteString(m.textarea.View())
	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Press Enter to begin your adventure"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m GameUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showGenreModal {
		return m.renderGenreModal()
	}
	if m.showNameModal {
		return m.renderNameModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar creates an animated progress bar for loading states
func (m GameUI) renderProgressBar() string {
	usable := m.chatWidth()
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
