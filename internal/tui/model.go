// Package tui is the interactive screen: a document path box, a question box
// and a result area showing the answer or the retrieved context.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/service"
)

// Backend is the TUI-facing subset of the question answering service.
type Backend interface {
	Ingest(ctx context.Context, sess *service.Session, data []byte, filename string) (service.IngestResult, error)
	Answer(ctx context.Context, question string) service.Answer
}

type focus int

const (
	focusPath focus = iota
	focusQuestion
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusWarn
	statusError
)

type ingestDoneMsg struct {
	path   string
	result service.IngestResult
	err    error
}

type answerDoneMsg struct {
	question string
	answer   service.Answer
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	backend Backend
	session *service.Session

	pathInput     textinput.Model
	questionInput textinput.Model
	focus         focus
	spinner       spinner.Model
	viewport      viewport.Model

	busy        bool
	pendingPath string
	answer      *service.Answer
	question    string
	showContext bool
	summary     string
	status      string
	statusKind  statusKind
	ready       bool
}

// New creates a TUI model. When initialPath is set the document is ingested
// as soon as the program starts.
func New(backend Backend, sess *service.Session, initialPath string) Model {
	path := textinput.New()
	path.Prompt = "file> "
	path.Placeholder = "Path to a .pdf or .txt document, Enter to load"
	path.CharLimit = 0
	path.SetValue(initialPath)

	question := textinput.New()
	question.Prompt = "ask> "
	question.Placeholder = "Ask a question about the document, Enter to submit"
	question.CharLimit = 0

	m := Model{
		backend:       backend,
		session:       sess,
		pathInput:     path,
		questionInput: question,
		spinner:       spinner.New(spinner.WithSpinner(spinner.Dot)),
		viewport:      viewport.New(0, 0),
		status:        "Load a document to begin.",
	}
	if initialPath != "" {
		m.focus = focusQuestion
		m.questionInput.Focus()
		m.busy = true
		m.pendingPath = initialPath
		m.status = "Processing " + filepath.Base(initialPath) + "..."
	} else {
		m.pathInput.Focus()
	}
	return m
}

// Init starts the cursor blink and any ingestion requested at startup.
func (m Model) Init() tea.Cmd {
	if m.pendingPath != "" {
		return tea.Batch(textinput.Blink, m.spinner.Tick, m.ingestCmd(m.pendingPath))
	}
	return textinput.Blink
}

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := resultBoxStyle.GetFrameSize()
		_, inputFrame := inputBoxStyle.GetFrameSize()
		// header, summary, two input boxes, status and help lines
		reserved := 4 + 2*(1+inputFrame) + frame
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ingestDoneMsg:
		m.busy = false
		m.pendingPath = ""
		m.handleIngest(msg)
		return m, nil

	case answerDoneMsg:
		m.busy = false
		m.handleAnswer(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit
		case "tab", "shift+tab":
			return m, m.toggleFocus()
		case "ctrl+o":
			m.showContext = !m.showContext
			m.refresh()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			return m.submit()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusPath {
		m.pathInput, cmd = m.pathInput.Update(msg)
	} else {
		m.questionInput, cmd = m.questionInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == focusPath {
		m.focus = focusQuestion
		m.pathInput.Blur()
		return m.questionInput.Focus()
	}
	m.focus = focusPath
	m.questionInput.Blur()
	return m.pathInput.Focus()
}

// submit starts the operation for the focused box. Only one operation runs
// at a time; Enter is ignored while busy.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if m.focus == focusPath {
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" {
			m.setStatus(statusWarn, "Please enter the path of a document.")
			return m, nil
		}
		m.busy = true
		m.setStatus(statusInfo, "Processing "+filepath.Base(path)+"...")
		return m, tea.Batch(m.spinner.Tick, m.ingestCmd(path))
	}

	question := m.questionInput.Value()
	if strings.TrimSpace(question) == "" {
		m.setStatus(statusWarn, service.MsgEmptyQuestion)
		return m, nil
	}
	m.busy = true
	m.setStatus(statusInfo, "Searching for relevant information...")
	return m, tea.Batch(m.spinner.Tick, m.answerCmd(question))
}

func (m Model) ingestCmd(path string) tea.Cmd {
	backend, sess := m.backend, m.session
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return ingestDoneMsg{path: path, err: err}
		}
		res, err := backend.Ingest(context.Background(), sess, data, filepath.Base(path))
		return ingestDoneMsg{path: path, result: res, err: err}
	}
}

func (m Model) answerCmd(question string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		return answerDoneMsg{question: question, answer: backend.Answer(context.Background(), question)}
	}
}

func (m *Model) handleIngest(msg ingestDoneMsg) {
	if msg.err != nil {
		m.setStatus(statusError, "Error processing "+filepath.Base(msg.path)+": "+msg.err.Error())
		return
	}
	res := msg.result
	m.summary = res.Summary
	switch {
	case res.Skipped:
		m.setStatus(statusInfo, fmt.Sprintf("%s is already loaded (%d chunks).", res.Filename, res.ChunkCount))
	case res.ChunkCount == 0:
		m.setStatus(statusWarn, res.Filename+" contains no text.")
	default:
		m.setStatus(statusInfo, fmt.Sprintf("Document processed successfully! Created %d chunks.", res.ChunkCount))
	}
	if m.focus == focusPath {
		m.toggleFocus()
	}
	m.refresh()
}

func (m *Model) handleAnswer(msg answerDoneMsg) {
	a := msg.answer
	switch a.Status {
	case service.StatusEmptyQuestion:
		m.setStatus(statusWarn, a.Text)
		return
	case service.StatusNoContext:
		m.answer = nil
		m.setStatus(statusInfo, a.Text)
	default:
		m.answer = &a
		m.question = msg.question
		m.setStatus(statusInfo, fmt.Sprintf("Answered from %d chunks. ctrl+o toggles the context.", len(a.Sources)))
	}
	m.refresh()
	m.viewport.GotoTop()
}

func (m *Model) setStatus(kind statusKind, text string) {
	m.statusKind = kind
	m.status = text
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderResult())
}

func (m Model) renderResult() string {
	if m.answer == nil {
		return "No answer yet."
	}
	if !m.showContext {
		return titleStyle.Render("Answer") + "\n\n" + m.answer.Text
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Relevant context"))
	for i, src := range m.answer.Sources {
		fmt.Fprintf(&b, "\n\n%s\n%s",
			dimStyle.Render(fmt.Sprintf("[%d] %s  score=%.3f", i+1, src.Chunk.ID, src.Score)),
			highlightBestSentence(src.Chunk.Text, m.question))
	}
	return b.String()
}

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Document Q&A")
	summary := dimStyle.Render(m.summary)
	path := inputBoxStyle.Render(m.pathInput.View())
	question := inputBoxStyle.Render(m.questionInput.View())
	result := resultBoxStyle.Render(m.viewport.View())

	status := m.status
	switch m.statusKind {
	case statusWarn:
		status = warnStyle.Render(status)
	case statusError:
		status = errorStyle.Render(status)
	default:
		status = infoStyle.Render(status)
	}
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	help := dimStyle.Render("tab switch box • enter submit • ctrl+o answer/context • pgup/pgdn scroll • ctrl+c quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, summary, path, question, result, status, help)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
