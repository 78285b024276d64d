// Package ui provides the terminal interface for the task board.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nibzard/stickyboard/internal/board"
	"github.com/nibzard/stickyboard/internal/logging"
	"github.com/nibzard/stickyboard/internal/task"
)

// TUIOption configures the TUI behavior.
type TUIOption func(*tuiConfig)

// tuiConfig holds TUI configuration.
type tuiConfig struct {
	altScreen bool
	logger    *log.Logger
	output    io.Writer
}

// WithAltScreen controls whether the TUI takes over the whole terminal.
func WithAltScreen(enabled bool) TUIOption {
	return func(c *tuiConfig) {
		c.altScreen = enabled
	}
}

// WithOutput sets where the TUI draws. It must be a terminal.
func WithOutput(w io.Writer) TUIOption {
	return func(c *tuiConfig) {
		if w != nil {
			c.output = w
		}
	}
}

// WithLogger sets the logger for UI events.
func WithLogger(l *log.Logger) TUIOption {
	return func(c *tuiConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// RunTUI runs the board UI until the user quits or ctx is cancelled.
func RunTUI(ctx context.Context, b *board.Board, opts ...TUIOption) error {
	c := &tuiConfig{
		altScreen: true,
		logger:    logging.Discard(),
		output:    os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if !IsTTY(c.output) {
		return fmt.Errorf("tui requires a TTY")
	}

	model := newTUIModel(ctx, b, c.logger)
	programOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(c.output)}
	if c.altScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	program := tea.NewProgram(model, programOpts...)
	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type focus int

const (
	focusText focus = iota
	focusStart
	focusEnd
	focusSort
	focusBoard
	focusCount
)

func (f focus) isField() bool {
	return f == focusText || f == focusStart || f == focusEnd
}

// maxDateInput is the length of a YYYY-MM-DD date.
const maxDateInput = len(task.DateLayout)

type tuiModel struct {
	ctx    context.Context
	board  *board.Board
	logger *log.Logger

	focus    focus
	selected int
	pending  int
	status   string
	lastErr  error
	showHelp bool
	width    int
}

// opDoneMsg carries the result of one board operation run as a command.
type opDoneMsg struct {
	op  string
	err error
}

func newTUIModel(ctx context.Context, b *board.Board, logger *log.Logger) *tuiModel {
	if logger == nil {
		logger = logging.Discard()
	}
	return &tuiModel{
		ctx:    ctx,
		board:  b,
		logger: logger,
		focus:  focusText,
		width:  80,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return m.run("load", m.load)
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case opDoneMsg:
		m.finish(msg)
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *tuiModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		return tea.Quit
	case "tab":
		m.focus = (m.focus + 1) % focusCount
		return nil
	case "shift+tab":
		m.focus = (m.focus + focusCount - 1) % focusCount
		return nil
	case "esc":
		m.focus = focusBoard
		m.showHelp = false
		return nil
	}

	if m.focus.isField() {
		return m.handleFieldKey(msg)
	}

	switch msg.String() {
	case "q":
		return tea.Quit
	case "?":
		m.showHelp = !m.showHelp
		return nil
	case "r":
		return m.run("load", m.load)
	case "1", "2", "3":
		keys := task.SortKeys()
		return m.setSort(keys[int(msg.String()[0]-'1')])
	}

	switch m.focus {
	case focusSort:
		return m.handleSortKey(msg)
	case focusBoard:
		return m.handleBoardKey(msg)
	}
	return nil
}

func (m *tuiModel) handleFieldKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyBackspace:
		m.setField(dropLastRune(m.field()))
		return nil
	case tea.KeySpace:
		if m.focus == focusText {
			m.setField(m.field() + " ")
		}
		return nil
	case tea.KeyRunes:
		m.setField(m.field() + m.accept(msg.Runes))
		return nil
	}
	return nil
}

func (m *tuiModel) handleSortKey(msg tea.KeyMsg) tea.Cmd {
	keys := task.SortKeys()
	current := 0
	for i, k := range keys {
		if k == m.board.SortKey() {
			current = i
		}
	}
	switch msg.String() {
	case "left", "h":
		return m.setSort(keys[(current+len(keys)-1)%len(keys)])
	case "right", "l":
		return m.setSort(keys[(current+1)%len(keys)])
	}
	return nil
}

func (m *tuiModel) handleBoardKey(msg tea.KeyMsg) tea.Cmd {
	cards := m.board.Cards()
	switch msg.String() {
	case "up", "left", "k", "h":
		if m.selected > 0 {
			m.selected--
		}
		return nil
	case "down", "right", "j", "l":
		if m.selected < len(cards)-1 {
			m.selected++
		}
		return nil
	}

	if m.selected < 0 || m.selected >= len(cards) {
		return nil
	}
	card := cards[m.selected]
	switch msg.String() {
	case "c", " ":
		if card.Overlay() {
			m.status = "already completed"
			return nil
		}
		return m.run("complete", card.Complete)
	case "d", "delete":
		return m.run("delete", card.Delete)
	}
	return nil
}

func (m *tuiModel) submit() tea.Cmd {
	form := m.board.Form()
	if !form.Ready() {
		m.fail("create", board.ErrIncompleteForm)
		return nil
	}
	for _, d := range []struct{ name, value string }{{"start", form.StartDate}, {"deadline", form.EndDate}} {
		if _, err := task.ParseDate(d.value); err != nil {
			m.fail("create", fmt.Errorf("%s must be YYYY-MM-DD", d.name))
			return nil
		}
	}
	return m.run("create", m.board.Create)
}

func (m *tuiModel) setSort(key task.SortKey) tea.Cmd {
	return m.run("sort", func(ctx context.Context) error {
		return m.board.SetSort(ctx, key)
	})
}

func (m *tuiModel) load(ctx context.Context) error {
	_, err := m.board.Load(ctx)
	return err
}

// run wraps a board operation in a command that reports back as opDoneMsg.
func (m *tuiModel) run(op string, fn func(context.Context) error) tea.Cmd {
	m.pending++
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m *tuiModel) finish(msg opDoneMsg) {
	if m.pending > 0 {
		m.pending--
	}
	if n := len(m.board.Tasks()); m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	var posted *board.PostedError
	if errors.As(msg.err, &posted) {
		m.logger.Warn("task posted with follow-up failure", "id", posted.Task.ID, "err", posted.Err)
		m.lastErr = msg.err
		m.status = msg.err.Error()
		m.focus = focusText
		return
	}
	if msg.err != nil {
		m.fail(msg.op, msg.err)
		return
	}
	m.lastErr = nil
	m.status = doneStatus(msg.op)
	if msg.op == "create" {
		m.focus = focusText
	}
}

func (m *tuiModel) fail(op string, err error) {
	m.logger.Warn("operation failed", "op", op, "err", err)
	m.lastErr = err
	m.status = fmt.Sprintf("%s failed: %v", op, err)
}

func doneStatus(op string) string {
	switch op {
	case "create":
		return "task posted"
	case "complete":
		return "task completed"
	case "delete":
		return "task deleted"
	case "sort":
		return "sorted"
	default:
		return "loaded"
	}
}

func (m *tuiModel) field() string {
	form := m.board.Form()
	switch m.focus {
	case focusText:
		return form.Text
	case focusStart:
		return form.StartDate
	case focusEnd:
		return form.EndDate
	}
	return ""
}

func (m *tuiModel) setField(v string) {
	switch m.focus {
	case focusText:
		m.board.SetText(v)
	case focusStart:
		m.board.SetStartDate(v)
	case focusEnd:
		m.board.SetEndDate(v)
	}
}

// accept filters typed runes for the focused field. Date fields take
// digits and dashes up to the length of a full date.
func (m *tuiModel) accept(runes []rune) string {
	if m.focus == focusText {
		return string(runes)
	}
	room := maxDateInput - len([]rune(m.field()))
	var b strings.Builder
	for _, r := range runes {
		if room == 0 {
			break
		}
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
			room--
		}
	}
	return b.String()
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}

// IsTTY returns true if w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
