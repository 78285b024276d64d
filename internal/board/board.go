// Package board holds the task board controller: the task list, the sort
// selector, the new-task form and the color rotation.
package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nibzard/stickyboard/internal/logging"
	"github.com/nibzard/stickyboard/internal/prefs"
	"github.com/nibzard/stickyboard/internal/task"
)

var (
	// ErrIncompleteForm is returned by Create when text, start or end is empty.
	ErrIncompleteForm = errors.New("task, start and deadline are required")

	// ErrCreateInFlight is returned by Create while a previous Create is
	// still waiting for the server.
	ErrCreateInFlight = errors.New("a task is already being posted")

	// ErrUnknownSortKey is returned by SetSort for keys outside task.SortKeys.
	ErrUnknownSortKey = errors.New("unknown sort key")

	// ErrNotPersisted is returned for card actions on a task with no id.
	ErrNotPersisted = errors.New("task has no id")
)

// PostedError is returned by Create when the task reached the server but
// persisting the color rotation or the reload afterwards failed.
type PostedError struct {
	Task task.Task
	Err  error
}

func (e *PostedError) Error() string {
	return "task posted, but " + e.Err.Error()
}

func (e *PostedError) Unwrap() error { return e.Err }

// TaskAPI is the subset of the data server client the board needs.
type TaskAPI interface {
	ListTasks(ctx context.Context, sortField string) ([]task.Task, error)
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	CompleteTask(ctx context.Context, id int) error
	DeleteTask(ctx context.Context, id int) error
}

// Form holds the pending-creation fields.
type Form struct {
	Text      string
	StartDate string
	EndDate   string
}

// Ready reports whether all three fields are filled in.
func (f Form) Ready() bool {
	return f.Text != "" && f.StartDate != "" && f.EndDate != ""
}

// Board is the task board controller. It is safe for concurrent use.
//
// Every mutation is followed by a full reload. Reloads are numbered, and a
// response is applied only when no newer reload has been applied and the
// sort key it was issued under is still active.
type Board struct {
	api    TaskAPI
	store  prefs.Store
	logger *log.Logger

	mu         sync.Mutex
	tasks      []task.Task
	sortKey    task.SortKey
	colorIndex int
	form       Form
	creating   bool
	issued     uint64
	applied    uint64
}

// Option configures a Board.
type Option func(*Board)

// WithLogger sets the board logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSortKey sets the initial sort key. Unknown keys are ignored.
func WithSortKey(k task.SortKey) Option {
	return func(b *Board) {
		if _, err := task.ParseSortKey(string(k)); err == nil {
			b.sortKey = k
		}
	}
}

// New creates a board and restores the color rotation index from store.
// It does not contact the server; call Load for the first list.
func New(ctx context.Context, api TaskAPI, store prefs.Store, opts ...Option) (*Board, error) {
	if api == nil {
		return nil, errors.New("board needs a task api")
	}
	if store == nil {
		return nil, errors.New("board needs a preference store")
	}
	b := &Board{
		api:     api,
		store:   store,
		logger:  logging.Discard(),
		sortKey: task.DefaultSortKey,
	}
	for _, opt := range opts {
		opt(b)
	}

	index, err := prefs.LoadColorIndex(ctx, store)
	if err != nil {
		// A bad stored value restarts the rotation rather than blocking the board.
		b.logger.Warn("resetting color rotation", "err", err)
	}
	b.colorIndex = index
	return b, nil
}

// Tasks returns a copy of the displayed task list.
func (b *Board) Tasks() []task.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]task.Task, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Find returns the displayed task with the given id.
func (b *Board) Find(id int) (task.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return task.Task{}, false
}

// SortKey returns the active sort key.
func (b *Board) SortKey() task.SortKey {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortKey
}

// ColorIndex returns the rotation index the next task will use.
func (b *Board) ColorIndex() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.colorIndex
}

// NextColor returns the color the next created task will get.
func (b *Board) NextColor() task.Color {
	return task.PaletteColor(b.ColorIndex())
}

// Form returns the current form fields.
func (b *Board) Form() Form {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.form
}

// Creating reports whether a Create is waiting for the server.
func (b *Board) Creating() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creating
}

// SetText sets the task text, cut to task.MaxTextLength characters.
func (b *Board) SetText(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form.Text = task.TruncateText(s)
}

// SetStartDate sets the start date field.
func (b *Board) SetStartDate(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form.StartDate = s
}

// SetEndDate sets the deadline field.
func (b *Board) SetEndDate(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.form.EndDate = s
}

// Load fetches the task list for the active sort key and replaces the
// displayed list with it. It reports whether the response was applied; a
// response is dropped when a newer reload has already been applied or the
// sort key changed while it was in flight. On error the displayed list is
// left as it was.
func (b *Board) Load(ctx context.Context) (bool, error) {
	b.mu.Lock()
	b.issued++
	seq := b.issued
	key := b.sortKey
	b.mu.Unlock()

	tasks, err := b.api.ListTasks(ctx, key.Field())
	if err != nil {
		b.logger.Error("load tasks failed", "sort", key, "err", err)
		return false, fmt.Errorf("load tasks: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.applied || key != b.sortKey {
		b.logger.Debug("dropping stale task list", "seq", seq, "applied", b.applied, "sort", key, "active", b.sortKey)
		return false, nil
	}
	b.applied = seq
	b.tasks = tasks
	b.logger.Debug("task list loaded", "seq", seq, "sort", key, "count", len(tasks))
	return true, nil
}

// SetSort switches the sort key and reloads once with it.
func (b *Board) SetSort(ctx context.Context, key task.SortKey) error {
	parsed, err := task.ParseSortKey(string(key))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}

	b.mu.Lock()
	b.sortKey = parsed
	b.mu.Unlock()

	b.logger.Info("sort changed", "sort", parsed)
	_, err = b.Load(ctx)
	return err
}

// Create posts the form as a new task with the current rotation color. On
// success the rotation advances and is persisted, the form is cleared and
// the list reloads; if either of those follow-ups fails the error is a
// *PostedError. On failure the form and the rotation are left alone.
func (b *Board) Create(ctx context.Context) error {
	b.mu.Lock()
	if !b.form.Ready() {
		b.mu.Unlock()
		return ErrIncompleteForm
	}
	if b.creating {
		b.mu.Unlock()
		return ErrCreateInFlight
	}
	b.creating = true
	index := b.colorIndex
	newTask := task.Task{
		Task:      b.form.Text,
		StartDate: b.form.StartDate,
		EndDate:   b.form.EndDate,
		Completed: false,
		Color:     task.PaletteColor(index),
	}
	b.mu.Unlock()

	created, err := b.api.CreateTask(ctx, newTask)
	if err != nil {
		b.mu.Lock()
		b.creating = false
		b.mu.Unlock()
		b.logger.Error("create task failed", "err", err)
		return fmt.Errorf("create task: %w", err)
	}

	next := task.NextIndex(index)
	b.mu.Lock()
	b.colorIndex = next
	b.form = Form{}
	b.creating = false
	b.mu.Unlock()
	b.logger.Info("task created", "id", created.ID, "color", newTask.Color)

	var persistErr error
	if err := prefs.SaveColorIndex(ctx, b.store, next); err != nil {
		b.logger.Error("persist color rotation failed", "err", err)
		persistErr = fmt.Errorf("persist color rotation: %w", err)
	}
	_, loadErr := b.Load(ctx)
	if err := errors.Join(persistErr, loadErr); err != nil {
		return &PostedError{Task: created, Err: err}
	}
	return nil
}

// Complete marks t completed on the server and reloads. A task that is
// already completed is left alone and no request is made.
func (b *Board) Complete(ctx context.Context, t task.Task) error {
	if t.Completed {
		return nil
	}
	if !t.IsPersisted() {
		return ErrNotPersisted
	}
	if err := b.api.CompleteTask(ctx, t.ID); err != nil {
		b.logger.Error("complete task failed", "id", t.ID, "err", err)
		return fmt.Errorf("complete task %d: %w", t.ID, err)
	}
	b.logger.Info("task completed", "id", t.ID)
	_, err := b.Load(ctx)
	return err
}

// Delete removes t on the server and reloads, whether or not the removal
// succeeded.
func (b *Board) Delete(ctx context.Context, t task.Task) error {
	if !t.IsPersisted() {
		return ErrNotPersisted
	}
	var delErr error
	if err := b.api.DeleteTask(ctx, t.ID); err != nil {
		b.logger.Error("delete task failed", "id", t.ID, "err", err)
		delErr = fmt.Errorf("delete task %d: %w", t.ID, err)
	} else {
		b.logger.Info("task deleted", "id", t.ID)
	}
	_, loadErr := b.Load(ctx)
	return errors.Join(delErr, loadErr)
}
