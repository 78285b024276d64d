package board

import (
	"context"

	"github.com/nibzard/stickyboard/internal/task"
)

// Actions are the controller mutations a card can trigger.
type Actions interface {
	Complete(ctx context.Context, t task.Task) error
	Delete(ctx context.Context, t task.Task) error
}

// Card is one sticky note bound to a task and the controller that owns it.
type Card struct {
	task    task.Task
	actions Actions
}

// NewCard binds t to actions.
func NewCard(t task.Task, actions Actions) Card {
	return Card{task: t, actions: actions}
}

// Cards returns one card per displayed task, in display order.
func (b *Board) Cards() []Card {
	tasks := b.Tasks()
	cards := make([]Card, len(tasks))
	for i, t := range tasks {
		cards[i] = NewCard(t, b)
	}
	return cards
}

// Task returns the bound task.
func (c Card) Task() task.Task { return c.task }

// Text returns the task text.
func (c Card) Text() string { return c.task.Task }

// Color returns the sticky-note color.
func (c Card) Color() task.Color { return c.task.Color }

// StartLabel returns the start date as MM/DD.
func (c Card) StartLabel() string { return task.FormatDate(c.task.StartDate) }

// DeadlineLabel returns the deadline as MM/DD.
func (c Card) DeadlineLabel() string { return task.FormatDate(c.task.EndDate) }

// Overlay reports whether the completed overlay is shown.
func (c Card) Overlay() bool { return c.task.Completed }

// Complete marks the task completed. It does nothing for a completed task.
func (c Card) Complete(ctx context.Context) error {
	if c.task.Completed {
		return nil
	}
	return c.actions.Complete(ctx, c.task)
}

// Delete removes the task without confirmation.
func (c Card) Delete(ctx context.Context) error {
	return c.actions.Delete(ctx, c.task)
}
