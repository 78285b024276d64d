package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/nibzard/stickyboard/internal/api"
	"github.com/nibzard/stickyboard/internal/board"
	"github.com/nibzard/stickyboard/internal/task"
	"github.com/nibzard/stickyboard/internal/ui"
)

// tuiCommand launches the TUI.
func tuiCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stickyboard tui", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	inline := fs.Bool("inline", false, "Draw below the prompt instead of using the alternate screen")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return ui.RunTUI(ctx, a.board,
		ui.WithLogger(a.logger.WithPrefix("ui")),
		ui.WithOutput(a.out),
		ui.WithAltScreen(!*inline),
	)
}

// lsCommand loads the board once and prints it.
func lsCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stickyboard ls", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	sortFlag := fs.String("sort", string(a.board.SortKey()), "Sort key (start, deadline, complete)")
	asJSON := fs.Bool("json", false, "Print tasks as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	key, err := task.ParseSortKey(*sortFlag)
	if err != nil {
		return err
	}
	if err := a.board.SetSort(ctx, key); err != nil {
		return err
	}

	tasks := a.board.Tasks()
	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(a.out, "No tasks.")
		return nil
	}
	for _, card := range a.board.Cards() {
		fmt.Fprintln(a.out, formatCard(card.Task()))
	}
	return nil
}

// formatCard renders one task as "#id [x] MM/DD-MM/DD color text".
func formatCard(t task.Task) string {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	return fmt.Sprintf("#%d [%s] %s-%s %s %s",
		t.ID, mark, task.FormatDate(t.StartDate), task.FormatDate(t.EndDate), t.Color, t.Task)
}

// addCommand fills the form from flags and posts it.
func addCommand(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("stickyboard add", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	start := fs.String("start", "", "Start date (YYYY-MM-DD)")
	end := fs.String("end", "", "Deadline (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return fmt.Errorf("task text is required")
	}
	for _, d := range []struct{ flag, value string }{{"-start", *start}, {"-end", *end}} {
		if d.value == "" {
			return fmt.Errorf("%s is required", d.flag)
		}
		if _, err := task.ParseDate(d.value); err != nil {
			return fmt.Errorf("%s %q must be YYYY-MM-DD", d.flag, d.value)
		}
	}
	if n := len([]rune(text)); n > task.MaxTextLength {
		fmt.Fprintf(a.errOut, "Warning: task text cut to %d characters\n", task.MaxTextLength)
	}

	color := a.board.NextColor()
	a.board.SetText(text)
	a.board.SetStartDate(*start)
	a.board.SetEndDate(*end)
	err := a.board.Create(ctx)
	var posted *board.PostedError
	if err != nil && !errors.As(err, &posted) {
		return err
	}

	fmt.Fprintf(a.out, "Posted %q (%s)\n", task.TruncateText(text), color)
	if posted != nil {
		a.logger.Warn("task posted with follow-up failure", "id", posted.Task.ID, "err", posted.Err)
		fmt.Fprintf(a.errOut, "Warning: %v\n", posted.Err)
	}
	return nil
}

// doneCommand marks the task with the given id completed.
func doneCommand(ctx context.Context, a *app, args []string) error {
	id, err := parseID("done", args)
	if err != nil {
		return err
	}
	if _, err := a.board.Load(ctx); err != nil {
		return err
	}
	t, ok := a.board.Find(id)
	if !ok {
		return fmt.Errorf("task #%d not found", id)
	}
	if t.Completed {
		fmt.Fprintf(a.out, "Task #%d is already completed\n", id)
		return nil
	}
	if err := a.board.Complete(ctx, t); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Completed #%d %s\n", id, t.Task)
	return nil
}

// rmCommand deletes the task with the given id.
func rmCommand(ctx context.Context, a *app, args []string) error {
	id, err := parseID("rm", args)
	if err != nil {
		return err
	}
	if err := a.board.Delete(ctx, task.Task{ID: id}); err != nil {
		if api.IsNotFound(err) {
			return fmt.Errorf("task #%d not found: %w", id, err)
		}
		return err
	}
	fmt.Fprintf(a.out, "Deleted #%d\n", id)
	return nil
}

func parseID(command string, args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: stickyboard %s <id>", command)
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", args[0])
	}
	return id, nil
}
