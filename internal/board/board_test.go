package board

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/nibzard/stickyboard/internal/api"
	"github.com/nibzard/stickyboard/internal/prefs"
	"github.com/nibzard/stickyboard/internal/task"
	"github.com/nibzard/stickyboard/internal/testutil"
)

func newTestBoard(t *testing.T, store prefs.Store, seed ...task.Task) (*Board, *testutil.FakeServer) {
	t.Helper()

	srv := testutil.NewFakeServer(t, seed...)
	client, err := api.New(srv.URL)
	if err != nil {
		t.Fatalf("api.New() error = %v", err)
	}
	if store == nil {
		store = prefs.NewMemoryStore()
	}
	b, err := New(context.Background(), client, store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b, srv
}

func fillForm(b *Board, text, start, end string) {
	b.SetText(text)
	b.SetStartDate(start)
	b.SetEndDate(end)
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("requires dependencies", func(t *testing.T) {
		if _, err := New(ctx, nil, prefs.NewMemoryStore()); err == nil {
			t.Error("expected error for nil api")
		}
		if _, err := New(ctx, &stubAPI{}, nil); err == nil {
			t.Error("expected error for nil store")
		}
	})

	t.Run("restores color index", func(t *testing.T) {
		store := prefs.NewMemoryStore()
		_ = prefs.SaveColorIndex(ctx, store, 2)
		b, err := New(ctx, &stubAPI{}, store)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if b.ColorIndex() != 2 || b.NextColor() != task.Color3 {
			t.Errorf("ColorIndex() = %d, NextColor() = %s", b.ColorIndex(), b.NextColor())
		}
	})

	t.Run("bad stored index resets", func(t *testing.T) {
		store := prefs.NewMemoryStore()
		_ = store.Set(ctx, prefs.KeyColorIndex, "7")
		b, err := New(ctx, &stubAPI{}, store)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if b.ColorIndex() != 0 {
			t.Errorf("ColorIndex() = %d, want 0", b.ColorIndex())
		}
	})

	t.Run("sort key option", func(t *testing.T) {
		b, _ := New(ctx, &stubAPI{}, prefs.NewMemoryStore(), WithSortKey(task.SortDeadline))
		if b.SortKey() != task.SortDeadline {
			t.Errorf("SortKey() = %s", b.SortKey())
		}
		b, _ = New(ctx, &stubAPI{}, prefs.NewMemoryStore(), WithSortKey("bogus"))
		if b.SortKey() != task.DefaultSortKey {
			t.Errorf("SortKey() = %s, want default", b.SortKey())
		}
	})
}

func TestCreate_WriteReport(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	b, srv := newTestBoard(t, store)

	fillForm(b, "Write report", "2024-01-01", "2024-01-10")
	if err := b.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	reqs := srv.Requests()
	if len(reqs) != 2 {
		t.Fatalf("expected POST then GET, got %d requests", len(reqs))
	}
	if reqs[0].Method != http.MethodPost || reqs[0].Path != "/tasks" {
		t.Errorf("first request = %s %s", reqs[0].Method, reqs[0].Path)
	}
	wantBody := `{"task":"Write report","startDate":"2024-01-01","endDate":"2024-01-10","completed":false,"color":"color-1"}`
	if string(reqs[0].Body) != wantBody {
		t.Errorf("POST body = %s", reqs[0].Body)
	}
	if reqs[1].Method != http.MethodGet || reqs[1].RawQuery != "_sort=start&_order=asc" {
		t.Errorf("second request = %s ?%s", reqs[1].Method, reqs[1].RawQuery)
	}

	tasks := b.Tasks()
	if len(tasks) != 1 || tasks[0].Task != "Write report" || tasks[0].Color != task.Color1 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if b.ColorIndex() != 1 {
		t.Errorf("ColorIndex() = %d, want 1", b.ColorIndex())
	}
	if v, _, _ := store.Get(ctx, prefs.KeyColorIndex); v != "1" {
		t.Errorf("stored color index = %q, want \"1\"", v)
	}
	if b.Form() != (Form{}) {
		t.Errorf("form not cleared: %+v", b.Form())
	}
}

func TestCreate_RotationWraps(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	b, srv := newTestBoard(t, store)

	want := []task.Color{task.Color1, task.Color2, task.Color3, task.Color1}
	for i := range want {
		fillForm(b, "note", "2024-01-01", "2024-01-02")
		if err := b.Create(ctx); err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
	}

	stored := srv.Tasks()
	if len(stored) != len(want) {
		t.Fatalf("server has %d tasks, want %d", len(stored), len(want))
	}
	for i, c := range want {
		if stored[i].Color != c {
			t.Errorf("task %d color = %s, want %s", i, stored[i].Color, c)
		}
	}
	if v, _, _ := store.Get(ctx, prefs.KeyColorIndex); v != "1" {
		t.Errorf("stored color index = %q, want \"1\"", v)
	}
}

func TestCreate_IncompleteForm(t *testing.T) {
	tests := []struct {
		name             string
		text, start, end string
	}{
		{name: "no text", start: "2024-01-01", end: "2024-01-02"},
		{name: "no start", text: "x", end: "2024-01-02"},
		{name: "no end", text: "x", start: "2024-01-01"},
		{name: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, srv := newTestBoard(t, nil)
			fillForm(b, tt.text, tt.start, tt.end)

			if err := b.Create(context.Background()); !errors.Is(err, ErrIncompleteForm) {
				t.Fatalf("Create() error = %v, want ErrIncompleteForm", err)
			}
			if n := len(srv.Requests()); n != 0 {
				t.Errorf("expected no requests, got %d", n)
			}
			if b.ColorIndex() != 0 {
				t.Errorf("ColorIndex() = %d, want 0", b.ColorIndex())
			}
		})
	}
}

func TestCreate_FailureKeepsForm(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore()
	b, srv := newTestBoard(t, store)
	srv.FailNext(http.MethodPost, http.StatusInternalServerError)

	fillForm(b, "Write report", "2024-01-01", "2024-01-10")
	err := b.Create(ctx)
	var se *api.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Create() error = %v, want 500 status error", err)
	}

	if b.Form().Text != "Write report" {
		t.Errorf("form cleared after failure: %+v", b.Form())
	}
	if b.ColorIndex() != 0 {
		t.Errorf("ColorIndex() = %d, want 0", b.ColorIndex())
	}
	if _, ok, _ := store.Get(ctx, prefs.KeyColorIndex); ok {
		t.Error("color index persisted after failure")
	}
	if n := len(srv.RequestsFor(http.MethodGet)); n != 0 {
		t.Errorf("expected no reload, got %d GETs", n)
	}
	if b.Creating() {
		t.Error("create guard not released")
	}

	if err := b.Create(ctx); err != nil {
		t.Fatalf("retry Create() error = %v", err)
	}
}

func TestCreate_PostedError(t *testing.T) {
	ctx := context.Background()

	t.Run("reload fails after post", func(t *testing.T) {
		store := prefs.NewMemoryStore()
		b, srv := newTestBoard(t, store)
		srv.FailNext(http.MethodGet, http.StatusInternalServerError)

		fillForm(b, "Write report", "2024-01-01", "2024-01-10")
		err := b.Create(ctx)
		var pe *PostedError
		if !errors.As(err, &pe) {
			t.Fatalf("Create() error = %v, want *PostedError", err)
		}
		if pe.Task.ID != 1 || pe.Task.Task != "Write report" {
			t.Errorf("PostedError.Task = %+v", pe.Task)
		}
		var se *api.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected wrapped 500, got %v", err)
		}
		if b.ColorIndex() != 1 || b.Form() != (Form{}) {
			t.Errorf("rotation or form not advanced: index=%d form=%+v", b.ColorIndex(), b.Form())
		}
		if v, _, _ := store.Get(ctx, prefs.KeyColorIndex); v != "1" {
			t.Errorf("stored index = %q, want \"1\"", v)
		}
	})

	t.Run("persist fails after post", func(t *testing.T) {
		b, srv := newTestBoard(t, failingStore{})
		fillForm(b, "Write report", "2024-01-01", "2024-01-10")
		err := b.Create(ctx)
		var pe *PostedError
		if !errors.As(err, &pe) || !strings.Contains(err.Error(), "persist color rotation") {
			t.Fatalf("Create() error = %v, want persist *PostedError", err)
		}
		if len(srv.Tasks()) != 1 {
			t.Errorf("expected task on server, got %+v", srv.Tasks())
		}
		if len(b.Tasks()) != 1 {
			t.Errorf("expected reload despite persist failure, got %+v", b.Tasks())
		}
	})
}

func TestCreate_InFlight(t *testing.T) {
	ctx := context.Background()
	stub := &stubAPI{
		createStarted: make(chan struct{}),
		createRelease: make(chan struct{}),
	}
	b, err := New(ctx, stub, prefs.NewMemoryStore())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fillForm(b, "x", "2024-01-01", "2024-01-02")

	done := make(chan error, 1)
	go func() { done <- b.Create(ctx) }()
	waitFor(t, stub.createStarted, "create request")

	if err := b.Create(ctx); !errors.Is(err, ErrCreateInFlight) {
		t.Errorf("second Create() error = %v, want ErrCreateInFlight", err)
	}
	if !b.Creating() {
		t.Error("Creating() = false while request pending")
	}

	close(stub.createRelease)
	if err := <-done; err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if stub.creates != 1 {
		t.Errorf("CreateTask called %d times, want 1", stub.creates)
	}
	if b.Creating() {
		t.Error("create guard not released")
	}
}

func TestSetText_Truncates(t *testing.T) {
	b, _ := newTestBoard(t, nil)
	b.SetText(strings.Repeat("é", task.MaxTextLength+5))
	if got := []rune(b.Form().Text); len(got) != task.MaxTextLength {
		t.Errorf("text length = %d, want %d", len(got), task.MaxTextLength)
	}
}

func TestSetSort(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		key       task.SortKey
		wantQuery string
	}{
		{key: task.SortStart, wantQuery: "_sort=start&_order=asc"},
		{key: task.SortDeadline, wantQuery: "_sort=deadline&_order=asc"},
		{key: task.SortComplete, wantQuery: "_sort=completed&_order=asc"},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			b, srv := newTestBoard(t, nil)
			if err := b.SetSort(ctx, tt.key); err != nil {
				t.Fatalf("SetSort() error = %v", err)
			}
			reqs := srv.RequestsFor(http.MethodGet)
			if len(reqs) != 1 {
				t.Fatalf("expected exactly one reload, got %d", len(reqs))
			}
			if reqs[0].RawQuery != tt.wantQuery {
				t.Errorf("query = %q, want %q", reqs[0].RawQuery, tt.wantQuery)
			}
			if b.SortKey() != tt.key {
				t.Errorf("SortKey() = %s", b.SortKey())
			}
		})
	}

	t.Run("unknown key", func(t *testing.T) {
		b, srv := newTestBoard(t, nil)
		if err := b.SetSort(ctx, "priority"); !errors.Is(err, ErrUnknownSortKey) {
			t.Fatalf("SetSort() error = %v, want ErrUnknownSortKey", err)
		}
		if n := len(srv.Requests()); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
		if b.SortKey() != task.DefaultSortKey {
			t.Errorf("SortKey() changed to %s", b.SortKey())
		}
	})
}

func TestSetSort_CompletedLast(t *testing.T) {
	b, _ := newTestBoard(t, nil,
		task.Task{Task: "done", StartDate: "2024-01-01", EndDate: "2024-01-02", Completed: true, Color: task.Color1},
		task.Task{Task: "open", StartDate: "2024-01-03", EndDate: "2024-01-04", Color: task.Color2},
	)
	if err := b.SetSort(context.Background(), task.SortComplete); err != nil {
		t.Fatalf("SetSort() error = %v", err)
	}
	tasks := b.Tasks()
	if len(tasks) != 2 || tasks[0].Completed || !tasks[1].Completed {
		t.Errorf("expected incomplete first: %+v", tasks)
	}
}

func TestLoad_FailureKeepsList(t *testing.T) {
	ctx := context.Background()
	b, srv := newTestBoard(t, nil,
		task.Task{Task: "a", StartDate: "2024-01-01", EndDate: "2024-01-02", Color: task.Color1},
	)
	if _, err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	srv.FailNext(http.MethodGet, http.StatusServiceUnavailable)
	applied, err := b.Load(ctx)
	if err == nil || applied {
		t.Fatalf("Load() = %v, %v; want error", applied, err)
	}
	if len(b.Tasks()) != 1 {
		t.Errorf("list replaced after failed reload: %+v", b.Tasks())
	}

	srv.SetRawList([]byte(`[{"id":1}]`))
	if _, err := b.Load(ctx); !errors.Is(err, api.ErrMalformedResponse) {
		t.Fatalf("Load() error = %v, want ErrMalformedResponse", err)
	}
	if len(b.Tasks()) != 1 {
		t.Errorf("list replaced after malformed reload: %+v", b.Tasks())
	}
}

func TestLoad_DropsStaleResponse(t *testing.T) {
	ctx := context.Background()
	b, srv := newTestBoard(t, nil,
		task.Task{Task: "old", StartDate: "2024-01-01", EndDate: "2024-01-02", Color: task.Color1},
	)

	hold := srv.HoldNextList()
	defer hold.Release()

	type result struct {
		applied bool
		err     error
	}
	slow := make(chan result, 1)
	go func() {
		applied, err := b.Load(ctx)
		slow <- result{applied, err}
	}()
	waitFor(t, hold.Arrived(), "held reload")

	fillForm(b, "new", "2024-01-03", "2024-01-04")
	if err := b.Create(ctx); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(b.Tasks()) != 2 {
		t.Fatalf("expected fresh list of 2, got %+v", b.Tasks())
	}

	hold.Release()
	r := <-slow
	if r.err != nil {
		t.Fatalf("slow Load() error = %v", r.err)
	}
	if r.applied {
		t.Error("stale response was applied")
	}
	if len(b.Tasks()) != 2 {
		t.Errorf("stale response replaced list: %+v", b.Tasks())
	}
}

func TestLoad_DropsResponseForOldSortKey(t *testing.T) {
	ctx := context.Background()
	b, srv := newTestBoard(t, nil,
		task.Task{Task: "a", StartDate: "2024-01-01", EndDate: "2024-01-09", Color: task.Color1},
		task.Task{Task: "b", StartDate: "2024-01-02", EndDate: "2024-01-05", Color: task.Color2},
	)

	hold := srv.HoldNextList()
	defer hold.Release()

	slow := make(chan bool, 1)
	go func() {
		applied, _ := b.Load(ctx)
		slow <- applied
	}()
	waitFor(t, hold.Arrived(), "held reload")

	srv.FailNext(http.MethodGet, http.StatusInternalServerError)
	if err := b.SetSort(ctx, task.SortDeadline); err == nil {
		t.Fatal("expected SetSort() reload to fail")
	}

	hold.Release()
	if applied := <-slow; applied {
		t.Error("response for the previous sort key was applied")
	}
	if b.SortKey() != task.SortDeadline {
		t.Errorf("SortKey() = %q, want deadline", b.SortKey())
	}
	if len(b.Tasks()) != 0 {
		t.Errorf("list replaced by start-ordered response: %+v", b.Tasks())
	}
}

func TestComplete(t *testing.T) {
	ctx := context.Background()
	b, srv := newTestBoard(t, nil,
		task.Task{ID: 4, Task: "x", StartDate: "2024-01-01", EndDate: "2024-01-02", Color: task.Color1},
	)
	if _, err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	srv.ResetRequests()

	target, _ := b.Find(4)
	if err := b.Complete(ctx, target); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	reqs := srv.Requests()
	if len(reqs) != 2 || reqs[0].Method != http.MethodPatch || reqs[0].Path != "/tasks/4" || reqs[1].Method != http.MethodGet {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
	got, ok := b.Find(4)
	if !ok || !got.Completed {
		t.Errorf("task not completed after reload: %+v", got)
	}

	srv.ResetRequests()
	if err := b.Complete(ctx, got); err != nil {
		t.Fatalf("Complete() on completed task error = %v", err)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("completed task sent %d requests", n)
	}
}

func TestComplete_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no id", func(t *testing.T) {
		b, srv := newTestBoard(t, nil)
		if err := b.Complete(ctx, task.Task{Task: "x"}); !errors.Is(err, ErrNotPersisted) {
			t.Fatalf("Complete() error = %v, want ErrNotPersisted", err)
		}
		if n := len(srv.Requests()); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
	})

	t.Run("server failure skips reload", func(t *testing.T) {
		b, srv := newTestBoard(t, nil,
			task.Task{ID: 1, Task: "x", StartDate: "2024-01-01", EndDate: "2024-01-02", Color: task.Color1},
		)
		srv.FailNext(http.MethodPatch, http.StatusInternalServerError)
		if err := b.Complete(ctx, task.Task{ID: 1}); err == nil {
			t.Fatal("expected error")
		}
		if n := len(srv.RequestsFor(http.MethodGet)); n != 0 {
			t.Errorf("expected no reload, got %d", n)
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes and reloads", func(t *testing.T) {
		b, _ := newTestBoard(t, nil,
			task.Task{ID: 2, Task: "x", StartDate: "2024-01-01", EndDate: "2024-01-02", Color: task.Color1},
		)
		if _, err := b.Load(ctx); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		target, _ := b.Find(2)
		if err := b.Delete(ctx, target); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if len(b.Tasks()) != 0 {
			t.Errorf("task still displayed: %+v", b.Tasks())
		}
	})

	t.Run("reloads after failure", func(t *testing.T) {
		b, srv := newTestBoard(t, nil,
			task.Task{ID: 2, Task: "x", StartDate: "2024-01-01", EndDate: "2024-01-02", Color: task.Color1},
		)
		srv.FailNext(http.MethodDelete, http.StatusInternalServerError)
		err := b.Delete(ctx, task.Task{ID: 2})
		var se *api.StatusError
		if !errors.As(err, &se) {
			t.Fatalf("Delete() error = %v, want status error", err)
		}
		if n := len(srv.RequestsFor(http.MethodGet)); n != 1 {
			t.Errorf("expected one reload, got %d", n)
		}
		if len(b.Tasks()) != 1 {
			t.Errorf("expected task still listed: %+v", b.Tasks())
		}
	})

	t.Run("no id", func(t *testing.T) {
		b, _ := newTestBoard(t, nil)
		if err := b.Delete(ctx, task.Task{}); !errors.Is(err, ErrNotPersisted) {
			t.Fatalf("Delete() error = %v, want ErrNotPersisted", err)
		}
	})
}

func TestCard(t *testing.T) {
	ctx := context.Background()
	b, srv := newTestBoard(t, nil,
		task.Task{ID: 1, Task: "open", StartDate: "2024-03-05", EndDate: "2024-12-31", Color: task.Color2},
		task.Task{ID: 2, Task: "done", StartDate: "bad", EndDate: "2024-01-02", Completed: true, Color: task.Color3},
	)
	if _, err := b.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	srv.ResetRequests()

	cards := b.Cards()
	if len(cards) != 2 {
		t.Fatalf("Cards() len = %d", len(cards))
	}

	open := cards[0]
	if open.Text() != "open" || open.Color() != task.Color2 {
		t.Errorf("card = %q %s", open.Text(), open.Color())
	}
	if open.StartLabel() != "03/05" || open.DeadlineLabel() != "12/31" {
		t.Errorf("labels = %s %s", open.StartLabel(), open.DeadlineLabel())
	}
	if open.Overlay() {
		t.Error("open card shows overlay")
	}

	done := cards[1]
	if !done.Overlay() {
		t.Error("completed card has no overlay")
	}
	if done.StartLabel() != "--/--" {
		t.Errorf("StartLabel() = %q for invalid date", done.StartLabel())
	}
	if err := done.Complete(ctx); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("completed card sent %d requests", n)
	}

	if err := open.Complete(ctx); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if n := len(srv.RequestsFor(http.MethodPatch)); n != 1 {
		t.Errorf("expected one PATCH, got %d", n)
	}

	if err := done.Delete(ctx); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(b.Tasks()) != 1 {
		t.Errorf("expected one task left, got %+v", b.Tasks())
	}
}

// stubAPI is a TaskAPI whose CreateTask can be paused.
type stubAPI struct {
	createStarted chan struct{}
	createRelease chan struct{}
	creates       int
}

func (s *stubAPI) ListTasks(context.Context, string) ([]task.Task, error) { return nil, nil }

func (s *stubAPI) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	s.creates++
	if s.createStarted != nil {
		close(s.createStarted)
		select {
		case <-s.createRelease:
		case <-ctx.Done():
			return task.Task{}, ctx.Err()
		}
	}
	t.ID = s.creates
	return t, nil
}

func (s *stubAPI) CompleteTask(context.Context, int) error { return nil }

func (s *stubAPI) DeleteTask(context.Context, int) error { return nil }

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (failingStore) Set(context.Context, string, string) error {
	return errors.New("disk full")
}
