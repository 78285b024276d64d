// Package testutil provides an in-memory stand-in for the task data server.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/nibzard/stickyboard/internal/task"
)

// Request is one recorded call to the fake server.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Query    map[string]string
	Body     []byte
}

// FakeServer mimics a json-server /tasks collection.
// It records every request and can be told to fail upcoming calls.
type FakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	tasks    []task.Task
	nextID   int
	requests []Request
	failures map[string][]int
	rawList  []byte
	holds    []*Hold
}

// Hold pauses one GET /tasks response.
type Hold struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Arrived is closed once the held request has taken its snapshot.
func (h *Hold) Arrived() <-chan struct{} { return h.arrived }

// Release lets the held request answer. It is safe to call more than once.
func (h *Hold) Release() { h.once.Do(func() { close(h.release) }) }

// NewFakeServer starts a fake server seeded with tasks. Seeded tasks without
// an id get one assigned. The server is closed when the test ends.
func NewFakeServer(t testing.TB, seed ...task.Task) *FakeServer {
	t.Helper()

	f := &FakeServer{
		nextID:   1,
		failures: make(map[string][]int),
	}
	for _, st := range seed {
		if st.ID >= f.nextID {
			f.nextID = st.ID + 1
		}
	}
	for _, st := range seed {
		if !st.IsPersisted() {
			st.ID = f.nextID
			f.nextID++
		}
		f.tasks = append(f.tasks, st)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks", f.handleList)
	mux.HandleFunc("POST /tasks", f.handleCreate)
	mux.HandleFunc("PATCH /tasks/{id}", f.handlePatch)
	mux.HandleFunc("DELETE /tasks/{id}", f.handleDelete)

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Close)
	return f
}

// Requests returns a copy of all recorded requests.
func (f *FakeServer) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsFor returns the recorded requests with the given method.
func (f *FakeServer) RequestsFor(method string) []Request {
	var out []Request
	for _, r := range f.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// ResetRequests clears the request log.
func (f *FakeServer) ResetRequests() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

// Tasks returns the stored tasks in insertion order.
func (f *FakeServer) Tasks() []task.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]task.Task, len(f.tasks))
	copy(out, f.tasks)
	return out
}

// FailNext makes the next request with the given method answer status.
// Calls queue up.
func (f *FakeServer) FailNext(method string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], status)
}

// SetRawList makes GET /tasks answer body verbatim instead of the stored
// tasks. Pass nil to restore normal behavior.
func (f *FakeServer) SetRawList(body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawList = body
}

// HoldNextList makes the next GET /tasks take its snapshot and then wait
// for the returned hold to be released before answering. Holds queue up.
func (f *FakeServer) HoldNextList() *Hold {
	h := &Hold{arrived: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.holds = append(f.holds, h)
	f.mu.Unlock()
	return h
}

func (f *FakeServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query := make(map[string]string)
		for k, v := range r.URL.Query() {
			if len(v) > 0 {
				query[k] = v[0]
			}
		}

		f.mu.Lock()
		f.requests = append(f.requests, Request{
			Method:   r.Method,
			Path:     r.URL.Path,
			RawQuery: r.URL.RawQuery,
			Query:    query,
			Body:     body,
		})
		var status int
		if queued := f.failures[r.Method]; len(queued) > 0 {
			status = queued[0]
			f.failures[r.Method] = queued[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (f *FakeServer) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	raw := f.rawList
	tasks := make([]task.Task, len(f.tasks))
	copy(tasks, f.tasks)
	var hold *Hold
	if len(f.holds) > 0 {
		hold = f.holds[0]
		f.holds = f.holds[1:]
	}
	f.mu.Unlock()

	if hold != nil {
		close(hold.arrived)
		select {
		case <-hold.release:
		case <-r.Context().Done():
			return
		}
	}

	if raw != nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
		return
	}

	sortTasks(tasks, r.URL.Query().Get("_sort"), r.URL.Query().Get("_order"))
	writeJSON(w, http.StatusOK, tasks)
}

func (f *FakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in task.Task
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	in.ID = f.nextID
	f.nextID++
	f.tasks = append(f.tasks, in)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, in)
}

func (f *FakeServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		// Merge by re-decoding the patch over the stored task.
		merged, _ := json.Marshal(f.tasks[i])
		var doc map[string]json.RawMessage
		_ = json.Unmarshal(merged, &doc)
		for k, v := range patch {
			doc[k] = v
		}
		merged, _ = json.Marshal(doc)
		var updated task.Task
		if err := json.Unmarshal(merged, &updated); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		updated.ID = id
		f.tasks[i] = updated
		writeJSON(w, http.StatusOK, updated)
		return
	}
	http.Error(w, "{}", http.StatusNotFound)
}

func (f *FakeServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			writeJSON(w, http.StatusOK, struct{}{})
			return
		}
	}
	http.Error(w, "{}", http.StatusNotFound)
}

// sortTasks orders tasks by a known field. Unknown fields keep insertion
// order, as json-server does for fields the records do not have.
func sortTasks(tasks []task.Task, field, order string) {
	var less func(a, b task.Task) bool
	switch field {
	case "id":
		less = func(a, b task.Task) bool { return a.ID < b.ID }
	case "task":
		less = func(a, b task.Task) bool { return a.Task < b.Task }
	case "startDate":
		less = func(a, b task.Task) bool { return a.StartDate < b.StartDate }
	case "endDate":
		less = func(a, b task.Task) bool { return a.EndDate < b.EndDate }
	case "completed":
		less = func(a, b task.Task) bool { return !a.Completed && b.Completed }
	default:
		return
	}
	if order == "desc" {
		asc := less
		less = func(a, b task.Task) bool { return asc(b, a) }
	}
	sort.SliceStable(tasks, func(i, j int) bool { return less(tasks[i], tasks[j]) })
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
