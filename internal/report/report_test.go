package report

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reposync/internal/model"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path string
	body map[string]any
}

func TestHTTPReporterPostsToDashboard(t *testing.T) {
	var mu sync.Mutex
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(b, &body)
		mu.Lock()
		got = append(got, captured{path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := NewHTTP(srv.URL)
	h.LogLine(LevelInfo, "before task")
	h.CreateTask("sync")
	h.LogLine(LevelWarn, "careful")
	h.ReportProgress(1, 3)
	h.Complete(model.SyncCounters{Pulled: 2})
	h.Fail(errors.New("boom"))

	id := h.TaskID()
	require.NotEmpty(t, id)
	require.Len(t, got, 5, "notifications before CreateTask are dropped")

	assert.Equal(t, "/tasks", got[0].path)
	assert.Equal(t, id, got[0].body["uuid"])
	assert.Equal(t, "/tasks/"+id+"/logs", got[1].path)
	assert.Equal(t, "warn", got[1].body["level"])
	assert.Equal(t, "/tasks/"+id+"/progress", got[2].path)
	assert.EqualValues(t, 3, got[2].body["total"])
	assert.Equal(t, "/tasks/"+id+"/complete", got[3].path)
	assert.EqualValues(t, 2, got[3].body["pulled"])
	assert.Equal(t, "/tasks/"+id+"/fail", got[4].path)
	assert.Equal(t, "boom", got[4].body["error"])
}

func TestHTTPReporterSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	srv.Close()

	h := NewHTTP(srv.URL)
	assert.NotPanics(t, func() {
		h.CreateTask("sync")
		h.LogLine(LevelError, "x")
		h.ReportProgress(1, 1)
		h.Complete(model.SyncCounters{})
		h.Fail(errors.New("x"))
	})
}

type counting struct{ calls []string }

func (c *counting) CreateTask(string)           { c.calls = append(c.calls, "create") }
func (c *counting) LogLine(Level, string)       { c.calls = append(c.calls, "log") }
func (c *counting) ReportProgress(int, int)     { c.calls = append(c.calls, "progress") }
func (c *counting) Complete(model.SyncCounters) { c.calls = append(c.calls, "complete") }
func (c *counting) Fail(error)                  { c.calls = append(c.calls, "fail") }

func TestMultiFansOut(t *testing.T) {
	a, b := &counting{}, &counting{}
	m := Multi{a, Nop{}, b, Log{}}

	m.CreateTask("t")
	m.LogLine(LevelInfo, "m")
	m.ReportProgress(1, 2)
	m.Complete(model.SyncCounters{})
	m.Fail(errors.New("e"))

	want := []string{"create", "log", "progress", "complete", "fail"}
	assert.Equal(t, want, a.calls)
	assert.Equal(t, want, b.calls)
}

func TestSummary(t *testing.T) {
	s := Summary(model.SyncCounters{Pulled: 1, Pushed: 2, Cloned: 3, EmptyDeleted: 4, UpToDate: 5, Failed: 6, ConflictsResolved: 7})
	assert.True(t, strings.HasPrefix(s, "1 pulled, 2 pushed, 3 cloned"))
	assert.Contains(t, s, "7 conflicts resolved")
}
