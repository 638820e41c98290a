package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"buildtrack/internal/apperr"
	"buildtrack/internal/config"
	"buildtrack/internal/date"
	"buildtrack/internal/gantt"
	"buildtrack/internal/logging"
	"buildtrack/internal/models"
	"buildtrack/internal/storage/sqlite"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	srv   *Server
	store *sqlite.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cfg := config.Default()
	cfg.Server.StaticDir = ""
	srv := New(store, cfg, logging.Discard())
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return &testEnv{srv: srv, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details"`
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorBody {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decode[errorBody](t, rec)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	if body.Error == "" {
		t.Error("error message is empty")
	}
	return body
}

// seedJune creates a project with two June tasks and returns their ids.
func (e *testEnv) seedJune(t *testing.T) (projectID, foundation, framing int64) {
	t.Helper()
	ctx := context.Background()
	p, err := e.store.CreateProject(ctx, models.Project{Name: "June build"})
	if err != nil {
		t.Fatal(err)
	}
	a, err := e.store.CreateTask(ctx, models.Task{ProjectID: p.ID, Title: "Foundation",
		StartDate: date.Ptr(date.MustParse("2024-06-03")), DueDate: date.Ptr(date.MustParse("2024-06-05"))})
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.store.CreateTask(ctx, models.Task{ProjectID: p.ID, Title: "Framing", DependsOn: []int64{a.ID},
		StartDate: date.Ptr(date.MustParse("2024-06-10")), DueDate: date.Ptr(date.MustParse("2024-06-14"))})
	if err != nil {
		t.Fatal(err)
	}
	return p.ID, a.ID, b.ID
}

// dayX is the pointer position of the middle of a June day on a June
// days-mode timeline.
func dayX(day int) float64 {
	return (float64(day) - 0.5) * 100 / 30
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestProjectEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/projects", gin.H{"name": "Depot", "start_date": "2024-06-01", "end_date": "2024-07-31"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		Project models.Project `json:"project"`
	}](t, rec)
	if created.Project.StartDate == nil || created.Project.StartDate.String() != "2024-06-01" {
		t.Errorf("StartDate = %v, want 2024-06-01", created.Project.StartDate)
	}

	expectError(t, env.do(t, http.MethodPost, "/api/projects", gin.H{"color": "#fff"}), http.StatusBadRequest, apperr.InvalidInput)
	expectError(t, env.do(t, http.MethodPost, "/api/projects", gin.H{"name": "X", "start_date": "June"}), http.StatusBadRequest, apperr.InvalidInput)
	expectError(t, env.do(t, http.MethodGet, "/api/projects/999", nil), http.StatusNotFound, apperr.ProjectNotFound)
	expectError(t, env.do(t, http.MethodGet, "/api/projects/abc", nil), http.StatusBadRequest, apperr.InvalidInput)

	path := fmt.Sprintf("/api/projects/%d", created.Project.ID)
	if rec := env.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	expectError(t, env.do(t, http.MethodGet, path, nil), http.StatusNotFound, apperr.ProjectNotFound)
}

func TestTaskEndpoints(t *testing.T) {
	env := newTestEnv(t)
	projectID, foundation, _ := env.seedJune(t)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", projectID), gin.H{
		"title": "Roofing", "priority": "high", "estimated_hours": 24,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task status = %d, body %s", rec.Code, rec.Body.String())
	}

	expectError(t, env.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/tasks", projectID), gin.H{"title": "x", "priority": "urgent"}),
		http.StatusBadRequest, apperr.InvalidInput)

	body := expectError(t, env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", foundation), gin.H{"due_date": "2024-06-01"}),
		http.StatusUnprocessableEntity, apperr.InvalidDateOrder)
	if body.Details["start_date"] != "2024-06-03" {
		t.Errorf("details = %v, want start_date", body.Details)
	}

	expectError(t, env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", foundation), gin.H{"start_date": "03/06/2024"}),
		http.StatusBadRequest, apperr.InvalidDate)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", foundation), gin.H{"progress": 60, "status": "in_progress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/history", projectID), nil)
	hist := decode[struct {
		History struct {
			CanUndo         bool   `json:"can_undo"`
			UndoDescription string `json:"undo_description"`
		} `json:"history"`
	}](t, rec)
	if !hist.History.CanUndo {
		t.Errorf("history after edit = %+v, want undoable", hist.History)
	}

	expectError(t, env.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/dependencies", foundation), gin.H{"depends_on": foundation}),
		http.StatusUnprocessableEntity, apperr.SelfReference)
}

func TestGanttViewEndpoint(t *testing.T) {
	env := newTestEnv(t)
	projectID, _, _ := env.seedJune(t)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/gantt?view=days&start=2024-06-01&end=2024-06-30", projectID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decode[struct {
		Gantt struct {
			Mode    string `json:"mode"`
			Columns []any  `json:"columns"`
			Rows    []struct {
				Task models.Task `json:"task"`
				Bar  *struct {
					Left float64 `json:"left"`
				} `json:"bar"`
			} `json:"rows"`
		} `json:"gantt"`
	}](t, rec)
	if view.Gantt.Mode != "days" || len(view.Gantt.Columns) != 30 {
		t.Errorf("mode/columns = %s/%d, want days/30", view.Gantt.Mode, len(view.Gantt.Columns))
	}
	if len(view.Gantt.Rows) != 2 || view.Gantt.Rows[0].Bar == nil {
		t.Fatalf("rows = %+v", view.Gantt.Rows)
	}
	if got, want := view.Gantt.Rows[0].Bar.Left, 2*100.0/30; got < want-1e-6 || got > want+1e-6 {
		t.Errorf("bar left = %v, want %v", got, want)
	}

	expectError(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/gantt?view=years", projectID), nil),
		http.StatusBadRequest, apperr.InvalidViewMode)
	expectError(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/gantt?start=2024-06-30&end=2024-06-01", projectID), nil),
		http.StatusUnprocessableEntity, apperr.InvalidDateOrder)
	expectError(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/gantt?start=2024-06-01", projectID), nil),
		http.StatusBadRequest, apperr.InvalidInput)
	expectError(t, env.do(t, http.MethodGet, "/api/projects/404/gantt", nil), http.StatusNotFound, apperr.ProjectNotFound)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/projects/%d/gantt.svg?start=2024-06-01&end=2024-06-30", projectID), nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/svg+xml" {
		t.Errorf("svg status = %d, content type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestGanttExportKeepsViewport(t *testing.T) {
	env := newTestEnv(t)
	projectID, _, _ := env.seedJune(t)
	base := fmt.Sprintf("/api/projects/%d", projectID)

	if rec := env.do(t, http.MethodGet, base+"/gantt?view=days&start=2024-06-01&end=2024-06-30&status=in_progress", nil); rec.Code != http.StatusOK {
		t.Fatalf("view status = %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, base+"/gantt.svg?view=months&start=2024-01-01&end=2024-12-31", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("svg status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Framing") {
		t.Error("export ignored its own filter and dropped the Framing row")
	}

	ctrl, err := env.srv.Controllers().Get(context.Background(), projectID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	v := ctrl.View(0, 600)
	if v.Mode != gantt.ViewDays || v.Range.String() != "2024-06-01..2024-06-30" {
		t.Errorf("viewport after export = %s %s, want days 2024-06-01..2024-06-30", v.Mode, v.Range)
	}
	if len(v.Rows) != 0 {
		t.Errorf("rows after export = %d, want the in_progress filter to still hide both tasks", len(v.Rows))
	}
}

func TestDragDropUndoFlow(t *testing.T) {
	env := newTestEnv(t)
	projectID, foundation, _ := env.seedJune(t)
	base := fmt.Sprintf("/api/projects/%d", projectID)

	if rec := env.do(t, http.MethodGet, base+"/gantt?view=days&start=2024-06-01&end=2024-06-30", nil); rec.Code != http.StatusOK {
		t.Fatalf("view status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, base+"/gantt/drag/start", gin.H{"task_id": foundation, "x": dayX(3)})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body.String())
	}
	expectError(t, env.do(t, http.MethodPost, base+"/gantt/drag/start", gin.H{"task_id": foundation, "x": dayX(3)}),
		http.StatusConflict, apperr.DragInProgress)

	rec = env.do(t, http.MethodPost, base+"/gantt/drag/move", gin.H{"x": dayX(5)})
	moved := decode[struct {
		Drag struct {
			CandidateStart string `json:"candidate_start"`
			Validity       string `json:"validity"`
		} `json:"drag"`
	}](t, rec)
	if moved.Drag.CandidateStart != "2024-06-05" || moved.Drag.Validity != "valid" {
		t.Errorf("move = %+v, want valid start 2024-06-05", moved.Drag)
	}

	rec = env.do(t, http.MethodPost, base+"/gantt/drag/drop", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("drop status = %d, body %s", rec.Code, rec.Body.String())
	}
	dropped := decode[struct {
		Drop struct {
			Applied bool        `json:"applied"`
			Task    models.Task `json:"task"`
		} `json:"drop"`
	}](t, rec)
	if !dropped.Drop.Applied || dropped.Drop.Task.StartDate.String() != "2024-06-05" || dropped.Drop.Task.DueDate.String() != "2024-06-07" {
		t.Errorf("drop = %+v, want applied 2024-06-05..2024-06-07", dropped.Drop)
	}

	expectError(t, env.do(t, http.MethodPost, base+"/gantt/drag/drop", nil), http.StatusConflict, apperr.NoActiveDrag)

	if rec := env.do(t, http.MethodPost, base+"/history/undo", nil); rec.Code != http.StatusOK {
		t.Fatalf("undo status = %d, body %s", rec.Code, rec.Body.String())
	}
	task, err := env.store.GetTask(context.Background(), foundation)
	if err != nil {
		t.Fatal(err)
	}
	if task.StartDate.String() != "2024-06-03" || task.DueDate.String() != "2024-06-05" {
		t.Errorf("after undo = %s..%s, want 2024-06-03..2024-06-05", task.StartDate, task.DueDate)
	}
	expectError(t, env.do(t, http.MethodPost, base+"/history/undo", nil), http.StatusConflict, apperr.NothingToUndo)

	if rec := env.do(t, http.MethodPost, base+"/history/redo", nil); rec.Code != http.StatusOK {
		t.Fatalf("redo status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodDelete, base+"/history", nil); rec.Code != http.StatusOK {
		t.Errorf("clear status = %d", rec.Code)
	}
	expectError(t, env.do(t, http.MethodPost, base+"/history/redo", nil), http.StatusConflict, apperr.NothingToRedo)
}

func TestDropOutsideTimelineRejected(t *testing.T) {
	env := newTestEnv(t)
	projectID, foundation, _ := env.seedJune(t)
	base := fmt.Sprintf("/api/projects/%d", projectID)
	env.do(t, http.MethodGet, base+"/gantt?view=days&start=2024-06-01&end=2024-06-30", nil)

	env.do(t, http.MethodPost, base+"/gantt/pointer", gin.H{"kind": "down", "task_id": foundation, "x": dayX(3), "source": "touch"})
	env.do(t, http.MethodPost, base+"/gantt/pointer", gin.H{"kind": "move", "x": dayX(30)})
	body := expectError(t, env.do(t, http.MethodPost, base+"/gantt/pointer", gin.H{"kind": "up"}),
		http.StatusUnprocessableEntity, apperr.DropRejected)
	if body.Details["validity"] != "invalid" {
		t.Errorf("details = %v, want invalid validity", body.Details)
	}

	task, err := env.store.GetTask(context.Background(), foundation)
	if err != nil {
		t.Fatal(err)
	}
	if task.StartDate.String() != "2024-06-03" {
		t.Errorf("rejected drop changed start to %s", task.StartDate)
	}
}

func TestKeysAndPreferences(t *testing.T) {
	env := newTestEnv(t)
	projectID, _, _ := env.seedJune(t)
	base := fmt.Sprintf("/api/projects/%d", projectID)

	rec := env.do(t, http.MethodPost, base+"/gantt/keys", gin.H{"key": "Escape"})
	key := decode[struct {
		Key struct {
			Command string `json:"command"`
			Ignored bool   `json:"ignored"`
		} `json:"key"`
	}](t, rec)
	if key.Key.Command != "cancel_drag" || !key.Key.Ignored {
		t.Errorf("Escape without drag = %+v, want ignored cancel_drag", key.Key)
	}

	rec = env.do(t, http.MethodPut, "/api/preferences", gin.H{"panel_width": 5000})
	prefs := decode[struct {
		Preferences models.Preferences `json:"preferences"`
	}](t, rec)
	if prefs.Preferences.PanelWidth != 640 {
		t.Errorf("PanelWidth = %d, want clamped 640", prefs.Preferences.PanelWidth)
	}

	rec = env.do(t, http.MethodPost, base+"/gantt/keys", gin.H{"key": "ArrowLeft", "ctrl": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("shrink status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/preferences", nil)
	prefs = decode[struct {
		Preferences models.Preferences `json:"preferences"`
	}](t, rec)
	if prefs.Preferences.PanelWidth != 620 {
		t.Errorf("PanelWidth after shrink = %d, want 620", prefs.Preferences.PanelWidth)
	}
}

func TestEventsAndHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	projectID, _, _ := env.seedJune(t)
	base := fmt.Sprintf("/api/projects/%d", projectID)

	if rec := env.do(t, http.MethodPost, base+"/milestones", gin.H{"title": "Inspection", "date": "2024-06-14"}); rec.Code != http.StatusCreated {
		t.Fatalf("milestone status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, base+"/weather", gin.H{"title": "Storm", "date": "2024-06-12", "severity": "severe"}); rec.Code != http.StatusCreated {
		t.Fatalf("weather status = %d, body %s", rec.Code, rec.Body.String())
	}
	expectError(t, env.do(t, http.MethodPost, base+"/weather", gin.H{"title": "Fog", "date": "2024-06-12", "severity": "mild"}),
		http.StatusBadRequest, apperr.InvalidInput)

	rec := env.do(t, http.MethodGet, base+"/milestones", nil)
	ms := decode[struct {
		Milestones []models.Milestone `json:"milestones"`
	}](t, rec)
	if len(ms.Milestones) != 1 {
		t.Errorf("milestones = %d, want 1", len(ms.Milestones))
	}

	rec = env.do(t, http.MethodGet, base+"/health", nil)
	health := decode[struct {
		Health struct {
			Available bool `json:"available"`
			Total     int  `json:"total"`
		} `json:"health"`
	}](t, rec)
	if !health.Health.Available || health.Health.Total != 2 {
		t.Errorf("health = %+v, want available with 2 tasks", health.Health)
	}
}

func TestUnknownAPIPath(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
