package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/config"
	"AgentFeed/pkg/database"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/matcher"
	"AgentFeed/pkg/model"
	"AgentFeed/pkg/monitor"
	"AgentFeed/pkg/ratelimit"
	"AgentFeed/pkg/scheduler"
)

type fakeTasks struct {
	mu        sync.Mutex
	running   map[string]bool
	triggered chan string
}

func (f *fakeTasks) Status() []scheduler.TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []scheduler.TaskStatus
	for _, name := range []string{scheduler.TaskCrawl, scheduler.TaskGenerate} {
		out = append(out, scheduler.TaskStatus{Name: name, Interval: time.Hour.String(), IsRunning: f.running[name]})
	}
	return out
}

func (f *fakeTasks) Has(name string) bool {
	return name == scheduler.TaskCrawl || name == scheduler.TaskGenerate
}

func (f *fakeTasks) Trigger(_ context.Context, name string) error {
	f.triggered <- name
	return nil
}


type fixture struct {
	server *Server
	db     *database.Database
	tasks  *fakeTasks
}

func newFixture(t *testing.T, dbCheck monitor.CheckFunc) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "api.db")
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	if dbCheck == nil {
		dbCheck = db.Ping
	}
	health := monitor.NewMonitor(logging.Discard())
	health.RegisterComponent("database", true, dbCheck)

	tasks := &fakeTasks{running: map[string]bool{}, triggered: make(chan string, 1)}
	h := NewHandlers(context.Background(), db.HotTopics(), tasks, cat, matcher.New(cat), health, logging.Discard())
	s := NewServer("0", time.Second, time.Second, logging.Discard())
	s.SetupRoutes(h, ratelimit.New(nil, logging.Discard()))
	return &fixture{server: s, db: db, tasks: tasks}
}

func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(ratelimit.HeaderAgentID, "agent-test")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应不是JSON: %s", rec.Body.String())
	}
	return rec, body
}

func TestHealthAndReadiness(t *testing.T) {
	f := newFixture(t, nil)
	if rec, _ := f.do(t, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("/health status = %d", rec.Code)
	}
	if rec, body := f.do(t, http.MethodGet, "/ready"); rec.Code != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("/ready = %d %v", rec.Code, body)
	}

	down := newFixture(t, func(context.Context) error { return errors.New("connection refused") })
	rec, body := down.do(t, http.MethodGet, "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("/ready with failing db = %d, want 503", rec.Code)
	}
	comps := body["components"].([]any)
	if st := comps[0].(map[string]any)["status"]; st != monitor.StatusUnhealthy {
		t.Fatalf("database status = %v", st)
	}
}

func TestTriggerTask(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodPost, "/api/v1/scheduler/tasks/"+scheduler.TaskCrawl+"/trigger")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d, want 202", rec.Code)
	}
	select {
	case name := <-f.tasks.triggered:
		if name != scheduler.TaskCrawl {
			t.Fatalf("triggered %q", name)
		}
	case <-time.After(time.Second):
		t.Fatal("任务没有被触发")
	}

	if rec, _ := f.do(t, http.MethodPost, "/api/v1/scheduler/tasks/unknown/trigger"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown task status = %d, want 404", rec.Code)
	}

	f.tasks.mu.Lock()
	f.tasks.running[scheduler.TaskGenerate] = true
	f.tasks.mu.Unlock()
	if rec, _ := f.do(t, http.MethodPost, "/api/v1/scheduler/tasks/"+scheduler.TaskGenerate+"/trigger"); rec.Code != http.StatusConflict {
		t.Fatalf("running task status = %d, want 409", rec.Code)
	}
}

func TestTriggerIsRateLimited(t *testing.T) {
	f := newFixture(t, nil)
	path := "/api/v1/scheduler/tasks/" + scheduler.TaskCrawl + "/trigger"

	for i := 0; i < 5; i++ {
		rec, _ := f.do(t, http.MethodPost, path)
		if rec.Code != http.StatusAccepted {
			t.Fatalf("call %d status = %d", i+1, rec.Code)
		}
		<-f.tasks.triggered
	}
	rec, body := f.do(t, http.MethodPost, path)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("6th call status = %d, want 429", rec.Code)
	}
	if body["code"] != "RATE_LIMITED" {
		t.Fatalf("body = %v", body)
	}
}

func TestHotTopicEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	topics := f.db.HotTopics()

	if _, err := topics.Ingest(ctx, []model.TopicCandidate{
		{Title: "冬季嘴唇干裂起皮", Category: "beauty", HeatScore: 90},
		{Title: "哈尔滨穷游攻略", Category: "travel", HeatScore: 70},
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	rec, body := f.do(t, http.MethodGet, "/api/v1/hot-topics?category=travel")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	data := body["data"].([]any)
	if len(data) != 1 {
		t.Fatalf("list len = %d, want 1", len(data))
	}
	first := data[0].(map[string]any)
	if first["title"] != "哈尔滨穷游攻略" {
		t.Fatalf("title = %v", first["title"])
	}

	id := first["id"].(string)
	if rec, body := f.do(t, http.MethodGet, "/api/v1/hot-topics/"+id); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d %v", rec.Code, body)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/v1/hot-topics/missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing topic status = %d, want 404", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/api/v1/hot-topics?status=archived"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter = %d, want 400", rec.Code)
	}

	rec, body = f.do(t, http.MethodGet, "/api/v1/hot-topics/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	stats := body["topics"].(map[string]any)
	if stats["total"] != float64(2) || stats["pending"] != float64(2) {
		t.Fatalf("stats = %v", stats)
	}
}

func TestTopicSuggestions(t *testing.T) {
	f := newFixture(t, nil)

	rec, body := f.do(t, http.MethodGet, "/api/v1/topics/categories")
	if rec.Code != http.StatusOK {
		t.Fatalf("categories status = %d", rec.Code)
	}
	if n := len(body["data"].([]any)); n != 8 {
		t.Fatalf("categories = %d, want 8", n)
	}

	rec, body = f.do(t, http.MethodGet, "/api/v1/topics/suggestions/"+url.PathEscape("旅行攻略"))
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions status = %d", rec.Code)
	}
	if body["category"] != "travel" {
		t.Fatalf("category = %v, want travel", body["category"])
	}

	if rec, _ := f.do(t, http.MethodGet, "/api/v1/topics/suggestions/"+url.PathEscape("宠物")); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown category status = %d, want 404", rec.Code)
	}
}
