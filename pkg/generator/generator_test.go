package generator

import (
	"context"
	"errors"
	"iter"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/config"
	"AgentFeed/pkg/database"
	"AgentFeed/pkg/imagegen"
	"AgentFeed/pkg/jobs"
	"AgentFeed/pkg/llm"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/matcher"
	"AgentFeed/pkg/model"
	"AgentFeed/pkg/prompt"
	"AgentFeed/pkg/writer"
)

const lipNote = "【标题】嘴唇干到起皮？这样敷一晚就软了\n【正文】冬天嘴唇一直起皮，试了好多方法。\n【标签】#护唇 #冬季护肤"

type scriptedStreamer struct {
	mu       sync.Mutex
	requests []llm.Request
	reply    func(req llm.Request) []llm.Chunk
}

func (s *scriptedStreamer) Stream(_ context.Context, req llm.Request) iter.Seq[llm.Chunk] {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	chunks := s.reply(req)
	return func(yield func(llm.Chunk) bool) {
		for _, c := range chunks {
			if !yield(c) {
				return
			}
		}
	}
}

func textChunks(parts ...string) []llm.Chunk {
	out := make([]llm.Chunk, 0, len(parts)+1)
	for _, p := range parts {
		out = append(out, llm.Chunk{Type: llm.ChunkText, Content: p})
	}
	return append(out, llm.Chunk{Type: llm.ChunkDone})
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (r *recordingDispatcher) Submit(_ context.Context, job jobs.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return r.err
}

type fixture struct {
	db         *database.Database
	catalog    *catalog.Catalog
	writer     *writer.Writer
	streamer   *scriptedStreamer
	dispatcher *recordingDispatcher
	gen        *Generator
	pauses     []time.Duration
}

func newFixture(t *testing.T, reply func(llm.Request) []llm.Chunk) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "gen.db")
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}

	f := &fixture{
		db:         db,
		catalog:    c,
		streamer:   &scriptedStreamer{reply: reply},
		dispatcher: &recordingDispatcher{},
	}
	f.writer = writer.New(c, prompt.NewBuilder(c, matcher.New(c)), f.streamer, logging.Discard())
	f.gen = New(c, f.writer, db.HotTopics(), db.Notes(), f.dispatcher, logging.Discard(), Options{TopicDelay: 2 * time.Second}).
		WithSleep(func(_ context.Context, d time.Duration) error {
			f.pauses = append(f.pauses, d)
			return nil
		})
	return f
}

// withTopics 换用包装过的话题存储
func (f *fixture) withTopics(topics TopicStore) *Generator {
	return New(f.catalog, f.writer, topics, f.db.Notes(), f.dispatcher, logging.Discard(), Options{}).
		WithSleep(func(context.Context, time.Duration) error { return nil })
}

func (f *fixture) ingest(t *testing.T, candidates ...model.TopicCandidate) {
	t.Helper()
	if _, err := f.db.HotTopics().Ingest(context.Background(), candidates); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
}

func (f *fixture) topic(t *testing.T, title string) *model.HotTopic {
	t.Helper()
	all, err := f.db.HotTopics().List(context.Background(), database.ListFilter{Limit: 100})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, topic := range all {
		if topic.Title == title {
			return topic
		}
	}
	t.Fatalf("topic %q not found", title)
	return nil
}

func TestProcessPendingTopicsPublishes(t *testing.T) {
	f := newFixture(t, func(llm.Request) []llm.Chunk {
		return textChunks(lipNote[:20], lipNote[20:])
	})
	f.ingest(t, model.TopicCandidate{Title: "冬季嘴唇干裂起皮", Category: "beauty", HeatScore: 900})

	result, err := f.gen.ProcessPendingTopics(context.Background(), 3)
	if err != nil {
		t.Fatalf("ProcessPendingTopics() error = %v", err)
	}
	if result.Success != 1 || result.Failed != 0 || len(result.NoteIDs) != 1 {
		t.Fatalf("result = %+v", result)
	}

	topic := f.topic(t, "冬季嘴唇干裂起皮")
	if topic.Status != model.TopicPublished || topic.NoteID == nil || *topic.NoteID != result.NoteIDs[0] {
		t.Fatalf("topic = %+v", topic)
	}
	if topic.ProcessedAt == nil {
		t.Fatal("ProcessedAt not set")
	}

	note, err := f.db.Notes().Get(context.Background(), result.NoteIDs[0])
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if note.CreatorID != "xiaomei" || note.Category != "beauty" {
		t.Fatalf("note = %+v", note)
	}
	if note.Title != "嘴唇干到起皮？这样敷一晚就软了" {
		t.Fatalf("note title = %q", note.Title)
	}
	if len(note.Tags) != 2 || note.Tags[0] != "护唇" {
		t.Fatalf("note tags = %v", note.Tags)
	}

	req := f.streamer.requests[0]
	if !strings.Contains(req.System, "小美爱护肤") {
		t.Errorf("system prompt does not carry the beauty creator persona")
	}
	if req.Messages[0].Content != writer.UserPrompt("冬季嘴唇干裂起皮") {
		t.Errorf("user message = %q", req.Messages[0].Content)
	}

	if len(f.dispatcher.jobs) != 2 {
		t.Fatalf("jobs = %+v, want cover and comments", f.dispatcher.jobs)
	}
	cover, comments := f.dispatcher.jobs[0], f.dispatcher.jobs[1]
	if cover.Kind != jobs.KindCoverImage || cover.NoteID != note.ID || cover.Category != "beauty" {
		t.Errorf("cover job = %+v", cover)
	}
	if comments.Kind != jobs.KindComments || comments.Count != DefaultCommentCount {
		t.Errorf("comments job = %+v", comments)
	}

	if len(f.pauses) != 0 {
		t.Errorf("pauses = %v, want none after the only topic", f.pauses)
	}
}

func TestGenerateResolvesChineseCategory(t *testing.T) {
	f := newFixture(t, func(llm.Request) []llm.Chunk { return textChunks(lipNote) })
	f.ingest(t, model.TopicCandidate{Title: "哈尔滨冰雪大世界", Category: "旅行攻略"})

	noteID, ok := f.gen.GenerateNoteForTopic(context.Background(), f.topic(t, "哈尔滨冰雪大世界"))
	if !ok {
		t.Fatal("GenerateNoteForTopic() failed")
	}
	note, err := f.db.Notes().Get(context.Background(), noteID)
	if err != nil {
		t.Fatal(err)
	}
	if note.Category != "travel" || note.CreatorID != "lvxing" {
		t.Fatalf("note = %+v", note)
	}
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		category string
		reply    []llm.Chunk
		wantMsg  string
	}{
		{
			name:     "unmapped category",
			category: "宠物",
			reply:    textChunks(lipNote),
			wantMsg:  "找不到分类 宠物 对应的博主",
		},
		{
			name:     "stream error",
			category: "beauty",
			reply:    []llm.Chunk{{Type: llm.ChunkText, Content: "【标题】"}, {Type: llm.ChunkError, Content: "API返回错误(529): overloaded"}},
			wantMsg:  "overloaded",
		},
		{
			name:     "empty output",
			category: "beauty",
			reply:    textChunks("  "),
			wantMsg:  ErrEmptyGeneration.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(llm.Request) []llm.Chunk { return tt.reply })
			f.ingest(t, model.TopicCandidate{Title: "话题", Category: tt.category})

			result, err := f.gen.ProcessPendingTopics(context.Background(), 3)
			if err != nil {
				t.Fatalf("ProcessPendingTopics() error = %v", err)
			}
			if result.Success != 0 || result.Failed != 1 || len(result.NoteIDs) != 0 {
				t.Fatalf("result = %+v", result)
			}

			topic := f.topic(t, "话题")
			if topic.Status != model.TopicFailed || topic.ErrorMessage == nil {
				t.Fatalf("topic = %+v", topic)
			}
			if !strings.Contains(*topic.ErrorMessage, tt.wantMsg) {
				t.Fatalf("error_message = %q, want it to contain %q", *topic.ErrorMessage, tt.wantMsg)
			}
			if topic.NoteID != nil {
				t.Fatalf("failed topic carries note id %q", *topic.NoteID)
			}
			if len(f.dispatcher.jobs) != 0 {
				t.Fatalf("jobs submitted for failed topic: %+v", f.dispatcher.jobs)
			}
		})
	}
}

func TestSideEffectFailureKeepsPublished(t *testing.T) {
	f := newFixture(t, func(llm.Request) []llm.Chunk { return textChunks(lipNote) })
	f.dispatcher.err = errors.New("nats: no responders")
	f.ingest(t, model.TopicCandidate{Title: "闭口反复长", Category: "beauty"})

	noteID, ok := f.gen.GenerateNoteForTopic(context.Background(), f.topic(t, "闭口反复长"))
	if !ok || noteID == "" {
		t.Fatal("GenerateNoteForTopic() failed although only side effects failed")
	}
	if topic := f.topic(t, "闭口反复长"); topic.Status != model.TopicPublished {
		t.Fatalf("status = %s, want published", topic.Status)
	}
}

func TestProcessPendingTopicsOrderAndLimit(t *testing.T) {
	f := newFixture(t, func(llm.Request) []llm.Chunk { return textChunks(lipNote) })
	f.ingest(t,
		model.TopicCandidate{Title: "low", Category: "beauty", HeatScore: 1},
		model.TopicCandidate{Title: "high", Category: "beauty", HeatScore: 100},
		model.TopicCandidate{Title: "mid", Category: "beauty", HeatScore: 50},
	)

	result, err := f.gen.ProcessPendingTopics(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success != 2 {
		t.Fatalf("result = %+v", result)
	}
	if len(f.pauses) != 1 || f.pauses[0] != 2*time.Second {
		t.Errorf("pauses = %v, want one between two topics", f.pauses)
	}
	if f.topic(t, "low").Status != model.TopicPending {
		t.Fatal("lowest heat topic should remain pending")
	}
	msgs := []string{f.streamer.requests[0].Messages[0].Content, f.streamer.requests[1].Messages[0].Content}
	if !strings.Contains(msgs[0], "high") || !strings.Contains(msgs[1], "mid") {
		t.Fatalf("processing order = %v", msgs)
	}

	stats, err := f.gen.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TodayGenerated != 2 || stats.TotalGenerated != 2 {
		t.Fatalf("stats = %+v", stats)
	}
}

type publishFailingStore struct {
	TopicStore
	err error
}

func (s publishFailingStore) UpdateStatus(ctx context.Context, id string, status model.TopicStatus, noteID, errMsg string) error {
	if status == model.TopicPublished {
		return s.err
	}
	return s.TopicStore.UpdateStatus(ctx, id, status, noteID, errMsg)
}

func TestPublishFailureMarksTopicFailed(t *testing.T) {
	f := newFixture(t, func(llm.Request) []llm.Chunk { return textChunks(lipNote) })
	f.ingest(t, model.TopicCandidate{Title: "冬季嘴唇干裂起皮", Category: "beauty"})

	gen := f.withTopics(publishFailingStore{TopicStore: f.db.HotTopics(), err: errors.New("database is locked")})
	noteID, ok := gen.GenerateNoteForTopic(context.Background(), f.topic(t, "冬季嘴唇干裂起皮"))
	if ok || noteID != "" {
		t.Fatalf("GenerateNoteForTopic() = %q, %v; want failure", noteID, ok)
	}

	topic := f.topic(t, "冬季嘴唇干裂起皮")
	if topic.Status != model.TopicFailed || topic.ErrorMessage == nil {
		t.Fatalf("topic = %+v, want failed with message", topic)
	}
	if !strings.Contains(*topic.ErrorMessage, "database is locked") {
		t.Fatalf("error_message = %q", *topic.ErrorMessage)
	}
	if len(f.dispatcher.jobs) != 0 {
		t.Fatalf("jobs submitted for failed topic: %+v", f.dispatcher.jobs)
	}
}

// cancelAfterGenerating 话题进入 generating 后取消 ctx，模拟关停
type cancelAfterGenerating struct {
	TopicStore
	cancel context.CancelFunc
}

func (s cancelAfterGenerating) UpdateStatus(ctx context.Context, id string, status model.TopicStatus, noteID, errMsg string) error {
	err := s.TopicStore.UpdateStatus(ctx, id, status, noteID, errMsg)
	if status == model.TopicGenerating {
		s.cancel()
	}
	return err
}

func TestCancelledGenerationStillMarksTopicFailed(t *testing.T) {
	f := newFixture(t, func(llm.Request) []llm.Chunk { return textChunks(lipNote) })
	f.ingest(t, model.TopicCandidate{Title: "哈尔滨冰雪大世界", Category: "travel"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := f.withTopics(cancelAfterGenerating{TopicStore: f.db.HotTopics(), cancel: cancel})
	if _, ok := gen.GenerateNoteForTopic(ctx, f.topic(t, "哈尔滨冰雪大世界")); ok {
		t.Fatal("GenerateNoteForTopic() succeeded on a cancelled context")
	}

	topic := f.topic(t, "哈尔滨冰雪大世界")
	if topic.Status != model.TopicFailed {
		t.Fatalf("status = %s, want failed", topic.Status)
	}
	if topic.ErrorMessage == nil || *topic.ErrorMessage == "" {
		t.Fatal("error_message not recorded")
	}
}

type fakeImages struct {
	url string
	err error
}

func (f fakeImages) Generate(context.Context, string, string, imagegen.ImageType) (string, error) {
	return f.url, f.err
}

type fakeCovers struct {
	set map[string]string
}

func (f *fakeCovers) SetCoverImage(_ context.Context, id, url string) error {
	f.set[id] = url
	return nil
}

type fakeComments struct {
	got int
}

func (f *fakeComments) AddAIComments(_ context.Context, _ string, target int) (int, error) {
	f.got = target
	return target, nil
}

func TestRegisterJobs(t *testing.T) {
	covers := &fakeCovers{set: map[string]string{}}
	comments := &fakeComments{}

	reg := jobs.NewRegistry(logging.Discard())
	RegisterJobs(reg, fakeImages{url: "/uploads/a.png"}, covers, comments, logging.Discard())

	ctx := context.Background()
	if err := reg.Run(ctx, jobs.Job{Kind: jobs.KindCoverImage, NoteID: "n1", Title: "t", Category: "beauty"}); err != nil {
		t.Fatalf("cover job error = %v", err)
	}
	if covers.set["n1"] != "/uploads/a.png" {
		t.Fatalf("covers = %v", covers.set)
	}
	if err := reg.Run(ctx, jobs.Job{Kind: jobs.KindComments, NoteID: "n1", Count: 3}); err != nil {
		t.Fatalf("comments job error = %v", err)
	}
	if comments.got != 3 {
		t.Fatalf("comments target = %d", comments.got)
	}

	unavailable := jobs.NewRegistry(logging.Discard())
	RegisterJobs(unavailable, fakeImages{err: imagegen.ErrUnavailable}, covers, comments, logging.Discard())
	if err := unavailable.Run(ctx, jobs.Job{Kind: jobs.KindCoverImage, NoteID: "n2"}); err != nil {
		t.Fatalf("unavailable cover job error = %v, want skipped", err)
	}
	if _, ok := covers.set["n2"]; ok {
		t.Fatal("cover set although image service unavailable")
	}

	timeout := jobs.NewRegistry(logging.Discard())
	RegisterJobs(timeout, fakeImages{err: imagegen.ErrTimeout}, covers, comments, logging.Discard())
	if err := timeout.Run(ctx, jobs.Job{Kind: jobs.KindCoverImage, NoteID: "n3"}); !errors.Is(err, imagegen.ErrTimeout) {
		t.Fatalf("timeout cover job error = %v", err)
	}
}
