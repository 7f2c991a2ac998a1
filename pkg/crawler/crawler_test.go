package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"AgentFeed/pkg/config"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/model"
)

const hotPage = `<html><body>
<ul class="hot-list">
  <li data-category="beauty"><span class="title">冬季嘴唇干裂起皮怎么办</span><span class="heat">3.2万</span></li>
  <li data-category="旅行"><span class="title"> 哈尔滨冰雪大世界攻略 </span><span class="heat">8,765</span></li>
  <li><span class="title">开学季宿舍神器美食</span><span class="heat">120万热度</span></li>
  <li data-category="beauty"><span class="title">冬季嘴唇干裂起皮怎么办</span><span class="heat">10</span></li>
  <li><span class="title"></span><span class="heat">99</span></li>
</ul>
</body></html>`

func testSource(url string) config.CrawlerSource {
	return config.CrawlerSource{
		Name:          "xiaohongshu",
		URL:           url,
		ItemSelector:  "ul.hot-list > li",
		TitleSelector: ".title",
		HeatSelector:  ".heat",
		Category:      "food",
		CategoryAttr:  "data-category",
	}
}

func TestHTMLSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(hotPage))
	}))
	defer srv.Close()

	topics, err := NewHTMLSource(testSource(srv.URL), srv.Client()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := []model.TopicCandidate{
		{Title: "开学季宿舍神器美食", Category: "food", HeatScore: 1_200_000, Source: "xiaohongshu"},
		{Title: "冬季嘴唇干裂起皮怎么办", Category: "beauty", HeatScore: 32_000, Source: "xiaohongshu"},
		{Title: "哈尔滨冰雪大世界攻略", Category: "旅行", HeatScore: 8765, Source: "xiaohongshu"},
	}
	if len(topics) != len(want) {
		t.Fatalf("Fetch() = %+v, want %+v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topics[%d] = %+v, want %+v", i, topics[i], want[i])
		}
	}
}

func TestHTMLSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := NewHTMLSource(testSource(srv.URL), srv.Client()).Fetch(context.Background()); err == nil {
		t.Fatal("Fetch() error = nil, want error")
	}
}

func TestParseHeat(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3.2万", 32_000},
		{"8,765", 8765},
		{"1.5亿", 150_000_000},
		{"12w", 120_000},
		{"热度 640", 640},
		{"", 0},
		{"暂无", 0},
	}
	for _, tt := range tests {
		if got := ParseHeat(tt.in); got != tt.want {
			t.Errorf("ParseHeat(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

type fakeSource struct {
	name   string
	topics []model.TopicCandidate
	err    error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Fetch(context.Context) ([]model.TopicCandidate, error) {
	return f.topics, f.err
}

type fakeIngester struct {
	got []model.TopicCandidate
}

func (f *fakeIngester) Ingest(_ context.Context, c []model.TopicCandidate) (int, error) {
	f.got = append(f.got, c...)
	return len(c), nil
}

func TestCrawlerRun(t *testing.T) {
	store := &fakeIngester{}
	c := New(store, logging.Discard(),
		fakeSource{name: "down", err: context.DeadlineExceeded},
		fakeSource{name: "ok", topics: []model.TopicCandidate{{Title: "a"}, {Title: "b"}}},
	)

	n, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 2 || len(store.got) != 2 {
		t.Fatalf("Run() = %d, ingested %d, want 2", n, len(store.got))
	}

	allDown := New(store, logging.Discard(), fakeSource{name: "down", err: context.DeadlineExceeded})
	if _, err := allDown.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil when every source failed")
	}
}
