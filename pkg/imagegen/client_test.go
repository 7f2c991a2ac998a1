package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"AgentFeed/pkg/logging"
)

type fakeComfy struct {
	polls      atomic.Int32
	readyAfter int32
	submitted  map[string]any
	healthCode int
}

func (f *fakeComfy) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/system_stats", func(w http.ResponseWriter, r *http.Request) {
		if f.healthCode != 0 {
			w.WriteHeader(f.healthCode)
			return
		}
		w.Write([]byte(`{"system":{}}`))
	})
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&f.submitted); err != nil {
			t.Errorf("decode submit body: %v", err)
		}
		w.Write([]byte(`{"prompt_id":"p-1","number":1}`))
	})
	mux.HandleFunc("/history/p-1", func(w http.ResponseWriter, r *http.Request) {
		if f.polls.Add(1) < f.readyAfter {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"p-1":{"outputs":{"8":{"images":[{"filename":"xiaohongshu_0001.png","type":"output"}]}}}}`))
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filename"); got != "xiaohongshu_0001.png" {
			t.Errorf("filename = %q", got)
		}
		w.Write([]byte("PNGDATA"))
	})
	return mux
}

func newTestClient(baseURL, dir string, timeout time.Duration) *Client {
	return NewClient(Options{
		BaseURL:      baseURL,
		UploadsDir:   dir,
		Timeout:      timeout,
		PollInterval: 5 * time.Millisecond,
	}, logging.Discard())
}

func TestGenerateSavesImage(t *testing.T) {
	fake := &fakeComfy{readyAfter: 3}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(srv.URL, dir, time.Second)

	imageURL, err := c.Generate(context.Background(), "冬季嘴唇干裂起皮", "beauty", ImageCover)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.HasPrefix(imageURL, "/uploads/") || !strings.HasSuffix(imageURL, ".png") {
		t.Fatalf("Generate() = %q", imageURL)
	}

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(imageURL, "/uploads/")))
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if string(data) != "PNGDATA" {
		t.Fatalf("saved image = %q", data)
	}
	if fake.polls.Load() < 3 {
		t.Fatalf("polls = %d, want >= 3", fake.polls.Load())
	}

	if fake.submitted["client_id"] == "" {
		t.Fatal("client_id missing")
	}
	prompt := fake.submitted["prompt"].(map[string]any)
	text := prompt["3"].(map[string]any)["inputs"].(map[string]any)["text"].(string)
	if !strings.Contains(text, "lip balm") {
		t.Fatalf("prompt text = %q", text)
	}
}

func TestGenerateTimeout(t *testing.T) {
	fake := &fakeComfy{readyAfter: 1 << 30}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, t.TempDir(), 50*time.Millisecond)
	_, err := c.Generate(context.Background(), "通勤穿搭", "fashion", ImageCover)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Generate() error = %v, want ErrTimeout", err)
	}
}

func TestGenerateUnavailable(t *testing.T) {
	fake := &fakeComfy{healthCode: http.StatusServiceUnavailable}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestClient(srv.URL, t.TempDir(), time.Second)
	_, err := c.Generate(context.Background(), "x", "beauty", ImageCover)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Generate() error = %v, want ErrUnavailable", err)
	}
	if fake.submitted != nil {
		t.Fatal("workflow submitted although service unavailable")
	}
}

func TestHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(url, t.TempDir(), time.Second)
	if err := c.Health(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Health() error = %v, want ErrUnavailable", err)
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		category string
		kind     ImageType
		want     string
	}{
		{"keyword order", "冬季嘴唇干裂", "beauty", ImageCover, "skincare product photography, lip balm and lip care products"},
		{"fallback subject", "随便聊聊", "food", ImageDetail, "food ingredient close-up, fresh ingredients"},
		{"unknown category", "随便聊聊", "pets", ImageScene, "lifestyle scene, cozy atmosphere"},
		{"tech keyword", "iPhone 16 Pro使用体验", "tech", ImageCover, "iPhone on marble surface"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPrompt(tt.title, tt.category, tt.kind)
			if !strings.Contains(got, tt.want) {
				t.Errorf("BuildPrompt() = %q, want it to contain %q", got, tt.want)
			}
			if !strings.HasSuffix(got, "no face, no portrait") {
				t.Errorf("BuildPrompt() missing suffix: %q", got)
			}
		})
	}
}
