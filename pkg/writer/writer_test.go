package writer

import (
	"context"
	"iter"
	"reflect"
	"strings"
	"testing"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/llm"
	"AgentFeed/pkg/logging"
	"AgentFeed/pkg/matcher"
	"AgentFeed/pkg/prompt"
)

type fakeStreamer struct {
	chunks []llm.Chunk
	got    []llm.Request
}

func (f *fakeStreamer) Stream(_ context.Context, req llm.Request) iter.Seq[llm.Chunk] {
	f.got = append(f.got, req)
	return func(yield func(llm.Chunk) bool) {
		for _, c := range f.chunks {
			if !yield(c) {
				return
			}
		}
	}
}

func newWriter(t *testing.T, s llm.Streamer) *Writer {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	return New(c, prompt.NewBuilder(c, matcher.New(c)), s, logging.Discard())
}

func TestGenerateNoteStreamForwardsChunks(t *testing.T) {
	fake := &fakeStreamer{chunks: []llm.Chunk{
		{Type: llm.ChunkText, Content: "【标题】冬天"},
		{Type: llm.ChunkText, Content: "【正文】多喝水"},
		{Type: llm.ChunkDone},
	}}
	w := newWriter(t, fake)

	var got []llm.Chunk
	for c := range w.GenerateNoteStream(context.Background(), "xiaomei", "冬季嘴唇干裂起皮", Options{CategoryID: "beauty", IncludeReferences: true}) {
		got = append(got, c)
	}
	if !reflect.DeepEqual(got, fake.chunks) {
		t.Fatalf("chunks = %+v", got)
	}

	if len(fake.got) != 1 {
		t.Fatalf("stream requests = %d", len(fake.got))
	}
	req := fake.got[0]
	if req.MaxTokens != 2048 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "请写一篇关于「冬季嘴唇干裂起皮」的小红薯笔记" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if !strings.Contains(req.System, "小美爱护肤") || !strings.Contains(req.System, "【优秀文章参考】") {
		t.Errorf("system prompt not built from catalog:\n%s", req.System)
	}
}

func TestGenerateNoteStreamUnknownCreator(t *testing.T) {
	fake := &fakeStreamer{}
	w := newWriter(t, fake)

	var got []llm.Chunk
	for c := range w.GenerateNoteStream(context.Background(), "ghost", "话题", Options{}) {
		got = append(got, c)
	}
	if len(got) != 1 || got[0].Type != llm.ChunkError || got[0].Content != ErrCreatorNotFound {
		t.Fatalf("chunks = %+v", got)
	}
	if len(fake.got) != 0 {
		t.Fatal("streamer called for unknown creator")
	}
}

func TestParseNoteContent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ParsedNote
	}{
		{
			name: "all markers",
			raw:  "【标题】冬天嘴唇干裂怎么办💋\n\n【正文】\n姐妹们看过来\n第二段\n\n【标签】#护肤 #唇部护理 #冬季",
			want: ParsedNote{
				Title:   "冬天嘴唇干裂怎么办💋",
				Content: "姐妹们看过来\n第二段",
				Tags:    []string{"#护肤", "#唇部护理", "#冬季"},
			},
		},
		{
			name: "no markers",
			raw:  "just some text without structure",
			want: ParsedNote{Title: PlaceholderTitle, Content: "just some text without structure", Tags: []string{}},
		},
		{
			name: "missing tags",
			raw:  "【标题】标题\n【正文】正文内容",
			want: ParsedNote{Title: "标题", Content: "正文内容", Tags: []string{}},
		},
		{
			name: "missing body",
			raw:  "【标题】只有标题\n【标签】#a#b",
			want: ParsedNote{Title: "只有标题", Content: "【标题】只有标题\n【标签】#a#b", Tags: []string{"#a", "#b"}},
		},
		{
			name: "empty title",
			raw:  "【标题】   【正文】内容",
			want: ParsedNote{Title: PlaceholderTitle, Content: "内容", Tags: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseNoteContent(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseNoteContent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
