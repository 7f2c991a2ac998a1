package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// ChunkType 流式片段类型
type ChunkType string

const (
	ChunkText  ChunkType = "text"
	ChunkError ChunkType = "error"
	ChunkDone  ChunkType = "done"
)

// Chunk 流式输出的一个片段
type Chunk struct {
	Type    ChunkType `json:"type"`
	Content string    `json:"content"`
}

// Message 表示对话中的一条消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 一次生成请求
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

type systemBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// messagesRequest 表示 /v1/messages 请求体
type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    []systemBlock `json:"system,omitempty"`
	Messages  []Message     `json:"messages"`
	Stream    bool          `json:"stream"`
}

// streamEvent SSE 事件中的 data 负载
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Streamer 流式文本生成
type Streamer interface {
	Stream(ctx context.Context, req Request) iter.Seq[Chunk]
}

// Client 大模型流式客户端
type Client struct {
	apiURL    string
	apiKey    string
	modelName string
	client    *http.Client
}

// NewClient 创建新的大模型客户端
func NewClient(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		apiURL:    strings.TrimRight(baseURL, "/") + "/v1/messages",
		apiKey:    apiKey,
		modelName: modelName,
		client:    &http.Client{Timeout: timeout},
	}
}

// Stream 发起一次流式请求，返回只能遍历一次的片段序列
// 传输失败或非2xx响应只产生一个 error 片段，不重试
func (c *Client) Stream(ctx context.Context, req Request) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		resp, err := c.send(ctx, req)
		if err != nil {
			yield(Chunk{Type: ChunkError, Content: err.Error()})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(resp.Body)
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = resp.Status
			}
			yield(Chunk{Type: ChunkError, Content: fmt.Sprintf("API返回错误(%d): %s", resp.StatusCode, msg)})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "" || data == "[DONE]" {
				continue
			}

			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				// 无法解析的帧直接跳过
				continue
			}

			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					if !yield(Chunk{Type: ChunkText, Content: ev.Delta.Text}) {
						return
					}
				}
			case "error":
				yield(Chunk{Type: ChunkError, Content: ev.Error.Message})
				return
			case "message_stop":
				yield(Chunk{Type: ChunkDone})
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Chunk{Type: ChunkError, Content: fmt.Sprintf("读取响应失败: %v", err)})
			return
		}
		yield(Chunk{Type: ChunkDone})
	}
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	body := messagesRequest{
		Model:     c.modelName,
		MaxTokens: req.MaxTokens,
		Messages:  req.Messages,
		Stream:    true,
	}
	if req.System != "" {
		body.System = []systemBlock{{Type: "text", Text: req.System}}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	return resp, nil
}

// Collect 读完整个流并拼接文本，遇到 error 片段时返回错误
func Collect(seq iter.Seq[Chunk]) (string, error) {
	var sb strings.Builder
	for chunk := range seq {
		switch chunk.Type {
		case ChunkText:
			sb.WriteString(chunk.Content)
		case ChunkError:
			return sb.String(), fmt.Errorf("生成失败: %s", chunk.Content)
		}
	}
	return sb.String(), nil
}
