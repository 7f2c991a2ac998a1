// pkg/imagegen/client.go
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTimeout      = 120 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	healthTimeout       = 5 * time.Second

	checkpoint = "zImageTurboAIO_zImageTurboFP8AIO.safetensors"
)

var (
	ErrUnavailable = errors.New("ComfyUI 服务不可用")
	ErrTimeout     = errors.New("图片生成超时")
	ErrNoImage     = errors.New("未生成图片")
)

// Options 客户端配置
type Options struct {
	BaseURL      string
	UploadsDir   string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client ComfyUI 客户端
type Client struct {
	baseURL      string
	uploadsDir   string
	timeout      time.Duration
	pollInterval time.Duration
	httpClient   *http.Client
	prompts      *PromptWriter
	logger       *slog.Logger
	now          func() time.Time
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		uploadsDir:   opts.UploadsDir,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
		now:          time.Now,
	}
}

// WithPromptWriter 使用大模型生成提示词
func (c *Client) WithPromptWriter(w *PromptWriter) *Client {
	c.prompts = w
	return c
}

// Health 5秒内 /system_stats 返回2xx视为可用
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/system_stats", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: 状态码 %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Generate 生成一张图片并保存到本地，返回 /uploads/ 下的访问路径
func (c *Client) Generate(ctx context.Context, title, category string, kind ImageType) (string, error) {
	if err := c.Health(ctx); err != nil {
		return "", err
	}

	prompt := c.prompts.Prompt(ctx, title, category, kind)
	c.logger.Debug("生成图片提示词", "type", kind, "prompt", prompt)

	promptID, err := c.queuePrompt(ctx, Workflow(prompt, rand.Int64N(1_000_000_000_000_000)))
	if err != nil {
		return "", err
	}
	c.logger.Info("已提交生成任务", "prompt_id", promptID)

	images, err := c.waitForCompletion(ctx, promptID)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", ErrNoImage
	}

	imageURL, err := c.download(ctx, images[0])
	if err != nil {
		return "", err
	}
	c.logger.Info("图片已保存", "url", imageURL)
	return imageURL, nil
}

type node struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
}

// Workflow 文生图工作流，cfg 固定 1.0，负面条件用 ConditioningZeroOut
func Workflow(prompt string, seed int64) map[string]node {
	return map[string]node{
		"1": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{"ckpt_name": checkpoint}},
		"2": {ClassType: "ModelSamplingAuraFlow", Inputs: map[string]any{"shift": 3.0, "model": []any{"1", 0}}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{"text": prompt, "clip": []any{"1", 1}}},
		"4": {ClassType: "ConditioningZeroOut", Inputs: map[string]any{"conditioning": []any{"3", 0}}},
		"5": {ClassType: "EmptyLatentImage", Inputs: map[string]any{"width": 1024, "height": 1024, "batch_size": 1}},
		"6": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seed,
			"steps":        9,
			"cfg":          1.0,
			"sampler_name": "res_multistep",
			"scheduler":    "simple",
			"denoise":      1.0,
			"model":        []any{"2", 0},
			"positive":     []any{"3", 0},
			"negative":     []any{"4", 0},
			"latent_image": []any{"5", 0},
		}},
		"7": {ClassType: "VAEDecode", Inputs: map[string]any{"samples": []any{"6", 0}, "vae": []any{"1", 2}}},
		"8": {ClassType: "SaveImage", Inputs: map[string]any{"filename_prefix": "xiaohongshu", "images": []any{"7", 0}}},
	}
}

func (c *Client) queuePrompt(ctx context.Context, workflow map[string]node) (string, error) {
	body, err := json.Marshal(map[string]any{
		"prompt":    workflow,
		"client_id": uuid.New().String(),
	})
	if err != nil {
		return "", fmt.Errorf("序列化工作流失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ComfyUI 提交失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ComfyUI 提交失败: %s", string(msg))
	}

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析提交结果失败: %w", err)
	}
	if result.PromptID == "" {
		return "", errors.New("ComfyUI 未返回任务ID")
	}
	return result.PromptID, nil
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []struct {
			Filename string `json:"filename"`
		} `json:"images"`
	} `json:"outputs"`
}

// waitForCompletion 轮询历史记录直到出现图片或超时
func (c *Client) waitForCompletion(ctx context.Context, promptID string) ([]string, error) {
	deadline := c.now().Add(c.timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for c.now().Before(deadline) {
		images, err := c.history(ctx, promptID)
		if err != nil {
			c.logger.Debug("查询任务历史失败", "prompt_id", promptID, "error", err)
		}
		if len(images) > 0 {
			return images, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, ErrTimeout
}

func (c *Client) history(ctx context.Context, promptID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("状态码 %d", resp.StatusCode)
	}

	var history map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, err
	}
	entry, ok := history[promptID]
	if !ok {
		return nil, nil
	}

	var images []string
	for _, out := range entry.Outputs {
		for _, img := range out.Images {
			images = append(images, img.Filename)
		}
	}
	return images, nil
}

// download 拉取图片写入上传目录
func (c *Client) download(ctx context.Context, filename string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?filename="+url.QueryEscape(filename), nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("下载图片失败: %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("下载图片失败: %s", filename)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取图片失败: %w", err)
	}

	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "png"
	}
	name := fmt.Sprintf("%d_%s.%s", c.now().UnixMilli(), uuid.New().String()[:8], ext)

	if err := os.MkdirAll(c.uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("创建上传目录失败: %w", err)
	}
	if err := os.WriteFile(filepath.Join(c.uploadsDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("保存图片失败: %w", err)
	}
	return "/uploads/" + name, nil
}
