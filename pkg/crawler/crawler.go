// pkg/crawler/crawler.go
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"AgentFeed/pkg/config"
	"AgentFeed/pkg/model"
)

// Source 热榜来源
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.TopicCandidate, error)
}

// Ingester 候选话题入库
type Ingester interface {
	Ingest(ctx context.Context, candidates []model.TopicCandidate) (int, error)
}

var heatExpr = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([万wW亿]?)`)

// HTMLSource 从热榜页面按选择器提取话题
type HTMLSource struct {
	cfg    config.CrawlerSource
	client *http.Client
}

func NewHTMLSource(cfg config.CrawlerSource, client *http.Client) *HTMLSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if cfg.TitleSelector == "" {
		cfg.TitleSelector = ".title"
	}
	return &HTMLSource{cfg: cfg, client: client}
}

func (h *HTMLSource) Name() string {
	return h.cfg.Name
}

// Fetch 抓取并按热度降序返回
func (h *HTMLSource) Fetch(ctx context.Context) ([]model.TopicCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "AgentFeed/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求热榜失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("热榜返回 %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析页面失败: %w", err)
	}
	return h.extract(doc), nil
}

func (h *HTMLSource) extract(doc *goquery.Document) []model.TopicCandidate {
	var topics []model.TopicCandidate
	seen := map[string]struct{}{}

	doc.Find(h.cfg.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(item.Find(h.cfg.TitleSelector).First().Text())
		if title == "" {
			return
		}
		if _, ok := seen[title]; ok {
			return
		}
		seen[title] = struct{}{}

		category := h.cfg.Category
		if h.cfg.CategoryAttr != "" {
			if v, ok := item.Attr(h.cfg.CategoryAttr); ok && strings.TrimSpace(v) != "" {
				category = strings.TrimSpace(v)
			}
		}

		heat := 0
		if h.cfg.HeatSelector != "" {
			heat = ParseHeat(item.Find(h.cfg.HeatSelector).First().Text())
		}

		topics = append(topics, model.TopicCandidate{
			Title:     title,
			Category:  category,
			HeatScore: heat,
			Source:    h.cfg.Name,
		})
	})

	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].HeatScore > topics[j].HeatScore
	})
	return topics
}

// ParseHeat 解析 "3.2万"、"8765 热度" 这类热度文本
func ParseHeat(text string) int {
	m := heatExpr.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch m[2] {
	case "万", "w", "W":
		v *= 10_000
	case "亿":
		v *= 100_000_000
	}
	return int(v)
}

// Crawler 依次抓取所有来源并入库
type Crawler struct {
	sources []Source
	store   Ingester
	logger  *slog.Logger
}

func New(store Ingester, logger *slog.Logger, sources ...Source) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{sources: sources, store: store, logger: logger}
}

// FromConfig 按配置创建 HTML 来源
func FromConfig(cfg *config.Config) []Source {
	sources := make([]Source, 0, len(cfg.Crawler.Sources))
	for _, s := range cfg.Crawler.Sources {
		sources = append(sources, NewHTMLSource(s, nil))
	}
	return sources
}

// Run 单个来源失败只记录日志；全部失败时返回错误
func (c *Crawler) Run(ctx context.Context) (int, error) {
	if len(c.sources) == 0 {
		c.logger.Warn("未配置热榜来源，跳过抓取")
		return 0, nil
	}

	var errs []error
	total := 0
	for _, src := range c.sources {
		topics, err := src.Fetch(ctx)
		if err != nil {
			c.logger.Warn("抓取热榜失败", "source", src.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}

		inserted, err := c.store.Ingest(ctx, topics)
		if err != nil {
			return total, fmt.Errorf("保存热点话题失败: %w", err)
		}
		total += inserted
		c.logger.Info("抓取热点话题完成", "source", src.Name(), "fetched", len(topics), "inserted", inserted)
	}

	if len(errs) == len(c.sources) {
		return 0, errors.Join(errs...)
	}
	return total, nil
}
