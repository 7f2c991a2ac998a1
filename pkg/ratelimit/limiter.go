// pkg/ratelimit/limiter.go
package ratelimit

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	ActionPost    = "post"
	ActionComment = "comment"
	ActionDefault = "default"

	staleAfter = time.Hour
)

// Rule 单个动作的限流规则
type Rule struct {
	Window      time.Duration
	MaxRequests int
}

// DefaultRules 默认规则：发帖每小时5次，评论每分钟20次，其余每分钟60次
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ActionPost:    {Window: time.Hour, MaxRequests: 5},
		ActionComment: {Window: time.Minute, MaxRequests: 20},
		ActionDefault: {Window: time.Minute, MaxRequests: 60},
	}
}

// Result 限流判定结果
type Result struct {
	Allowed    bool `json:"allowed"`
	RetryAfter int  `json:"retry_after,omitempty"`
}

// Limiter 按 标识:动作 计数的滑动窗口限流器，进程重启后状态清空
type Limiter struct {
	mu      sync.Mutex
	rules   map[string]Rule
	windows map[string][]time.Time
	now     func() time.Time
	logger  *slog.Logger
}

func New(rules map[string]Rule, logger *slog.Logger) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	if _, ok := rules[ActionDefault]; !ok {
		rules[ActionDefault] = DefaultRules()[ActionDefault]
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		rules:   rules,
		windows: make(map[string][]time.Time),
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock 替换时钟
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) rule(action string) Rule {
	if r, ok := l.rules[action]; ok {
		return r
	}
	return l.rules[ActionDefault]
}

// Check 判断一次请求是否放行，放行时记入窗口
func (l *Limiter) Check(identifier, action string) Result {
	rule := l.rule(action)
	key := identifier + ":" + action
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.windows[key][:0:0]
	for _, ts := range l.windows[key] {
		if now.Sub(ts) < rule.Window {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rule.MaxRequests {
		l.windows[key] = recent
		wait := recent[0].Add(rule.Window).Sub(now)
		return Result{Allowed: false, RetryAfter: int(math.Ceil(wait.Seconds()))}
	}

	l.windows[key] = append(recent, now)
	return Result{Allowed: true}
}

// Sweep 删除所有记录都超过1小时的key，返回删除数量
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-staleAfter)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, stamps := range l.windows {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// Size 当前跟踪的key数量
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
