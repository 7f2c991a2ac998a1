// pkg/comments/comments.go
package comments

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"AgentFeed/pkg/model"
)

const (
	maxContentRunes = 60
	maxGroups       = 2
	maxSingles      = 3
	groupSize       = 3

	groupPause  = time.Second
	singlePause = 800 * time.Millisecond

	avatarURL = "https://api.dicebear.com/7.x/thumbs/svg?seed=%s"
)

// Commenter 评论者人设
type Commenter struct {
	Nickname string
	Persona  string
}

// Commenters 独立评论使用的人设库
var Commenters = []Commenter{
	{"小仙女本仙", "大学生，爱美"},
	{"成分党研究员", "护肤成分爱好者"},
	{"打工人日记", "上班族"},
	{"宝妈小确幸", "宝妈"},
	{"学生党省钱", "学生"},
	{"精致猪猪女", "爱美女生"},
	{"懒人一枚", "追求简单"},
	{"吃货本货", "美食爱好者"},
	{"旅行青蛙", "旅行爱好者"},
	{"健身小白", "健身新手"},
	{"数码发烧友", "科技爱好者"},
	{"考研上岸er", "考研成功"},
	{"独居女孩", "独居"},
	{"干皮星人", "干性皮肤"},
	{"油皮姐妹", "油性皮肤"},
	{"敏感肌宝宝", "敏感肌"},
	{"小个子穿搭", "155cm"},
	{"微胖女孩", "微胖"},
}

// Completer 单轮文本补全
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NoteStore 评论服务需要的笔记操作
type NoteStore interface {
	Get(ctx context.Context, id string) (*model.Note, error)
	RefreshCommentCount(ctx context.Context, id string) (int64, error)
}

// CommentStore 评论写入
type CommentStore interface {
	Create(ctx context.Context, comment *model.Comment) error
}

// Service 为笔记生成带回复关系的合成评论
type Service struct {
	completer Completer
	notes     NoteStore
	comments  CommentStore
	logger    *slog.Logger
	rand      *rand.Rand
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewService(completer Completer, notes NoteStore, comments CommentStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		completer: completer,
		notes:     notes,
		comments:  comments,
		logger:    logger,
		rand:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		sleep:     sleepCtx,
	}
}

// WithPacing 替换请求间的等待函数
func (s *Service) WithPacing(sleep func(ctx context.Context, d time.Duration) error) *Service {
	s.sleep = sleep
	return s
}

// WithRand 固定随机源
func (s *Service) WithRand(r *rand.Rand) *Service {
	s.rand = r
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Draft 解析出的一条评论，ReplyTo 非空表示回复
type Draft struct {
	Nickname string
	Content  string
	ReplyTo  string
}

// AddAIComments 先生成1到2组对话，再补充独立评论，最后刷新评论数
func (s *Service) AddAIComments(ctx context.Context, noteID string, target int) (int, error) {
	note, err := s.notes.Get(ctx, noteID)
	if err != nil {
		return 0, err
	}

	added := 0
	groups := min(maxGroups, int(math.Ceil(float64(target)/groupSize)))

	for i := 0; i < groups; i++ {
		s.logger.Info("生成评论对话", "note_id", noteID, "group", i+1)

		var mainID string
		for _, d := range s.generateGroup(ctx, note) {
			c := s.newComment(noteID, d.Nickname, s.rand.IntN(30))
			if d.ReplyTo != "" && mainID != "" {
				c.Content = fmt.Sprintf("回复 @%s：%s", d.ReplyTo, d.Content)
				c.ParentID = &mainID
			} else {
				c.Content = d.Content
				mainID = c.ID
			}
			if err := s.comments.Create(ctx, c); err != nil {
				return added, err
			}
			added++
		}

		if err := s.sleep(ctx, groupPause); err != nil {
			return added, err
		}
	}

	remaining := target - added
	for i := 0; i < remaining && i < maxSingles; i++ {
		commenter := Commenters[s.rand.IntN(len(Commenters))]
		s.logger.Info("生成独立评论", "note_id", noteID, "commenter", commenter.Nickname)

		if content := s.generateSingle(ctx, note, commenter); content != "" {
			c := s.newComment(noteID, commenter.Nickname, s.rand.IntN(20))
			c.Content = content
			if err := s.comments.Create(ctx, c); err != nil {
				return added, err
			}
			added++
		}

		if err := s.sleep(ctx, singlePause); err != nil {
			return added, err
		}
	}

	if _, err := s.notes.RefreshCommentCount(ctx, noteID); err != nil {
		return added, err
	}
	return added, nil
}

func (s *Service) newComment(noteID, nickname string, likes int) *model.Comment {
	id := uuid.New().String()
	return &model.Comment{
		ID:         id,
		NoteID:     noteID,
		UserName:   nickname,
		UserAvatar: fmt.Sprintf(avatarURL, id),
		IsAI:       true,
		Likes:      likes,
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// GroupPrompt 主评论加两条回复
func GroupPrompt(title, content string) string {
	return fmt.Sprintf(`你是小红书用户。请为下面这篇笔记写3条短评论。

笔记标题：%s
笔记内容：%s...

要求：
1. 第1条是主评论，第2-3条是对第1条的回复
2. 每条评论15-35字，不能超过40字
3. 口语化，像真人随手打的
4. 可以用1-2个emoji

请严格按以下格式返回（每行一条，用|分隔昵称和内容）：
昵称1|主评论内容
昵称2|回复内容1
昵称3|回复内容2`, title, excerpt(content, 150))
}

// SinglePrompt 以某个人设写一条独立评论
func SinglePrompt(title, content string, c Commenter) string {
	return fmt.Sprintf(`你是"%s"（%s），请为这篇小红书笔记写一条短评论。

笔记标题：%s
笔记内容：%s...

要求：15-35字，口语化，可用1-2个emoji。只返回评论内容，不要其他任何文字。`, c.Nickname, c.Persona, title, excerpt(content, 100))
}

func (s *Service) generateGroup(ctx context.Context, note *model.Note) []Draft {
	result, err := s.completer.Complete(ctx, GroupPrompt(note.Title, note.Content))
	if err != nil {
		s.logger.Warn("生成评论对话失败", "note_id", note.ID, "error", err)
		return nil
	}
	return ParseGroup(result)
}

// ParseGroup 解析 昵称|内容 格式，最多取三行，第一条之后都是对第一条的回复
func ParseGroup(result string) []Draft {
	var lines []string
	for _, line := range strings.Split(result, "\n") {
		if strings.Contains(line, "|") {
			lines = append(lines, line)
		}
	}

	var drafts []Draft
	for i := 0; i < len(lines) && i < groupSize; i++ {
		parts := strings.Split(lines[i], "|")
		nickname := strings.TrimSpace(parts[0])
		content := strings.TrimSpace(parts[1])
		if nickname == "" || content == "" || utf8.RuneCountInString(content) > maxContentRunes {
			continue
		}
		d := Draft{Nickname: nickname, Content: content}
		if i > 0 && len(drafts) > 0 {
			d.ReplyTo = drafts[0].Nickname
		}
		drafts = append(drafts, d)
	}
	return drafts
}

func (s *Service) generateSingle(ctx context.Context, note *model.Note, c Commenter) string {
	result, err := s.completer.Complete(ctx, SinglePrompt(note.Title, note.Content, c))
	if err != nil {
		s.logger.Warn("生成独立评论失败", "note_id", note.ID, "error", err)
		return ""
	}
	return CleanSingle(result)
}

// CleanSingle 超长返回空，去掉首尾引号
func CleanSingle(result string) string {
	result = strings.TrimSpace(result)
	if result == "" || utf8.RuneCountInString(result) > maxContentRunes {
		return ""
	}
	result = strings.TrimPrefix(result, `"`)
	result = strings.TrimPrefix(result, `'`)
	result = strings.TrimSuffix(result, `"`)
	result = strings.TrimSuffix(result, `'`)
	return strings.TrimSpace(result)
}
