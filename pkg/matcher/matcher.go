package matcher

import (
	"strings"
	"time"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/model"
)

const (
	nameScore    = 20
	keywordScore = 10
	edgeBonus    = 5
)

// Matcher 根据关键词把话题匹配到板块和细分话题
type Matcher struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// New 创建匹配器
func New(c *catalog.Catalog) *Matcher {
	return &Matcher{catalog: c, now: time.Now}
}

// WithClock 替换时钟，用于季节相关的查询
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	m.now = now
	return m
}

// keywordScoreOf 计算话题与一组关键词的匹配分数
func keywordScoreOf(topic string, keywords []string) int {
	lower := strings.ToLower(topic)
	score := 0
	for _, kw := range keywords {
		k := strings.ToLower(kw)
		if k == "" || !strings.Contains(lower, k) {
			continue
		}
		score += keywordScore
		if strings.HasPrefix(lower, k) || strings.HasSuffix(lower, k) {
			score += edgeBonus
		}
	}
	return score
}

// CategoryScore 话题对某个板块的得分
func CategoryScore(topic string, p *model.CategoryProfile) int {
	score := 0
	if (p.Name != "" && strings.Contains(topic, p.Name)) ||
		(p.Nickname != "" && strings.Contains(topic, p.Nickname)) {
		score += nameScore
	}
	for _, st := range p.SubTopics {
		score += keywordScoreOf(topic, st.Keywords)
	}
	score += keywordScoreOf(topic, p.ReaderPsychology.TriggerPoints)
	return score
}

// MatchCategory 返回得分最高的板块，同分取配置中靠前的，零分返回nil
func (m *Matcher) MatchCategory(topic string) *model.CategoryProfile {
	profiles := m.catalog.Profiles()
	var best *model.CategoryProfile
	bestScore := 0
	for i := range profiles {
		if score := CategoryScore(topic, &profiles[i]); score > bestScore {
			bestScore = score
			best = &profiles[i]
		}
	}
	return best
}

// MatchSubTopic 在指定板块（为空时在全部板块）内匹配细分话题
func (m *Matcher) MatchSubTopic(topic, categoryID string) *model.SubTopic {
	profiles := m.catalog.Profiles()
	var best *model.SubTopic
	bestScore := 0
	for i := range profiles {
		if categoryID != "" && profiles[i].ID != categoryID {
			continue
		}
		subs := profiles[i].SubTopics
		for j := range subs {
			if score := keywordScoreOf(topic, subs[j].Keywords); score > bestScore {
				bestScore = score
				best = &subs[j]
			}
		}
	}
	return best
}

// CurrentSeason 按月份判断季节
func CurrentSeason(t time.Time) model.Season {
	switch t.Month() {
	case time.March, time.April, time.May:
		return model.Spring
	case time.June, time.July, time.August:
		return model.Summer
	case time.September, time.October, time.November:
		return model.Autumn
	default:
		return model.Winter
	}
}

// Season 当前季节
func (m *Matcher) Season() model.Season {
	return CurrentSeason(m.now())
}

// SeasonalTopics 板块的当季话题
func (m *Matcher) SeasonalTopics(categoryID string) []string {
	p := m.catalog.Profile(categoryID)
	if p == nil {
		return nil
	}
	return p.SeasonalTopics.For(m.Season())
}

// ExampleTitles 板块的示例标题
func (m *Matcher) ExampleTitles(categoryID string) []string {
	if p := m.catalog.Profile(categoryID); p != nil {
		return p.ExampleTitles
	}
	return nil
}

// SubTopics 板块的全部细分话题
func (m *Matcher) SubTopics(categoryID string) []model.SubTopic {
	if p := m.catalog.Profile(categoryID); p != nil {
		return p.SubTopics
	}
	return nil
}

// CategorySummary 板块列表项
type CategorySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Categories 全部板块列表
func (m *Matcher) Categories() []CategorySummary {
	profiles := m.catalog.Profiles()
	out := make([]CategorySummary, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, CategorySummary{ID: p.ID, Name: p.Name, Icon: p.Icon})
	}
	return out
}

// Suggestions 话题建议
type Suggestions struct {
	Seasonal  []string         `json:"seasonal"`
	Examples  []string         `json:"examples"`
	SubTopics []model.SubTopic `json:"sub_topics"`
}

// Suggest 汇总某个板块的话题建议
func (m *Matcher) Suggest(categoryID string) Suggestions {
	return Suggestions{
		Seasonal:  m.SeasonalTopics(categoryID),
		Examples:  m.ExampleTitles(categoryID),
		SubTopics: m.SubTopics(categoryID),
	}
}
