package prompt

import (
	"fmt"
	"sort"
	"strings"

	"AgentFeed/pkg/catalog"
	"AgentFeed/pkg/matcher"
	"AgentFeed/pkg/model"
)

const (
	DefaultMaxReferences = 2
	antiAIPatternLimit   = 4

	MarkerTitle   = "【标题】"
	MarkerContent = "【正文】"
	MarkerTags    = "【标签】"
)

// Options 构建提示词的参数
type Options struct {
	Creator           model.Creator
	Topic             string
	CategoryID        string
	SubTopicID        string
	IncludeReferences bool
	MaxReferences     int
}

// Builder 组装写作提示词，不访问网络
type Builder struct {
	catalog *catalog.Catalog
	matcher *matcher.Matcher
}

// NewBuilder 创建提示词构建器
func NewBuilder(c *catalog.Catalog, m *matcher.Matcher) *Builder {
	return &Builder{catalog: c, matcher: m}
}

// BuildSmartPrompt 按板块画像、细分话题和参考文章构建系统提示词
func (b *Builder) BuildSmartPrompt(opts Options) string {
	var profile *model.CategoryProfile
	if opts.CategoryID != "" {
		profile = b.catalog.Profile(opts.CategoryID)
	} else {
		profile = b.matcher.MatchCategory(opts.Topic)
	}
	if profile == nil {
		return SimplePrompt(opts.Creator)
	}

	var subTopic *model.SubTopic
	if opts.SubTopicID != "" {
		subTopic = profile.SubTopic(opts.SubTopicID)
	} else {
		subTopic = b.matcher.MatchSubTopic(opts.Topic, profile.ID)
	}

	var refs []model.ReferenceArticle
	if opts.IncludeReferences {
		subID := ""
		if subTopic != nil {
			subID = subTopic.ID
		}
		limit := opts.MaxReferences
		if limit <= 0 {
			limit = DefaultMaxReferences
		}
		refs = b.RelevantReferences(profile.ID, subID, limit)
	}

	sections := []string{
		personaHeader(opts.Creator),
		readerPsychologySection(profile),
		writingStrategySection(profile, subTopic),
		antiAISection(b.catalog.Style()),
		referencesSection(refs),
		taboosSection(profile),
		outputFormatSection(),
	}

	parts := sections[:0]
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// RelevantReferences 选取参考文章
// 有细分话题时先取匹配的，不足再按原顺序补充其他文章；否则按质量和互动数排序
func (b *Builder) RelevantReferences(categoryID, subTopicID string, limit int) []model.ReferenceArticle {
	refs := b.catalog.References(categoryID)
	if limit <= 0 {
		limit = DefaultMaxReferences
	}

	if subTopicID != "" {
		matched := make([]model.ReferenceArticle, 0, len(refs))
		others := make([]model.ReferenceArticle, 0, len(refs))
		for _, r := range refs {
			if r.SubTopic == subTopicID {
				matched = append(matched, r)
			} else {
				others = append(others, r)
			}
		}
		return truncate(append(matched, others...), limit)
	}

	sort.SliceStable(refs, func(i, j int) bool {
		ei := refs[i].Quality == model.QualityExcellent
		ej := refs[j].Quality == model.QualityExcellent
		if ei != ej {
			return ei
		}
		return refs[i].Metrics.Engagement() > refs[j].Metrics.Engagement()
	})
	return truncate(refs, limit)
}

func truncate(refs []model.ReferenceArticle, limit int) []model.ReferenceArticle {
	if len(refs) > limit {
		return refs[:limit]
	}
	return refs
}

func personaHeader(c model.Creator) string {
	return fmt.Sprintf("你是小红薯博主「%s」，%s\n\n写作风格：%s", c.Name, c.Persona, c.Style)
}

func readerPsychologySection(p *model.CategoryProfile) string {
	rp := p.ReaderPsychology
	return "【目标读者心理】\n" +
		"核心需求：" + strings.Join(rp.CoreNeeds, "、") + "\n" +
		"喜欢看到：" + strings.Join(rp.LikesToSee, "、") + "\n" +
		"不喜欢：" + strings.Join(rp.DislikesToSee, "、") + "\n" +
		"触发互动的关键词：" + strings.Join(rp.TriggerPoints, "、") + "\n" +
		"建立信任的信号：" + strings.Join(rp.TrustSignals, "、")
}

func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n")
}

func writingStrategySection(p *model.CategoryProfile, st *model.SubTopic) string {
	ws := p.WritingStrategy
	var sb strings.Builder
	sb.WriteString("【写作策略】\n标题公式参考：\n")
	sb.WriteString(numbered(ws.TitleFormulas))
	sb.WriteString("\n\n开头风格：\n")
	sb.WriteString(numbered(ws.OpeningStyles))
	sb.WriteString("\n\n内容结构：" + ws.ContentStructure)
	sb.WriteString("\n\n结尾技巧：" + ws.ClosingTips)

	if st != nil {
		sb.WriteString("\n\n【细分话题指导】\n")
		sb.WriteString("话题：" + st.Name + "\n")
		sb.WriteString("关键词：" + strings.Join(st.Keywords, "、") + "\n")
		sb.WriteString("专属技巧：" + st.SpecificTips)
	}
	return sb.String()
}

func antiAISection(style model.StyleGuide) string {
	rules := style.AntiAIDetection

	forbidden := make([]string, 0, antiAIPatternLimit)
	for i, p := range rules.ForbiddenPatterns {
		if i == antiAIPatternLimit {
			break
		}
		forbidden = append(forbidden, fmt.Sprintf("- 禁止：「%s」→ %s", p.Pattern, p.Alternative))
	}

	encouraged := make([]string, 0, antiAIPatternLimit)
	for i, p := range rules.EncouragedPatterns {
		if i == antiAIPatternLimit {
			break
		}
		encouraged = append(encouraged, fmt.Sprintf("- 推荐：%s，如「%s」", p.Pattern, p.Example))
	}

	return "【反AI检测规范】\n" +
		strings.Join(forbidden, "\n") + "\n\n" +
		strings.Join(encouraged, "\n") + "\n\n" +
		"句子长短要有变化，避免整齐划一\n" +
		"第一人称每段不超过3次，可用「姐妹们」「宝子们」替代"
}

func referencesSection(refs []model.ReferenceArticle) string {
	if len(refs) == 0 {
		return ""
	}
	examples := make([]string, len(refs))
	for i, r := range refs {
		examples[i] = fmt.Sprintf("【参考文章%d】\n标题：%s\n正文：\n%s\n\n亮点分析：%s",
			i+1, r.Title, strings.TrimSpace(r.Content), r.KeyFeatures)
	}
	return "【优秀文章参考】\n以下是该领域的优秀文章示例，请学习其写作风格和技巧：\n\n" +
		strings.Join(examples, "\n\n")
}

func taboosSection(p *model.CategoryProfile) string {
	lines := make([]string, len(p.Taboos))
	for i, t := range p.Taboos {
		lines[i] = "- " + t
	}
	return "【写作禁忌】\n" + strings.Join(lines, "\n")
}

func outputFormatSection() string {
	return "【输出格式】\n请严格按以下格式输出：\n\n" +
		MarkerTitle + "你的标题（10-20字，可用emoji）\n\n" +
		MarkerContent + "\n你的正文内容...\n（口语化，分段清晰，适当使用emoji）\n\n" +
		MarkerTags + "#标签1 #标签2 #标签3 #标签4 #标签5"
}

// SimplePrompt 无法匹配板块时使用的简单模板
func SimplePrompt(c model.Creator) string {
	return personaHeader(c) + `

写作要求：
1. 标题：吸引眼球，可用emoji，10-20字
2. 开头：直接切入主题，不要"大家好"
3. 正文：口语化，分段清晰，适当使用emoji
4. 结尾：互动引导，如"姐妹们觉得呢？"
5. 标签：生成3-5个相关话题标签

输出格式（严格遵守）：
` + MarkerTitle + `你的标题
` + MarkerContent + `
你的正文内容...
` + MarkerTags + `#标签1 #标签2 #标签3

禁止：
- 过于官方的表达
- AI痕迹明显的句式（如"首先、其次、总之"）
- 虚假夸大的描述`
}
