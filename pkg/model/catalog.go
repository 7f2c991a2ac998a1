// pkg/model/catalog.go
package model

// Season 季节
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// ReaderPsychology 目标读者心理画像
type ReaderPsychology struct {
	CoreNeeds     []string `yaml:"core_needs" json:"core_needs"`
	LikesToSee    []string `yaml:"likes_to_see" json:"likes_to_see"`
	DislikesToSee []string `yaml:"dislikes_to_see" json:"dislikes_to_see"`
	TriggerPoints []string `yaml:"trigger_points" json:"trigger_points"`
	TrustSignals  []string `yaml:"trust_signals" json:"trust_signals"`
}

// WritingStrategy 板块写作策略
type WritingStrategy struct {
	TitleFormulas    []string `yaml:"title_formulas" json:"title_formulas"`
	OpeningStyles    []string `yaml:"opening_styles" json:"opening_styles"`
	ContentStructure string   `yaml:"content_structure" json:"content_structure"`
	ClosingTips      string   `yaml:"closing_tips" json:"closing_tips"`
}

// SubTopic 细分话题
type SubTopic struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Keywords     []string `yaml:"keywords" json:"keywords"`
	SpecificTips string   `yaml:"specific_tips" json:"specific_tips"`
	Seasonality  string   `yaml:"seasonality" json:"seasonality"`
}

// SeasonalTopics 当季话题
type SeasonalTopics struct {
	Spring []string `yaml:"spring" json:"spring"`
	Summer []string `yaml:"summer" json:"summer"`
	Autumn []string `yaml:"autumn" json:"autumn"`
	Winter []string `yaml:"winter" json:"winter"`
}

// For 返回某季节的话题
func (s SeasonalTopics) For(season Season) []string {
	switch season {
	case Spring:
		return s.Spring
	case Summer:
		return s.Summer
	case Autumn:
		return s.Autumn
	default:
		return s.Winter
	}
}

// CategoryProfile 板块画像
type CategoryProfile struct {
	ID               string           `yaml:"id" json:"id"`
	Name             string           `yaml:"name" json:"name"`
	Nickname         string           `yaml:"nickname" json:"nickname"`
	Icon             string           `yaml:"icon" json:"icon"`
	ReaderPsychology ReaderPsychology `yaml:"reader_psychology" json:"reader_psychology"`
	WritingStrategy  WritingStrategy  `yaml:"writing_strategy" json:"writing_strategy"`
	ExampleTitles    []string         `yaml:"example_titles" json:"example_titles"`
	Taboos           []string         `yaml:"taboos" json:"taboos"`
	SubTopics        []SubTopic       `yaml:"sub_topics" json:"sub_topics"`
	SeasonalTopics   SeasonalTopics   `yaml:"seasonal_topics" json:"seasonal_topics"`
}

// SubTopic 按ID查找细分话题
func (p *CategoryProfile) SubTopic(id string) *SubTopic {
	for i := range p.SubTopics {
		if p.SubTopics[i].ID == id {
			return &p.SubTopics[i]
		}
	}
	return nil
}

// Creator 博主人设
type Creator struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Avatar   string `yaml:"avatar" json:"avatar"`
	Bio      string `yaml:"bio" json:"bio"`
	Persona  string `yaml:"persona" json:"persona"`
	Style    string `yaml:"style" json:"style"`
	Category string `yaml:"category" json:"category"`
}

// ReferenceMetrics 参考文章互动数据
type ReferenceMetrics struct {
	Likes    int `yaml:"likes" json:"likes"`
	Collects int `yaml:"collects" json:"collects"`
}

// Engagement 点赞与收藏之和
func (m ReferenceMetrics) Engagement() int {
	return m.Likes + m.Collects
}

const QualityExcellent = "excellent"

// ReferenceArticle 参考文章
type ReferenceArticle struct {
	Title       string           `yaml:"title" json:"title"`
	Content     string           `yaml:"content" json:"content"`
	SubTopic    string           `yaml:"sub_topic" json:"sub_topic"`
	Quality     string           `yaml:"quality" json:"quality"`
	KeyFeatures string           `yaml:"key_features" json:"key_features"`
	Metrics     ReferenceMetrics `yaml:"metrics" json:"metrics"`
}

// ForbiddenPattern 禁用句式
type ForbiddenPattern struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Alternative string `yaml:"alternative" json:"alternative"`
}

// EncouragedPattern 推荐句式
type EncouragedPattern struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Example string `yaml:"example" json:"example"`
}

// StyleGuide 全局风格规范
type StyleGuide struct {
	AntiAIDetection struct {
		ForbiddenPatterns  []ForbiddenPattern  `yaml:"forbidden_patterns" json:"forbidden_patterns"`
		EncouragedPatterns []EncouragedPattern `yaml:"encouraged_patterns" json:"encouraged_patterns"`
	} `yaml:"anti_ai_detection" json:"anti_ai_detection"`
}
