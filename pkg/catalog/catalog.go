package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"AgentFeed/pkg/model"
)

//go:embed data
var embedded embed.FS

// ErrUnmappedCategory 分类没有对应的博主
var ErrUnmappedCategory = errors.New("分类没有对应的博主")

// CategoryMapping 分类ID、别名与博主的映射
type CategoryMapping struct {
	ID      string   `yaml:"id"`
	Creator string   `yaml:"creator"`
	Aliases []string `yaml:"aliases"`
}

// Catalog 启动时加载一次的静态内容配置，加载后只读
type Catalog struct {
	profiles   []model.CategoryProfile
	style      model.StyleGuide
	creators   []model.Creator
	references map[string][]model.ReferenceArticle
	mappings   []CategoryMapping

	// 别名 -> 规范分类ID
	canonical map[string]string
}

// Default 加载内置配置
func Default() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("读取内置配置失败: %w", err)
	}
	return Load(sub)
}

// LoadDir 从目录加载配置，dir 为空时使用内置配置
func LoadDir(dir string) (*Catalog, error) {
	if dir == "" {
		return Default()
	}
	return Load(os.DirFS(dir))
}

// Load 从文件系统加载并校验配置
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		references: make(map[string][]model.ReferenceArticle),
		canonical:  make(map[string]string),
	}

	if err := decode(fsys, "profiles.yaml", &c.profiles); err != nil {
		return nil, err
	}
	if err := decode(fsys, "style.yaml", &c.style); err != nil {
		return nil, err
	}
	if err := decode(fsys, "creators.yaml", &c.creators); err != nil {
		return nil, err
	}
	if err := decode(fsys, "aliases.yaml", &c.mappings); err != nil {
		return nil, err
	}

	for _, p := range c.profiles {
		name := path.Join("references", p.ID+".yaml")
		if _, err := fs.Stat(fsys, name); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		var refs []model.ReferenceArticle
		if err := decode(fsys, name, &refs); err != nil {
			return nil, err
		}
		c.references[p.ID] = refs
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decode(fsys fs.FS, name string, out any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", name, err)
	}
	return nil
}

// validate 检查别名表与博主名册的完整性
func (c *Catalog) validate() error {
	if len(c.profiles) == 0 {
		return fmt.Errorf("板块画像为空")
	}

	profileIDs := make(map[string]bool, len(c.profiles))
	for _, p := range c.profiles {
		if p.ID == "" {
			return fmt.Errorf("板块画像缺少ID: %s", p.Name)
		}
		if profileIDs[p.ID] {
			return fmt.Errorf("板块画像ID重复: %s", p.ID)
		}
		profileIDs[p.ID] = true
	}

	creatorIDs := make(map[string]bool, len(c.creators))
	for _, cr := range c.creators {
		creatorIDs[cr.ID] = true
	}

	mapped := make(map[string]bool)
	for _, m := range c.mappings {
		if !creatorIDs[m.Creator] {
			return fmt.Errorf("分类 %s 映射的博主 %s 不存在", m.ID, m.Creator)
		}
		for _, key := range append([]string{m.ID}, m.Aliases...) {
			if prev, ok := c.canonical[key]; ok && prev != m.ID {
				return fmt.Errorf("别名 %s 同时指向 %s 和 %s", key, prev, m.ID)
			}
			c.canonical[key] = m.ID
		}
		mapped[m.Creator] = true
	}

	for _, cr := range c.creators {
		if !mapped[cr.ID] {
			return fmt.Errorf("博主 %s 没有任何分类映射", cr.ID)
		}
		if _, ok := c.canonical[cr.Category]; !ok {
			return fmt.Errorf("博主 %s 的分类 %s 未在别名表中登记", cr.ID, cr.Category)
		}
	}
	return nil
}

// Profiles 所有板块画像，保持配置顺序
func (c *Catalog) Profiles() []model.CategoryProfile {
	return c.profiles
}

// Profile 按ID获取板块画像
func (c *Catalog) Profile(id string) *model.CategoryProfile {
	for i := range c.profiles {
		if c.profiles[i].ID == id {
			return &c.profiles[i]
		}
	}
	return nil
}

// Style 全局风格规范
func (c *Catalog) Style() model.StyleGuide {
	return c.style
}

// Creators 博主名册
func (c *Catalog) Creators() []model.Creator {
	return c.creators
}

// Creator 按ID获取博主
func (c *Catalog) Creator(id string) *model.Creator {
	for i := range c.creators {
		if c.creators[i].ID == id {
			return &c.creators[i]
		}
	}
	return nil
}

// References 板块参考文章的副本
func (c *Catalog) References(categoryID string) []model.ReferenceArticle {
	refs := c.references[categoryID]
	out := make([]model.ReferenceArticle, len(refs))
	copy(out, refs)
	return out
}

// CanonicalCategory 把中英文分类名解析为规范ID
func (c *Catalog) CanonicalCategory(key string) (string, bool) {
	id, ok := c.canonical[strings.TrimSpace(key)]
	return id, ok
}

// CreatorForCategory 通过别名表找到分类对应的博主
func (c *Catalog) CreatorForCategory(key string) (*model.Creator, error) {
	id, ok := c.CanonicalCategory(key)
	if !ok {
		return nil, fmt.Errorf("找不到分类 %s 对应的博主: %w", key, ErrUnmappedCategory)
	}
	for _, m := range c.mappings {
		if m.ID == id {
			return c.Creator(m.Creator), nil
		}
	}
	return nil, fmt.Errorf("找不到分类 %s 对应的博主: %w", key, ErrUnmappedCategory)
}
