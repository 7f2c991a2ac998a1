package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres | sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		SSLMode  string `yaml:"sslmode"`
		Path     string `yaml:"path"` // sqlite 文件路径
	} `yaml:"database"`

	LLM struct {
		BaseURL   string        `yaml:"base_url"`
		APIKey    string        `yaml:"api_key"`
		Model     string        `yaml:"model"`
		MaxTokens int           `yaml:"max_tokens"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Comments struct {
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		PerNote     int     `yaml:"per_note"`
	} `yaml:"comments"`

	ComfyUI struct {
		BaseURL      string        `yaml:"base_url"`
		Timeout      time.Duration `yaml:"timeout"`
		PollInterval time.Duration `yaml:"poll_interval"`
		UploadsDir   string        `yaml:"uploads_dir"`
	} `yaml:"comfyui"`

	NATS struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
	} `yaml:"nats"`

	API struct {
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"api"`

	Scheduler struct {
		Tick              time.Duration `yaml:"tick"`
		CrawlInterval     time.Duration `yaml:"crawl_interval"`
		GenerateInterval  time.Duration `yaml:"generate_interval"`
		CleanInterval     time.Duration `yaml:"clean_interval"`
		SweepInterval     time.Duration `yaml:"sweep_interval"`
		AutoGenerateLimit int           `yaml:"auto_generate_limit"`
		TopicDelay        time.Duration `yaml:"topic_delay"`
	} `yaml:"scheduler"`

	Crawler struct {
		Sources []CrawlerSource `yaml:"sources"`
	} `yaml:"crawler"`

	Catalog struct {
		Dir string `yaml:"dir"` // 为空时使用内置目录
	} `yaml:"catalog"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// CrawlerSource 热榜页面抓取配置
type CrawlerSource struct {
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	ItemSelector  string `yaml:"item_selector"`
	TitleSelector string `yaml:"title_selector"`
	HeatSelector  string `yaml:"heat_selector"`
	Category      string `yaml:"category"`      // 页面整体所属分类
	CategoryAttr  string `yaml:"category_attr"` // 条目上的分类属性
}

// Default 返回带默认值的配置
func Default() *Config {
	var c Config
	c.App.Name = "agentfeed"
	c.App.Env = "dev"

	c.Database.Driver = "sqlite"
	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.SSLMode = "disable"
	c.Database.Path = "data/agentfeed.db"

	c.LLM.BaseURL = "https://api.anthropic.com"
	c.LLM.Model = "claude-sonnet-4-5-20250929"
	c.LLM.MaxTokens = 2048
	c.LLM.Timeout = 5 * time.Minute

	c.Comments.Model = "claude-sonnet-4-5-20250929"
	c.Comments.MaxTokens = 200
	c.Comments.Temperature = 0.9
	c.Comments.PerNote = 3

	c.ComfyUI.BaseURL = "http://127.0.0.1:8188"
	c.ComfyUI.Timeout = 120 * time.Second
	c.ComfyUI.PollInterval = 500 * time.Millisecond
	c.ComfyUI.UploadsDir = "public/uploads"

	c.NATS.URL = "nats://127.0.0.1:4222"

	c.API.Port = "8080"
	c.API.ReadTimeout = 15 * time.Second
	c.API.WriteTimeout = 15 * time.Second

	c.Scheduler.Tick = 60 * time.Second
	c.Scheduler.CrawlInterval = time.Hour
	c.Scheduler.GenerateInterval = 30 * time.Minute
	c.Scheduler.CleanInterval = 24 * time.Hour
	c.Scheduler.SweepInterval = 5 * time.Minute
	c.Scheduler.AutoGenerateLimit = 3
	c.Scheduler.TopicDelay = 2 * time.Second

	c.Log.Level = "info"
	c.Log.Format = "text"
	return &c
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 在默认值之上解析YAML
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	overrideFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOrDefault 配置文件不存在时退回默认配置
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		config := Default()
		overrideFromEnv(config)
		return config, config.Validate()
	}
	return LoadConfig(path)
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Scheduler.Tick <= 0 {
		return fmt.Errorf("调度周期必须大于0")
	}
	if c.Scheduler.AutoGenerateLimit <= 0 {
		return fmt.Errorf("auto_generate_limit 必须大于0")
	}
	return nil
}

// DSN 构建 postgres 连接字符串
func (c *Config) DSN() string {
	db := c.Database
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.User, db.Password, db.DBName, db.SSLMode,
	)
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	setString := func(key string, dst *string) {
		if env := os.Getenv(key); env != "" {
			*dst = env
		}
	}

	setString("APP_NAME", &config.App.Name)
	setString("APP_ENV", &config.App.Env)

	// 数据库配置
	setString("DB_DRIVER", &config.Database.Driver)
	setString("DB_HOST", &config.Database.Host)
	if env := os.Getenv("DB_PORT"); env != "" {
		if port, err := strconv.Atoi(env); err == nil && port > 0 {
			config.Database.Port = port
		}
	}
	setString("DB_USER", &config.Database.User)
	setString("DB_PASSWORD", &config.Database.Password)
	setString("DB_NAME", &config.Database.DBName)
	setString("DB_PATH", &config.Database.Path)

	// 大模型配置
	setString("LLM_BASE_URL", &config.LLM.BaseURL)
	setString("LLM_MODEL", &config.LLM.Model)
	setString("LLM_API_KEY", &config.LLM.APIKey)
	if config.LLM.APIKey == "" {
		setString("ANTHROPIC_API_KEY", &config.LLM.APIKey)
	}

	setString("COMFYUI_URL", &config.ComfyUI.BaseURL)
	setString("UPLOADS_DIR", &config.ComfyUI.UploadsDir)

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
		config.NATS.Enabled = true
	}

	setString("API_PORT", &config.API.Port)
	setString("CATALOG_DIR", &config.Catalog.Dir)
	setString("LOG_LEVEL", &config.Log.Level)
	setString("LOG_FORMAT", &config.Log.Format)
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
