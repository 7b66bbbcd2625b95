package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务端配置
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	AI     AIConfig     `yaml:"ai"`
	Game   GameConfig   `yaml:"game"`
}

// ServerConfig HTTP/WebSocket 服务器配置
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxConnections int      `yaml:"max_connections"`
	AllowedOrigins []string `yaml:"allowed_origins"` // 空表示允许所有来源
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AIConfig 内容生成服务配置
type AIConfig struct {
	Provider   string `yaml:"provider"` // mistral / openai / gemini
	APIKey     string `yaml:"api_key"`  // 为空时从 <PROVIDER>_API_KEY 环境变量读取
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Timeout    int    `yaml:"timeout"`     // 单次请求超时（秒）
	MaxRetries int    `yaml:"max_retries"` // 重试次数
}

// TimeoutDuration 返回单次请求超时时长
func (c *AIConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GameConfig 游戏配置
type GameConfig struct {
	DecisionTimeLimit int `yaml:"decision_time_limit"` // 客户端决策时限（秒）
	TimeoutGrace      int `yaml:"timeout_grace"`       // 服务端强制推进的宽限（秒）
	MaxRounds         int `yaml:"max_rounds"`          // 最大回合数
	ResultGracePeriod int `yaml:"result_grace_period"` // 结算展示宽限（秒）
	RoomTimeout       int `yaml:"room_timeout"`        // 空闲房间超时（分钟）
}

// DecisionTimeLimitDuration 返回客户端决策时限
func (c *GameConfig) DecisionTimeLimitDuration() time.Duration {
	return time.Duration(c.DecisionTimeLimit) * time.Second
}

// DecisionDeadlineDuration 返回服务端权威截止时长（时限 + 宽限）
func (c *GameConfig) DecisionDeadlineDuration() time.Duration {
	return time.Duration(c.DecisionTimeLimit+c.TimeoutGrace) * time.Second
}

// ResultGracePeriodDuration 返回结算展示宽限时长
func (c *GameConfig) ResultGracePeriodDuration() time.Duration {
	return time.Duration(c.ResultGracePeriod) * time.Second
}

// RoomTimeoutDuration 返回空闲房间超时时长
func (c *GameConfig) RoomTimeoutDuration() time.Duration {
	return time.Duration(c.RoomTimeout) * time.Minute
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults 填充零值字段的默认值
func (cfg *Config) applyDefaults() {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Server.MaxConnections == 0 {
		cfg.Server.MaxConnections = 1024
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "mistral"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = defaultModel(cfg.AI.Provider)
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = defaultBaseURL(cfg.AI.Provider)
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.AI.MaxRetries == 0 {
		cfg.AI.MaxRetries = 3
	}
	if cfg.Game.DecisionTimeLimit == 0 {
		cfg.Game.DecisionTimeLimit = 120
	}
	if cfg.Game.TimeoutGrace == 0 {
		cfg.Game.TimeoutGrace = 30
	}
	if cfg.Game.MaxRounds == 0 {
		cfg.Game.MaxRounds = 3
	}
	if cfg.Game.ResultGracePeriod == 0 {
		cfg.Game.ResultGracePeriod = 10
	}
	if cfg.Game.RoomTimeout == 0 {
		cfg.Game.RoomTimeout = 30
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4"
	case "gemini":
		return "gemini-1.5-pro"
	default:
		return "mistral-large-latest"
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case "openai":
		return "https://api.openai.com/v1/chat/completions"
	case "gemini":
		return "https://generativelanguage.googleapis.com/v1beta/models"
	default:
		return "https://api.mistral.ai/v1/chat/completions"
	}
}
