package config

import (
	"os"
	"strconv"
	"time"
)

// AI API Key 的候选环境变量，按顺序取第一个非空值
var aiKeyEnvs = []string{"AI_API_KEY", "OPENAI_API_KEY", "LLM_TOKEN"}

// Config 应用全部配置，启动时解析一次，之后以值注入各组件
// 业务代码不允许再直接读环境变量
type Config struct {
	Port          string
	DatabaseURL   string
	SessionSecret string

	AI    AIConfig
	Fetch FetchConfig
	Cron  CronConfig
}

// AIConfig 外部文本分析服务（Chat Completion 接口）
type AIConfig struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration // 单次分析请求超时
}

// FetchConfig 订阅源抓取
type FetchConfig struct {
	Timeout   time.Duration // 单个订阅源抓取超时
	UserAgent string
}

// CronConfig 批处理驱动（由外部定时器反复调用）
type CronConfig struct {
	Secret          string        // 调用 cron 接口所需的共享密钥
	SourceBudget    int           // 单次调用最多处理的订阅源数量
	TimeBudget      time.Duration // 单次调用的时间预算
	RefreshInterval time.Duration // 订阅源视为"过期需要重新抓取"的间隔
	ClassifyLimit   int           // 每个订阅源单次最多送分析的文章数
	ClassifyDelay   time.Duration // AI 调用之间的间隔，避免触发限流
}

// Load 从环境变量构建配置（.env 由 main 提前加载）
func Load() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		DatabaseURL:   envOr("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=xinzhi port=5432 sslmode=disable"),
		SessionSecret: envOr("SESSION_SECRET", "secret_key_change_me"),
		AI: AIConfig{
			Endpoint: envOr("AI_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
			Model:    envOr("AI_MODEL", "gpt-4o-mini"),
			APIKey:   firstEnv(aiKeyEnvs),
			Timeout:  envDuration("AI_TIMEOUT", 10*time.Second),
		},
		Fetch: FetchConfig{
			Timeout:   envDuration("FETCH_TIMEOUT", 30*time.Second),
			UserAgent: envOr("FETCH_USER_AGENT", "XinzhiBot/1.0 (+https://github.com/TwoThreeWang/xinzhi)"),
		},
		Cron: CronConfig{
			Secret:          envOr("CRON_SECRET", ""),
			SourceBudget:    envInt("CRON_SOURCE_BUDGET", 5),
			TimeBudget:      envDuration("CRON_TIME_BUDGET", 50*time.Second),
			RefreshInterval: envDuration("SOURCE_REFRESH_INTERVAL", 30*time.Minute),
			ClassifyLimit:   envInt("CLASSIFY_BATCH_LIMIT", 10),
			ClassifyDelay:   envDuration("CLASSIFY_DELAY", time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys []string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
