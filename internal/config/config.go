package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv      = "NEWS_AGENT_CONFIG"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	adminTokenEnv      = "ADMIN_TOKEN"
	httpAddrEnv        = "HTTP_ADDR"
	redisAddrEnv       = "REDIS_ADDR"
	llmBaseURLEnv      = "OLLAMA_BASE_URL"
	llmModelEnv        = "LLM_MODEL"
	llmAPIKeyEnv       = "LLM_API_KEY"
	enableLLMFilterEnv = "ENABLE_LLM_FILTER"
	maxAgeDaysEnv      = "MAX_AGE_DAYS_DEFAULT"
	hnEnableEnv        = "HN_ENABLE"
	hnQueryTermsEnv    = "HN_QUERY_TERMS"
	hnMinPointsEnv     = "HN_MIN_POINTS"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	logLevelEnv        = "LOG_LEVEL"
)

// Scanner names understood by the registry.
const (
	ScannerRSS   = "rss"
	ScannerArxiv = "arxiv"
	ScannerHN    = "hn"
)

// Config holds high-level settings required across the application.
type Config struct {
	App           AppConfig          `yaml:"app"`
	HTTP          HTTPConfig         `yaml:"http"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	LLM           LLMConfig          `yaml:"llm"`
	Filter        FilterConfig       `yaml:"filter"`
	HN            HNConfig           `yaml:"hn"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Sites         []SiteConfig       `yaml:"sites"`
}

// AppConfig names the deployment.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// HTTPConfig configures the query/refresh API.
type HTTPConfig struct {
	Addr       string `yaml:"addr"`
	AdminToken string `yaml:"adminToken"`
}

// DatabaseConfig describes the relational store. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables the cross-replica job lock when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SchedulerConfig defines how often background jobs fire.
type SchedulerConfig struct {
	Disabled          bool          `yaml:"disabled"`
	RunOnStart        bool          `yaml:"runOnStart"`
	FetchInterval     time.Duration `yaml:"fetchInterval"`
	HNInterval        time.Duration `yaml:"hnInterval"`
	SummarizeInterval time.Duration `yaml:"summarizeInterval"`
	SummarizeLimit    int           `yaml:"summarizeLimit"`
}

// LLMConfig defines how to contact the OpenAI-compatible chat endpoint.
//
// Model (LLM_MODEL) is a global override: when set it replaces both
// ClassifyModel and SummaryModel, which otherwise pick per-purpose models.
type LLMConfig struct {
	BaseURL         string        `yaml:"baseUrl"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"apiKey"`
	ClassifyModel   string        `yaml:"classifyModel"`
	SummaryModel    string        `yaml:"summaryModel"`
	ClassifyPrompt  string        `yaml:"classifyPrompt"`
	SummaryPrompt   string        `yaml:"summaryPrompt"`
	ClassifyTimeout time.Duration `yaml:"classifyTimeout"`
	SummaryTimeout  time.Duration `yaml:"summaryTimeout"`
}

// ClassifierModel resolves the model used for relevance checks; Model wins
// over ClassifyModel.
func (l LLMConfig) ClassifierModel() string {
	if l.Model != "" {
		return l.Model
	}
	return l.ClassifyModel
}

// SummarizerModel resolves the model used for summaries; Model wins over
// SummaryModel.
func (l LLMConfig) SummarizerModel() string {
	if l.Model != "" {
		return l.Model
	}
	return l.SummaryModel
}

// FilterConfig controls ingestion gating.
type FilterConfig struct {
	EnableLLMFilter bool `yaml:"enableLlmFilter"`
	// MaxAgeDaysDefault is a pointer so an explicit 0 (no cutoff) survives
	// the YAML merge.
	MaxAgeDaysDefault *int `yaml:"maxAgeDaysDefault"`
}

// MaxAgeDays returns the configured cutoff, 7 when unset.
func (f FilterConfig) MaxAgeDays() int {
	if f.MaxAgeDaysDefault == nil {
		return defaultMaxAgeDays
	}
	return *f.MaxAgeDaysDefault
}

// HNConfig configures the Hacker News search adapter.
type HNConfig struct {
	Enable     *bool    `yaml:"enable"`
	BaseURL    string   `yaml:"baseUrl"`
	QueryTerms []string `yaml:"queryTerms"`
	MinPoints  *int     `yaml:"minPoints"`
}

// MinPointsFloor returns the story points floor, 10 when unset.
func (h HNConfig) MinPointsFloor() int {
	if h.MinPoints == nil {
		return defaultHNMinPoints
	}
	return *h.MinPoints
}

// Enabled defaults to true when the flag is absent.
func (h HNConfig) Enabled() bool {
	return h.Enable == nil || *h.Enable
}

// FetchConfig tunes outbound feed requests.
type FetchConfig struct {
	UserAgent    string        `yaml:"userAgent"`
	Timeout      time.Duration `yaml:"timeout"`
	APITimeout   time.Duration `yaml:"apiTimeout"`
	HostInterval time.Duration `yaml:"hostInterval"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LoggingConfig selects the slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SiteConfig describes a single site with its scanner strategy and target kind.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	Kind       string            `yaml:"kind"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds the concrete endpoints to crawl (feed URLs).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Sites) == 0 {
		cfg.Sites = defaultConfig().Sites
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(adminTokenEnv); v != "" {
		c.HTTP.AdminToken = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(llmBaseURLEnv); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v, ok := envBool(enableLLMFilterEnv); ok {
		c.Filter.EnableLLMFilter = v
	}
	if v, ok := envInt(maxAgeDaysEnv); ok {
		c.Filter.MaxAgeDaysDefault = &v
	}
	if v, ok := envBool(hnEnableEnv); ok {
		c.HN.Enable = &v
	}
	if v := os.Getenv(hnQueryTermsEnv); v != "" {
		c.HN.QueryTerms = SplitTerms(v)
	}
	if v, ok := envInt(hnMinPointsEnv); ok {
		c.HN.MinPoints = &v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// SplitTerms parses a comma-separated list, dropping blanks.
func SplitTerms(raw string) []string {
	var terms []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: %s=%q is not a boolean, ignoring", key, raw)
		return false, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, ignoring", key, raw)
		return 0, false
	}
	return v, true
}

func mergeConfig(base, override Config) Config {
	if override.App.Name != "" {
		base.App.Name = override.App.Name
	}
	if override.App.Environment != "" {
		base.App.Environment = override.App.Environment
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}
	if override.HTTP.AdminToken != "" {
		base.HTTP.AdminToken = override.HTTP.AdminToken
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
		if base.Database.Driver == "" {
			base.Database.Driver = defaultConfig().Database.Driver
		}
	}

	if override.Redis.Addr != "" {
		base.Redis = override.Redis
	}

	// A YAML scheduler block replaces the defaults wholesale except for zero durations.
	if override.Scheduler != (SchedulerConfig{}) {
		s := override.Scheduler
		if s.FetchInterval == 0 {
			s.FetchInterval = base.Scheduler.FetchInterval
		}
		if s.HNInterval == 0 {
			s.HNInterval = base.Scheduler.HNInterval
		}
		if s.SummarizeInterval == 0 {
			s.SummarizeInterval = base.Scheduler.SummarizeInterval
		}
		if s.SummarizeLimit == 0 {
			s.SummarizeLimit = base.Scheduler.SummarizeLimit
		}
		base.Scheduler = s
	}

	if override.LLM.BaseURL != "" {
		base.LLM.BaseURL = override.LLM.BaseURL
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.ClassifyModel != "" {
		base.LLM.ClassifyModel = override.LLM.ClassifyModel
	}
	if override.LLM.SummaryModel != "" {
		base.LLM.SummaryModel = override.LLM.SummaryModel
	}
	if override.LLM.ClassifyPrompt != "" {
		base.LLM.ClassifyPrompt = override.LLM.ClassifyPrompt
	}
	if override.LLM.SummaryPrompt != "" {
		base.LLM.SummaryPrompt = override.LLM.SummaryPrompt
	}
	if override.LLM.ClassifyTimeout != 0 {
		base.LLM.ClassifyTimeout = override.LLM.ClassifyTimeout
	}
	if override.LLM.SummaryTimeout != 0 {
		base.LLM.SummaryTimeout = override.LLM.SummaryTimeout
	}

	if override.Filter.EnableLLMFilter {
		base.Filter.EnableLLMFilter = true
	}
	if override.Filter.MaxAgeDaysDefault != nil {
		base.Filter.MaxAgeDaysDefault = override.Filter.MaxAgeDaysDefault
	}

	if override.HN.Enable != nil {
		base.HN.Enable = override.HN.Enable
	}
	if override.HN.BaseURL != "" {
		base.HN.BaseURL = override.HN.BaseURL
	}
	if len(override.HN.QueryTerms) > 0 {
		base.HN.QueryTerms = override.HN.QueryTerms
	}
	if override.HN.MinPoints != nil {
		base.HN.MinPoints = override.HN.MinPoints
	}

	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.Timeout != 0 {
		base.Fetch.Timeout = override.Fetch.Timeout
	}
	if override.Fetch.APITimeout != 0 {
		base.Fetch.APITimeout = override.Fetch.APITimeout
	}
	if override.Fetch.HostInterval != 0 {
		base.Fetch.HostInterval = override.Fetch.HostInterval
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

const (
	defaultMaxAgeDays  = 7
	defaultHNMinPoints = 10
)

func intPtr(v int) *int { return &v }

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.1 Safari/605.1.15"

var newsFeeds = []CategoryConfig{
	{Name: "BAIR", URL: "https://bair.berkeley.edu/blog/feed.xml"},
	{Name: "NVIDIA", URL: "https://feeds.feedburner.com/nvidiablog"},
	{Name: "Microsoft Research", URL: "https://www.microsoft.com/en-us/research/feed/"},
	{Name: "ScienceDaily AI", URL: "https://www.sciencedaily.com/rss/computers_math/artificial_intelligence.xml"},
	{Name: "Meta Research", URL: "https://research.facebook.com/feed/"},
	{Name: "OpenAI", URL: "https://openai.com/news/rss.xml"},
	{Name: "DeepMind", URL: "https://deepmind.google/blog/feed/basic/"},
	{Name: "MIT News AI", URL: "https://news.mit.edu/rss/topic/artificial-intelligence2"},
	{Name: "MIT Technology Review AI", URL: "https://www.technologyreview.com/topic/artificial-intelligence/feed"},
	{Name: "Wired AI", URL: "https://www.wired.com/feed/tag/ai/latest/rss"},
	{Name: "Ollama", URL: "https://raw.githubusercontent.com/Olshansk/rss-feeds/refs/heads/main/feeds/feed_ollama.xml"},
	{Name: "Anthropic", URL: "https://raw.githubusercontent.com/Olshansk/rss-feeds/refs/heads/main/feeds/feed_anthropic.xml"},
}

var arxivFeeds = []CategoryConfig{
	// arxiv.org rather than export.arxiv.org: some networks block the export host.
	{Name: "cs.AI", URL: "https://arxiv.org/rss/cs.AI"},
}

func defaultConfig() Config {
	articleFeeds := append(append([]CategoryConfig{}, arxivFeeds...), newsFeeds...)

	return Config{
		App:      AppConfig{Name: "AI Algorithm News Agent", Environment: "development"},
		HTTP:     HTTPConfig{Addr: ":8000"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:news.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		Scheduler: SchedulerConfig{
			FetchInterval:     30 * time.Minute,
			HNInterval:        30 * time.Minute,
			SummarizeInterval: 10 * time.Minute,
			SummarizeLimit:    30,
		},
		LLM: LLMConfig{
			BaseURL:         "http://127.0.0.1:11434/v1",
			ClassifyModel:   "qwen2.5:7b",
			SummaryModel:    "llama3.1:8b",
			ClassifyTimeout: 12 * time.Second,
			SummaryTimeout:  15 * time.Second,
		},
		Filter: FilterConfig{EnableLLMFilter: false, MaxAgeDaysDefault: intPtr(defaultMaxAgeDays)},
		HN: HNConfig{
			BaseURL:   "https://hn.algolia.com/api/v1",
			MinPoints: intPtr(defaultHNMinPoints),
		},
		Fetch: FetchConfig{
			UserAgent:    browserUserAgent,
			Timeout:      10 * time.Second,
			APITimeout:   15 * time.Second,
			HostInterval: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Sites: []SiteConfig{
			{Name: "arxiv", Scanner: ScannerArxiv, Kind: "paper", Categories: arxivFeeds},
			{Name: "news-rss", Scanner: ScannerRSS, Kind: "news", Categories: newsFeeds},
			{Name: "hn", Scanner: ScannerHN, Kind: "news"},
			{Name: "articles-rss", Scanner: ScannerRSS, Kind: "article", Categories: articleFeeds},
			{Name: "articles-hn", Scanner: ScannerHN, Kind: "article"},
		},
	}
}
