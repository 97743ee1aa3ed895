package config

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AliExpressConfig holds affiliate API credentials.
type AliExpressConfig struct {
	AppKey     string `mapstructure:"app_key"`
	AppSecret  string `mapstructure:"app_secret"`
	TrackingID string `mapstructure:"tracking_id"`
	BaseURL    string `mapstructure:"base_url"`
}

// TelegramConfig holds the bot token and target channel.
type TelegramConfig struct {
	BotToken  string `mapstructure:"bot_token"`
	ChannelID string `mapstructure:"channel_id"` // e.g. @mydealschannel
	BaseURL   string `mapstructure:"base_url"`
}

// OpenAIConfig enables AI caption copywriting when an API key is set.
type OpenAIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	Language string `mapstructure:"language"`
}

// PostingConfig controls the hourly planning and dispatch behaviour.
type PostingConfig struct {
	MinPerHour    int      `mapstructure:"min_per_hour"`
	MaxPerHour    int      `mapstructure:"max_per_hour"`
	StartHour     int      `mapstructure:"start_hour"` // inclusive
	EndHour       int      `mapstructure:"end_hour"`   // exclusive
	PeakHours     []int    `mapstructure:"peak_hours"`
	Categories    []string `mapstructure:"categories"`
	HotLimit      int      `mapstructure:"hot_limit"`
	CategoryCount int      `mapstructure:"category_count"` // random categories sampled per cycle
	CategoryLimit int      `mapstructure:"category_limit"` // results per sampled category
	MinDiscount   int      `mapstructure:"min_discount"`
	Timezone      string   `mapstructure:"timezone"`
}

// AdminConfig controls the administrative HTTP server.
type AdminConfig struct {
	Addr          string `mapstructure:"addr"`
	PublicBaseURL string `mapstructure:"public_base_url"` // base for click-tracking links
}

// RetentionConfig controls store pruning horizons.
type RetentionConfig struct {
	HistoryDays  int `mapstructure:"history_days"`
	TrendingDays int `mapstructure:"trending_days"`
}

// CategoryConfig points at the keyword classification rules.
type CategoryConfig struct {
	RulesFile string `mapstructure:"rules_file"` // optional YAML rules override
}

// Config is the top-level configuration structure.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AliExpress AliExpressConfig `mapstructure:"aliexpress"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Posting    PostingConfig    `mapstructure:"posting"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Category   CategoryConfig   `mapstructure:"category"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.AliExpress.BaseURL == "" {
		c.AliExpress.BaseURL = "https://api-sg.aliexpress.com"
	}
	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = "https://api.telegram.org"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.Language == "" {
		c.OpenAI.Language = "English"
	}
	if c.Posting.MinPerHour == 0 {
		c.Posting.MinPerHour = 20
	}
	if c.Posting.MaxPerHour == 0 {
		c.Posting.MaxPerHour = 25
	}
	if c.Posting.StartHour == 0 && c.Posting.EndHour == 0 {
		c.Posting.StartHour = 8
		c.Posting.EndHour = 22
	}
	if len(c.Posting.PeakHours) == 0 {
		c.Posting.PeakHours = []int{12, 13, 14, 20, 21}
	}
	if len(c.Posting.Categories) == 0 {
		c.Posting.Categories = []string{
			"electronics", "smartphone", "phone", "laptop", "tablet",
			"clothing", "fashion", "shoes", "bags", "accessories",
			"home", "kitchen", "decoration", "furniture", "garden",
			"beauty", "cosmetics", "skincare", "makeup", "health",
			"sports", "fitness", "outdoor", "camping", "automotive",
			"toys", "games", "kids", "baby", "pet",
		}
	}
	if c.Posting.HotLimit == 0 {
		c.Posting.HotLimit = 30
	}
	if c.Posting.CategoryCount == 0 {
		c.Posting.CategoryCount = 3
	}
	if c.Posting.CategoryLimit == 0 {
		c.Posting.CategoryLimit = 20
	}
	if c.Posting.MinDiscount == 0 {
		c.Posting.MinDiscount = 30
	}
	if c.Posting.Timezone == "" {
		c.Posting.Timezone = "America/Sao_Paulo"
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = ":8080"
	}
	if c.Retention.HistoryDays == 0 {
		c.Retention.HistoryDays = 30
	}
	if c.Retention.TrendingDays == 0 {
		c.Retention.TrendingDays = 7
	}
}
