package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

type TelegramConfig struct {
	Token        string  `mapstructure:"token"`
	AdminUserIDs []int64 `mapstructure:"admin_user_ids"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey          string   `mapstructure:"api_key"`
	AvailableModels []string `mapstructure:"available_models"`
	MaxTokens       int      `mapstructure:"max_tokens"`
	Temperature     float64  `mapstructure:"temperature"`
}

// DefaultModel is the first configured model.
func (c OpenAIConfig) DefaultModel() string {
	if len(c.AvailableModels) == 0 {
		return "gpt-3.5-turbo"
	}
	return c.AvailableModels[0]
}

type ChatConfig struct {
	HistoryWindow  int           `mapstructure:"history_window"`
	UpdateEvery    int           `mapstructure:"update_every"`
	MessageLimit   int           `mapstructure:"message_limit"`
	ChunkLimit     int           `mapstructure:"chunk_limit"`
	TypingInterval time.Duration `mapstructure:"typing_interval"`
}

// IsAdmin reports whether the user id is in the configured admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.available_models", []string{"gpt-3.5-turbo"})
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("chat.history_window", 20)
	v.SetDefault("chat.update_every", 20)
	v.SetDefault("chat.message_limit", 4096)
	v.SetDefault("chat.chunk_limit", 4000)
	v.SetDefault("chat.typing_interval", 4*time.Second)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	if admins := v.GetString("ADMIN_USER_IDS"); admins != "" {
		config.Telegram.AdminUserIDs = nil
		for _, part := range strings.Split(admins, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			var id int64
			if _, err := fmt.Sscanf(part, "%d", &id); err != nil {
				return nil, fmt.Errorf("failed to parse ADMIN_USER_IDS entry %q: %v", part, err)
			}
			config.Telegram.AdminUserIDs = append(config.Telegram.AdminUserIDs, id)
		}
	}

	return &config, nil
}
