package configs

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tb0hdan/ctlog-checker/pkg/models"
)

// NoIssuedBound disables the issuance lower bound when used as checker.ignore_issued_before
const NoIssuedBound = -1

// Config holds the application configuration
type Config struct {
	Checker CheckerConfig `mapstructure:"checker"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	// Version information
	Version string
	Commit  string
	Date    string
}

// CheckerConfig holds what to check and how to filter it
type CheckerConfig struct {
	DomainNamePatterns []string `mapstructure:"domain_name_patterns"`
	ExpectedCAs        []string `mapstructure:"expected_cas"`
	// Seconds back from now. NoIssuedBound admits any issuance date.
	IgnoreIssuedBefore int64 `mapstructure:"ignore_issued_before"`
	// Seconds back from now
	IgnoreExpiredBefore int64 `mapstructure:"ignore_expired_before"`
	MaxConcurrency      int   `mapstructure:"max_concurrency"`
	FailOnUnexpected    bool  `mapstructure:"fail_on_unexpected"`
}

// FeedConfig holds CT aggregator feed configuration
type FeedConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	UserAgent      string `mapstructure:"user_agent"`
	RequestTimeout int    `mapstructure:"request_timeout"`
	RetryMax       int    `mapstructure:"retry_max"`
}

// ServerConfig holds serve mode configuration
type ServerConfig struct {
	Port             int    `mapstructure:"port"`
	Host             string `mapstructure:"host"`
	ReadTimeout      int    `mapstructure:"read_timeout"`
	WriteTimeout     int    `mapstructure:"write_timeout"`
	MaxMessageSize   int64  `mapstructure:"max_message_size"`
	PongTimeout      int    `mapstructure:"pong_timeout"`
	PingPeriod       int    `mapstructure:"ping_period"`
	ClientBufferSize int    `mapstructure:"client_buffer_size"`
	CheckInterval    int    `mapstructure:"check_interval"`
	AlertBufferSize  int    `mapstructure:"alert_buffer_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// If a specific config file path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("checker.domain_name_patterns", []string{})
	v.SetDefault("checker.expected_cas", []string{})
	v.SetDefault("checker.ignore_issued_before", models.DefaultIssuedLookback)
	v.SetDefault("checker.ignore_expired_before", 0)
	v.SetDefault("checker.max_concurrency", 0)
	v.SetDefault("checker.fail_on_unexpected", false)

	v.SetDefault("feed.base_url", "https://crt.sh/atom")
	v.SetDefault("feed.user_agent", "ctlog-checker/1.0")
	v.SetDefault("feed.request_timeout", 60)
	v.SetDefault("feed.retry_max", 3)

	v.SetDefault("server.port", 4000)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.max_message_size", 512000)
	v.SetDefault("server.pong_timeout", 60)
	v.SetDefault("server.ping_period", 30)
	v.SetDefault("server.client_buffer_size", 500)
	v.SetDefault("server.check_interval", 3600)
	v.SetDefault("server.alert_buffer_size", 100)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read environment variables
	v.SetEnvPrefix("CTLOG_CHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow PORT env variable to override server.port
	if err := v.BindEnv("server.port", "CTLOG_CHECKER_SERVER_PORT", "PORT"); err != nil {
		return nil, err
	}

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Window builds the filter window for a check starting at now. The checker
// offsets are applied on top of models.DefaultWindow.
func (c *Config) Window(now time.Time) models.FilterWindow {
	nowTS := now.Unix()
	window := models.DefaultWindow(nowTS)
	window.ExpectedCAs = append(window.ExpectedCAs, c.Checker.ExpectedCAs...)
	window.IgnoreExpiredBeforeTS -= c.Checker.IgnoreExpiredBefore

	switch c.Checker.IgnoreIssuedBefore {
	case NoIssuedBound:
		window.IgnoreIssuedBeforeTS = 0
	case models.DefaultIssuedLookback:
	default:
		window.IgnoreIssuedBeforeTS = nowTS - c.Checker.IgnoreIssuedBefore
	}
	return window
}
