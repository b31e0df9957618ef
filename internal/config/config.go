package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultListenAddr        = ":3000"
	DefaultSessionMaxAge     = 7 * 24 * time.Hour
	DefaultMaxSessions       = 10
	DefaultLockoutAttempts   = 5
	DefaultLockoutDuration   = 15 * time.Minute
	DefaultAnomalyWindowDays = 7
	DefaultBreachAPIBaseURL  = "https://api.pwnedpasswords.com"
)

type MySQLConfig struct {
	Dsn             string `mapstructure:"dsn"`
	ReplicaDsn      string `mapstructure:"replicaDsn"`
	TablePrefix     string `mapstructure:"tablePrefix"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int    `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int    `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	URL         string `mapstructure:"url"`
	PoolSize    int    `mapstructure:"poolSize"`
	ClusterMode bool   `mapstructure:"clusterMode"`
}

type SessionConfig struct {
	MaxAge        time.Duration `mapstructure:"maxAge"`
	MaxConcurrent int           `mapstructure:"maxConcurrent"`
}

type MFAConfig struct {
	MaxAttempts     uint          `mapstructure:"maxAttempts"`
	LockoutDuration time.Duration `mapstructure:"lockoutDuration"`
}

type PasswordConfig struct {
	Policy        string `mapstructure:"policy"`
	BreachBaseURL string `mapstructure:"breachBaseURL"`
	BreachCheck   bool   `mapstructure:"breachCheck"`
}

type AnalyticsConfig struct {
	SiteIDs    []string `mapstructure:"siteIDs"`
	WindowDays int      `mapstructure:"windowDays"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

type MailConfig struct {
	Backend string     `mapstructure:"backend"`
	From    string     `mapstructure:"from"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

type SMSConfig struct {
	Backend    string `mapstructure:"backend"`
	WebhookURL string `mapstructure:"webhookURL"`
	APIKey     string `mapstructure:"apiKey"`
}

type Config struct {
	Debug       bool            `mapstructure:"debug"`
	SiteName    string          `mapstructure:"siteName"`
	MasterKey   string          `mapstructure:"masterKey"`
	ListenAddr  string          `mapstructure:"listenAddr"`
	TemplateDir string          `mapstructure:"templateDir"`
	MySQL       MySQLConfig     `mapstructure:"mysql"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Session     SessionConfig   `mapstructure:"session"`
	MFA         MFAConfig       `mapstructure:"mfa"`
	Password    PasswordConfig  `mapstructure:"password"`
	Analytics   AnalyticsConfig `mapstructure:"analytics"`
	Mail        MailConfig      `mapstructure:"mail"`
	SMS         SMSConfig       `mapstructure:"sms"`
}

func (c *Config) Sanitize() error {
	if c.MasterKey == "" {
		return errors.New("masterKey must be set")
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Session.MaxAge == 0 {
		c.Session.MaxAge = DefaultSessionMaxAge
	}
	if c.Session.MaxConcurrent == 0 {
		c.Session.MaxConcurrent = DefaultMaxSessions
	}
	if c.MFA.MaxAttempts == 0 {
		c.MFA.MaxAttempts = DefaultLockoutAttempts
	}
	if c.MFA.LockoutDuration == 0 {
		c.MFA.LockoutDuration = DefaultLockoutDuration
	}
	if c.Password.BreachBaseURL == "" {
		c.Password.BreachBaseURL = DefaultBreachAPIBaseURL
	}
	if c.Analytics.WindowDays == 0 {
		c.Analytics.WindowDays = DefaultAnomalyWindowDays
	}
	return nil
}

func LoadConfig(filename string) (*Config, error) {
	viper.SetConfigFile(filename)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}
