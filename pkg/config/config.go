package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Bot       BotConfig       `mapstructure:"bot"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Docs serves the admin API reference under /docs.
	Docs bool `mapstructure:"docs"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	CollectorURL string `mapstructure:"collector_url"`
	Enabled      bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SessionConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
	ReapSchedule string        `mapstructure:"reap_schedule"`
}

type BotConfig struct {
	Name            string `mapstructure:"name"`
	CurrencySymbol  string `mapstructure:"currency_symbol"`
	SupportContact  string `mapstructure:"support_contact"`
	MaintenanceMode bool   `mapstructure:"maintenance_mode"`
}

// LimitsConfig holds the accepted amount bands, in whole currency units
// (gift-card values are in USD).
type LimitsConfig struct {
	AirtimeMin       int64 `mapstructure:"airtime_min"`
	AirtimeMax       int64 `mapstructure:"airtime_max"`
	DataMin          int64 `mapstructure:"data_min"`
	DataMax          int64 `mapstructure:"data_max"`
	GiftCardMinValue int64 `mapstructure:"giftcard_min_value"`
	GiftCardMaxValue int64 `mapstructure:"giftcard_max_value"`
	WalletMinFunding int64 `mapstructure:"wallet_min_funding"`
	WalletMaxFunding int64 `mapstructure:"wallet_max_funding"`
}

type WhatsAppConfig struct {
	Provider string       `mapstructure:"provider"`
	Meta     MetaConfig   `mapstructure:"meta"`
	Twilio   TwilioConfig `mapstructure:"twilio"`
}

type MetaConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIVersion    string `mapstructure:"api_version"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
	VerifyToken   string `mapstructure:"verify_token"`
	AppSecret     string `mapstructure:"app_secret"`
}

type TwilioConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

type PaymentConfig struct {
	Paystack    GatewayConfig `mapstructure:"paystack"`
	Flutterwave GatewayConfig `mapstructure:"flutterwave"`
	Bank        BankConfig    `mapstructure:"bank"`
}

type GatewayConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	SecretKey   string `mapstructure:"secret_key"`
	CallbackURL string `mapstructure:"callback_url"`
}

type BankConfig struct {
	Name          string `mapstructure:"name"`
	AccountNumber string `mapstructure:"account_number"`
	AccountName   string `mapstructure:"account_name"`
}

type ProvidersConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout"`
	VTPass   VTPassConfig   `mapstructure:"vtpass"`
	GiftCard GiftCardConfig `mapstructure:"giftcard"`
}

type VTPassConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type GiftCardConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	// AutoApproveMax is the largest payout the mock verifier approves
	// without review. Zero sends everything to review.
	AutoApproveMax int64 `mapstructure:"auto_approve_max"`
}

type AdminConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// Load reads configuration from an optional .env file, a YAML file named
// configName and CHATCOMMERCE_* environment variables, in increasing order
// of precedence.
func Load(configName string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/chatcommerce/")

	v.SetEnvPrefix("CHATCOMMERCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects limit bands and timeouts that would make flows unusable.
func (c *Config) Validate() error {
	l := c.Limits
	if l.AirtimeMin <= 0 || l.AirtimeMax < l.AirtimeMin {
		return fmt.Errorf("invalid airtime limits: %d-%d", l.AirtimeMin, l.AirtimeMax)
	}
	if l.DataMin <= 0 || l.DataMax < l.DataMin {
		return fmt.Errorf("invalid data limits: %d-%d", l.DataMin, l.DataMax)
	}
	if l.WalletMinFunding <= 0 || l.WalletMaxFunding < l.WalletMinFunding {
		return fmt.Errorf("invalid wallet funding limits: %d-%d", l.WalletMinFunding, l.WalletMaxFunding)
	}
	if l.GiftCardMinValue <= 0 || l.GiftCardMaxValue < l.GiftCardMinValue {
		return fmt.Errorf("invalid gift card value limits: %d-%d", l.GiftCardMinValue, l.GiftCardMaxValue)
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}
	switch c.WhatsApp.Provider {
	case "meta", "twilio", "mock":
	default:
		return fmt.Errorf("unknown whatsapp provider %q", c.WhatsApp.Provider)
	}
	return nil
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.docs", false)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chatcommerce")
	v.SetDefault("database.database", "chatcommerce")
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "bot-service")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "bot-service")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("session.timeout", 5*time.Minute)
	v.SetDefault("session.lock_timeout", 10*time.Second)
	v.SetDefault("session.reap_schedule", "@every 1m")

	v.SetDefault("bot.name", "ChatCommerce")
	v.SetDefault("bot.currency_symbol", "₦")
	v.SetDefault("bot.support_contact", "support@chatcommerce.ng")
	v.SetDefault("bot.maintenance_mode", false)

	v.SetDefault("limits.airtime_min", 50)
	v.SetDefault("limits.airtime_max", 10000)
	v.SetDefault("limits.data_min", 100)
	v.SetDefault("limits.data_max", 20000)
	v.SetDefault("limits.giftcard_min_value", 10)
	v.SetDefault("limits.giftcard_max_value", 2000)
	v.SetDefault("limits.wallet_min_funding", 100)
	v.SetDefault("limits.wallet_max_funding", 500000)

	v.SetDefault("whatsapp.provider", "mock")
	v.SetDefault("whatsapp.meta.base_url", "https://graph.facebook.com")
	v.SetDefault("whatsapp.meta.api_version", "v18.0")
	v.SetDefault("whatsapp.twilio.base_url", "https://api.twilio.com")

	v.SetDefault("payment.paystack.base_url", "https://api.paystack.co")
	v.SetDefault("payment.flutterwave.base_url", "https://api.flutterwave.com")

	v.SetDefault("providers.timeout", 30*time.Second)
	v.SetDefault("providers.vtpass.base_url", "https://sandbox.vtpass.com/api")

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.token_ttl", 12*time.Hour)
}
