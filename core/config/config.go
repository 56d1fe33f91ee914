package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Accounts   []AccountConfig
	Database   DatabaseConfig
	Whatsapp   WhatsappConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
	Webhook    WebhookConfig
	Events     EventsConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
	StoragePath        string
	RequestsPerMinute  int
}

// AccountConfig is one statically configured messaging account.
type AccountConfig struct {
	ID          string `mapstructure:"id"`
	DisplayName string `mapstructure:"display_name"`
	Type        string `mapstructure:"account_type"`
	WebhookPath string `mapstructure:"webhook_path"`
}

type DatabaseConfig struct {
	// URI is the whatsmeow sqlstore URI. A %s verb is replaced by the account id.
	URI             string
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type WhatsappConfig struct {
	LogLevel string
	OS       string
}

type SessionConfig struct {
	QRTTL          time.Duration
	ReconnectDelay time.Duration
	AutoStart      bool
}

type RateLimitConfig struct {
	MaxPerHour int
	MaxPerDay  int
	Store      string // memory | valkey
}

type WebhookConfig struct {
	BaseURL            string
	PathTemplate       string
	Secret             string
	Timeout            time.Duration
	MaxAttempts        int
	InsecureSkipVerify bool
}

type EventsConfig struct {
	HeartbeatInterval time.Duration
	BufferSize        int
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally
var Global *Config

// LoadConfig loads configuration from environment variables, an optional
// config file registered in viper, or defaults.
func LoadConfig() (*Config, error) {
	storagePath := getEnv("APP_STORAGE_PATH", "storages")

	var basicAuth []string
	if v := getEnv("APP_BASIC_AUTH", ""); v != "" {
		basicAuth = strings.Split(v, ",")
	}

	corsOrigins := []string{"*"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3000"),
		Debug:              getEnvBool("APP_DEBUG", false),
		BasicAuth:          basicAuth,
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: corsOrigins,
		ServerID:           getEnv("APP_SERVER_ID", ""),
		StoragePath:        storagePath,
		RequestsPerMinute:  getEnvInt("APP_REQUESTS_PER_MINUTE", 1000),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	accounts, err := loadAccounts()
	if err != nil {
		return nil, err
	}

	dbCfg := DatabaseConfig{
		URI:             getEnv("DB_URI", fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(storagePath, "whatsapp-%s.db"))),
		ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
		ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
		ValkeyDB:        getEnvInt("VALKEY_DB", 0),
		ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "wagw:"),
	}

	waCfg := WhatsappConfig{
		LogLevel: getEnv("WHATSAPP_LOG_LEVEL", "INFO"),
		OS:       getEnv("WHATSAPP_OS", "Linux"),
	}

	cfg := &Config{
		App:      appCfg,
		Accounts: accounts,
		Database: dbCfg,
		Whatsapp: waCfg,
		Session: SessionConfig{
			QRTTL:          getEnvDuration("SESSION_QR_TTL", 2*time.Minute),
			ReconnectDelay: getEnvDuration("SESSION_RECONNECT_DELAY", 5*time.Second),
			AutoStart:      getEnvBool("SESSION_AUTO_START", false),
		},
		RateLimit: RateLimitConfig{
			MaxPerHour: getEnvInt("RATE_LIMIT_PER_HOUR", 20),
			MaxPerDay:  getEnvInt("RATE_LIMIT_PER_DAY", 100),
			Store:      strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),
		},
		Webhook: WebhookConfig{
			BaseURL:            strings.TrimSuffix(getEnv("WEBHOOK_BASE_URL", ""), "/"),
			PathTemplate:       getEnv("WEBHOOK_PATH", "/webhook/{account_id}"),
			Secret:             getEnv("WEBHOOK_SECRET", ""),
			Timeout:            getEnvDuration("WEBHOOK_TIMEOUT", 30*time.Second),
			MaxAttempts:        getEnvInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InsecureSkipVerify: getEnvBool("WEBHOOK_INSECURE_SKIP_VERIFY", false),
		},
		Events: EventsConfig{
			HeartbeatInterval: getEnvDuration("EVENTS_HEARTBEAT_INTERVAL", 30*time.Second),
			BufferSize:        getEnvInt("EVENTS_BUFFER_SIZE", 100),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("WORKER_POOL_SIZE", 6),
			QueueSize: getEnvInt("WORKER_QUEUE_SIZE", 250),
		},
	}

	Global = cfg
	return cfg, nil
}

// loadAccounts reads the account list from the config file (accounts: [...])
// and falls back to the ACCOUNTS env var: "id:Display Name[:type],..."
func loadAccounts() ([]AccountConfig, error) {
	var accounts []AccountConfig
	if viper.IsSet("accounts") {
		if err := viper.UnmarshalKey("accounts", &accounts); err == nil && len(accounts) > 0 {
			return normalizeAccounts(accounts)
		}
	}

	raw := getEnv("ACCOUNTS", "acct-1:Account 1")
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		acc := AccountConfig{ID: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			acc.DisplayName = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			acc.Type = strings.TrimSpace(parts[2])
		}
		accounts = append(accounts, acc)
	}
	return normalizeAccounts(accounts)
}

func normalizeAccounts(accounts []AccountConfig) ([]AccountConfig, error) {
	seen := make(map[string]struct{}, len(accounts))
	out := make([]AccountConfig, 0, len(accounts))
	for _, acc := range accounts {
		if acc.ID == "" {
			return nil, fmt.Errorf("account entry without id")
		}
		if _, dup := seen[acc.ID]; dup {
			return nil, fmt.Errorf("duplicate account id %q", acc.ID)
		}
		seen[acc.ID] = struct{}{}
		if acc.DisplayName == "" {
			acc.DisplayName = acc.ID
		}
		if acc.Type == "" {
			acc.Type = "whatsapp"
		}
		out = append(out, acc)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no accounts configured")
	}
	return out, nil
}

// WebhookURL resolves the webhook endpoint for an account, or "" when
// forwarding is disabled.
func (c *Config) WebhookURL(accountID string) string {
	if c.Webhook.BaseURL == "" {
		return ""
	}
	path := c.Webhook.PathTemplate
	for _, acc := range c.Accounts {
		if acc.ID == accountID && acc.WebhookPath != "" {
			path = acc.WebhookPath
			break
		}
	}
	path = strings.ReplaceAll(path, "{account_id}", accountID)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.Webhook.BaseURL + path
}

// DeviceStoreURI returns the sqlstore dialect and address for an account.
func (c *Config) DeviceStoreURI(accountID string) (dialect, address string) {
	uri := c.Database.URI
	if strings.Contains(uri, "%s") {
		uri = fmt.Sprintf(uri, accountID)
	}
	if strings.HasPrefix(uri, "postgres:") || strings.HasPrefix(uri, "postgresql:") {
		return "postgres", uri
	}
	return "sqlite3", uri
}
