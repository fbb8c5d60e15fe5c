// Package config defines the onboarding service configuration.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	infraconfig "github.com/Fusionaimcp4/localboxs/infrastructure/config"
	infralogger "github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

const (
	defaultServerHost      = "0.0.0.0"
	defaultServerPort      = 8060
	defaultServerTimeout   = 30 * time.Second
	defaultOnboardTimeout  = 5 * time.Minute
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultRedisAddress    = "localhost:6379"

	defaultSkeletonPath       = "./data/templates/n8n_System_Message.md"
	defaultDemoDomain         = "localboxs.com"
	defaultDemoRoot           = "./public/demos"
	defaultSystemMessagesRoot = "./public/system_messages"
	defaultRegistryPath       = "./data/registry/demos.json"
	defaultRegistryRedisKey   = "localboxs:demos"
	defaultChatwootBaseURL    = "https://chatwoot.mcp4.ai"
	defaultN8NBaseURL         = "https://n8n.sost.work"
	defaultAnthropicModel     = "claude-sonnet-4-5"

	defaultFetchTimeout    = 20 * time.Second
	defaultFetchMaxBytes   = 5 << 20
	defaultMaxRedirects    = 5
	defaultLinkLimit       = 25
	defaultLLMTimeout      = 90 * time.Second
	defaultLLMMaxTokens    = 4096
	defaultLLMMaxInput     = 60000
	defaultHelpdeskTimeout = 15 * time.Second
	defaultN8NTimeout      = 20 * time.Second
	defaultRateLimitRPS    = 0.2
	defaultRateLimitBurst  = 3
	defaultReconcileSpec   = "@every 1h"
	defaultUserAgent       = "Mozilla/5.0 (compatible; LocalBoxsBot/1.0; +https://localboxs.com)"
)

// Config is the root configuration, loaded from config.yml with env overrides.
type Config struct {
	Debug     bool               `env:"APP_DEBUG" yaml:"debug"`
	Server    ServerConfig       `yaml:"server"`
	Logging   infralogger.Config `yaml:"logging"`
	Database  DatabaseConfig     `yaml:"database"`
	Redis     RedisConfig        `yaml:"redis"`
	Auth      AuthConfig         `yaml:"auth"`
	Paths     PathsConfig        `yaml:"paths"`
	Demo      DemoConfig         `yaml:"demo"`
	Registry  RegistryConfig     `yaml:"registry"`
	Fetch     FetchConfig        `yaml:"fetch"`
	LLM       LLMConfig          `yaml:"llm"`
	Chatwoot  ChatwootConfig     `yaml:"chatwoot"`
	N8N       N8NConfig          `yaml:"n8n"`
	RateLimit RateLimitConfig    `yaml:"rate_limit"`
	Reconcile ReconcileConfig    `yaml:"reconcile"`
}

type ServerConfig struct {
	Host           string        `env:"SERVER_HOST"  yaml:"host"`
	Port           int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	OnboardTimeout time.Duration `env:"ONBOARD_TIMEOUT" yaml:"onboard_timeout"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

// DatabaseConfig backs the dashboard tables. Enabled=false runs the
// service without Postgres (the onboarding flow never needs it).
type DatabaseConfig struct {
	Enabled         bool          `env:"DB_ENABLED"  yaml:"enabled"`
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN is the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig is used by the Redis registry backend and onboarding events.
type RedisConfig struct {
	Address       string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password      string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB            int    `env:"REDIS_DB"             yaml:"db"`
	EventsEnabled bool   `env:"REDIS_EVENTS_ENABLED" yaml:"events_enabled"`
}

type AuthConfig struct {
	// JWTSecret protects the dashboard API. Empty leaves it open.
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// PathsConfig holds the filesystem layout of inputs and generated artifacts.
type PathsConfig struct {
	SkeletonPath       string `env:"SKELETON_PATH"        yaml:"skeleton_path"`
	DemoRoot           string `env:"DEMO_ROOT"            yaml:"demo_root"`
	SystemMessagesRoot string `env:"SYSTEM_MESSAGES_ROOT" yaml:"system_messages_root"`
	// WatchSkeleton reloads the skeleton when the file changes.
	WatchSkeleton bool `env:"SKELETON_WATCH" yaml:"watch_skeleton"`
}

type DemoConfig struct {
	// Domain is the parent domain of https://<slug>-demo.<domain>.
	Domain string `env:"DEMO_DOMAIN" yaml:"domain"`
}

// RegistryConfig selects the demo registry backend: "file" or "redis".
type RegistryConfig struct {
	Backend  string `env:"REGISTRY_BACKEND"   yaml:"backend"`
	Path     string `env:"REGISTRY_PATH"      yaml:"path"`
	RedisKey string `env:"REGISTRY_REDIS_KEY" yaml:"redis_key"`
}

type FetchConfig struct {
	Timeout      time.Duration `env:"FETCH_TIMEOUT"   yaml:"timeout"`
	MaxBodyBytes int64         `env:"FETCH_MAX_BYTES" yaml:"max_body_bytes"`
	MaxRedirects int           `yaml:"max_redirects"`
	UserAgent    string        `env:"FETCH_USER_AGENT" yaml:"user_agent"`
	// LinkLimit caps discovered canonical links. 0 takes the default and a
	// negative value disables discovery.
	LinkLimit int `env:"FETCH_LINK_LIMIT" yaml:"link_limit"`
}

type LLMConfig struct {
	APIKey        string        `env:"ANTHROPIC_API_KEY"  yaml:"api_key"`
	BaseURL       string        `env:"ANTHROPIC_BASE_URL" yaml:"base_url"`
	Model         string        `env:"ANTHROPIC_MODEL"    yaml:"model"`
	MaxTokens     int64         `yaml:"max_tokens"`
	MaxInputChars int           `yaml:"max_input_chars"`
	Timeout       time.Duration `env:"LLM_TIMEOUT" yaml:"timeout"`
}

type ChatwootConfig struct {
	BaseURL   string        `env:"CHATWOOT_BASE_URL"   yaml:"base_url"`
	AccountID string        `env:"CHATWOOT_ACCOUNT_ID" yaml:"account_id"`
	APIKey    string        `env:"CHATWOOT_API_KEY"    yaml:"api_key"`
	Timeout   time.Duration `env:"CHATWOOT_TIMEOUT"    yaml:"timeout"`
	// AssignAttempts names the bot assignment shapes to try, in order.
	// Empty means all known shapes in their default order.
	AssignAttempts []string `env:"CHATWOOT_ASSIGN_ATTEMPTS" yaml:"assign_attempts"`
}

type N8NConfig struct {
	BaseURL            string        `env:"N8N_BASE_URL"             yaml:"base_url"`
	APIKey             string        `env:"N8N_API_KEY"              yaml:"api_key"`
	TemplateWorkflowID string        `env:"N8N_TEMPLATE_WORKFLOW_ID" yaml:"template_workflow_id"`
	Timeout            time.Duration `env:"N8N_TIMEOUT"              yaml:"timeout"`
	// Roles maps node roles (agent, webhook, helpdesk_http) to node ids or
	// names in the template. When empty the name heuristics are used.
	Roles map[string][]string `yaml:"roles"`
}

// Enabled reports whether workflow cloning is configured.
func (n N8NConfig) Enabled() bool {
	return n.BaseURL != "" && n.APIKey != "" && n.TemplateWorkflowID != ""
}

type RateLimitConfig struct {
	// RequestsPerSecond per client IP on POST /onboard. 0 takes the
	// default and a negative value disables limiting.
	RequestsPerSecond float64 `env:"ONBOARD_RATE_LIMIT_RPS" yaml:"requests_per_second"`
	Burst             int     `env:"ONBOARD_RATE_LIMIT_BURST" yaml:"burst"`
}

type ReconcileConfig struct {
	Enabled  bool   `env:"RECONCILE_ENABLED"  yaml:"enabled"`
	Schedule string `env:"RECONCILE_SCHEDULE" yaml:"schedule"`
	// Prune drops registry entries whose inbox no longer exists.
	Prune bool `env:"RECONCILE_PRUNE" yaml:"prune"`
}

// Load reads, defaults and validates the configuration.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("invalid config: %w", validationErr)
	}
	return cfg, nil
}

// LoadDatabase reads only the database section, for tools that need no
// other settings.
func LoadDatabase(path string) (DatabaseConfig, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("load config: %w", err)
	}
	db := cfg.Database
	if validationErr := infraconfig.Join(
		infraconfig.ValidateRequired("database.host", db.Host),
		infraconfig.ValidatePort("database.port", db.Port),
		infraconfig.ValidateRequired("database.user", db.User),
		infraconfig.ValidateRequired("database.dbname", db.DBName),
	); validationErr != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid config: %w", validationErr)
	}
	return db, nil
}

// URL is the postgres:// form of the connection settings.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Validate checks the settings the onboarding flow cannot run without.
func (c *Config) Validate() error {
	checks := []error{
		infraconfig.ValidatePort("server.port", c.Server.Port),
		infraconfig.ValidateLogLevel("logging.level", c.Logging.Level),
		infraconfig.ValidateRequired("paths.skeleton_path", c.Paths.SkeletonPath),
		infraconfig.ValidateRequired("llm.api_key", c.LLM.APIKey),
		infraconfig.ValidateURL("chatwoot.base_url", c.Chatwoot.BaseURL),
		infraconfig.ValidateRequired("chatwoot.account_id", c.Chatwoot.AccountID),
		infraconfig.ValidateRequired("chatwoot.api_key", c.Chatwoot.APIKey),
	}

	if c.N8N.BaseURL != "" {
		checks = append(checks, infraconfig.ValidateURL("n8n.base_url", c.N8N.BaseURL))
	}

	switch c.Registry.Backend {
	case "file":
		checks = append(checks, infraconfig.ValidateRequired("registry.path", c.Registry.Path))
	case "redis":
		checks = append(checks, infraconfig.ValidateRequired("redis.address", c.Redis.Address))
	default:
		checks = append(checks, &infraconfig.ValidationError{Field: "registry.backend", Message: "must be file or redis"})
	}

	if c.Database.Enabled {
		checks = append(checks,
			infraconfig.ValidateRequired("database.host", c.Database.Host),
			infraconfig.ValidatePort("database.port", c.Database.Port),
			infraconfig.ValidateRequired("database.user", c.Database.User),
			infraconfig.ValidateRequired("database.dbname", c.Database.DBName),
		)
	}

	return infraconfig.Join(checks...)
}

func setDefaults(cfg *Config) {
	setServerDefaults(&cfg.Server)
	cfg.Logging.SetDefaults()
	setDatabaseDefaults(&cfg.Database)
	setPathDefaults(cfg)
	setClientDefaults(cfg)

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		cfg.RateLimit.RequestsPerSecond = defaultRateLimitRPS
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = defaultRateLimitBurst
	}
	if cfg.Reconcile.Schedule == "" {
		cfg.Reconcile.Schedule = defaultReconcileSpec
	}
}

func setServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = defaultServerHost
	}
	if s.Port == 0 {
		s.Port = defaultServerPort
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = defaultServerTimeout
	}
	// Onboarding waits on an LLM call; the write timeout must outlive it.
	if s.OnboardTimeout == 0 {
		s.OnboardTimeout = defaultOnboardTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = s.OnboardTimeout + defaultServerTimeout
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = defaultDatabasePort
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = defaultMaxOpenConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = defaultConnMaxLifetime
	}
}

func setPathDefaults(cfg *Config) {
	if cfg.Paths.SkeletonPath == "" {
		cfg.Paths.SkeletonPath = defaultSkeletonPath
	}
	if cfg.Paths.DemoRoot == "" {
		cfg.Paths.DemoRoot = defaultDemoRoot
	}
	if cfg.Paths.SystemMessagesRoot == "" {
		cfg.Paths.SystemMessagesRoot = defaultSystemMessagesRoot
	}
	if cfg.Demo.Domain == "" {
		cfg.Demo.Domain = defaultDemoDomain
	}
	if cfg.Registry.Backend == "" {
		cfg.Registry.Backend = "file"
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = defaultRegistryPath
	}
	if cfg.Registry.RedisKey == "" {
		cfg.Registry.RedisKey = defaultRegistryRedisKey
	}
}

func setClientDefaults(cfg *Config) {
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = defaultFetchTimeout
	}
	if cfg.Fetch.MaxBodyBytes == 0 {
		cfg.Fetch.MaxBodyBytes = defaultFetchMaxBytes
	}
	if cfg.Fetch.MaxRedirects == 0 {
		cfg.Fetch.MaxRedirects = defaultMaxRedirects
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = defaultUserAgent
	}
	if cfg.Fetch.LinkLimit == 0 {
		cfg.Fetch.LinkLimit = defaultLinkLimit
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultAnthropicModel
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if cfg.LLM.MaxInputChars == 0 {
		cfg.LLM.MaxInputChars = defaultLLMMaxInput
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = defaultLLMTimeout
	}

	if cfg.Chatwoot.BaseURL == "" {
		cfg.Chatwoot.BaseURL = defaultChatwootBaseURL
	}
	if cfg.Chatwoot.Timeout == 0 {
		cfg.Chatwoot.Timeout = defaultHelpdeskTimeout
	}

	if cfg.N8N.BaseURL == "" {
		cfg.N8N.BaseURL = defaultN8NBaseURL
	}
	if cfg.N8N.Timeout == 0 {
		cfg.N8N.Timeout = defaultN8NTimeout
	}
}
