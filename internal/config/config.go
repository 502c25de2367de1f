package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Flow toggles the optional parts of the personality-test flow.
type Flow struct {
	Timer         bool          `yaml:"timer"`
	Guard         bool          `yaml:"guard"`
	ImageStage    bool          `yaml:"image_stage"`
	Duration      time.Duration `yaml:"duration"`
	MaxViolations int           `yaml:"max_violations"`
	Retention     time.Duration `yaml:"retention"`
}

type Config struct {
	Mode      Mode   `yaml:"mode"`
	HTTPAddr  string `yaml:"http_addr"`
	PublicURL string `yaml:"public_url"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	BlobBasePath string `yaml:"blob_base_path"`

	// external collaborators
	PrimaryAPIURL       string        `yaml:"primary_api_url"`
	PrimaryTokenURL     string        `yaml:"primary_token_url"`
	PrimaryClientID     string        `yaml:"primary_client_id"`
	PrimaryClientSecret string        `yaml:"primary_client_secret"`
	FallbackDriver      string        `yaml:"fallback_driver"` // http|gemini
	FallbackAPIURL      string        `yaml:"fallback_api_url"`
	GeminiAPIKey        string        `yaml:"gemini_api_key"`
	GeminiModel         string        `yaml:"gemini_model"`
	HTTPClientTimeout   time.Duration `yaml:"http_client_timeout"`

	ScoreRetryAttempts int           `yaml:"score_retry_attempts"`
	ScoreRetryDelay    time.Duration `yaml:"score_retry_delay"`

	Flow Flow `yaml:"flow"`

	AuthHMACSecret string `yaml:"auth_hmac_secret"`
	AdminUser      string `yaml:"admin_user"`
	AdminPassHash  string `yaml:"admin_pass_hash"` // bcrypt

	// recruiter login is off while either is empty
	RecruiterUser     string `yaml:"recruiter_user"`
	RecruiterPassHash string `yaml:"recruiter_pass_hash"`

	CORSOriginsOnline  []string `yaml:"cors_origins_online"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json|console
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Mode:               ModeOffline,
		HTTPAddr:           ":8080",
		DBDriver:           "sqlite",
		BlobBasePath:       "./data",
		PrimaryAPIURL:      "http://127.0.0.1:8000",
		FallbackDriver:     "http",
		FallbackAPIURL:     "http://127.0.0.1:8001",
		GeminiModel:        "gemini-2.5-flash",
		HTTPClientTimeout:  15 * time.Second,
		ScoreRetryAttempts: 3,
		ScoreRetryDelay:    time.Second,
		Flow: Flow{
			Timer:         true,
			Guard:         true,
			ImageStage:    true,
			Duration:      10 * time.Minute,
			MaxViolations: 3,
			Retention:     5 * time.Minute,
		},
		AuthHMACSecret:     "supersecret-dev-key",
		AdminUser:          "admin",
		AdminPassHash:      "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji",
		CORSOriginsOnline:  []string{"https://jobs.example.com"},
		CORSOriginsOffline: []string{"http://localhost:3000"},
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load reads the optional YAML file named by CONFIG_FILE and then applies
// environment overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

// FromEnv builds a Config from defaults and environment only.
func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Mode = Mode(envOr("MODE", string(c.Mode)))
	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.PublicURL = envOr("PUBLIC_URL", c.PublicURL)
	c.DBDriver = envOr("DB_DRIVER", c.DBDriver)
	c.DBDSN = envOr("DB_DSN", c.DBDSN)
	c.BlobBasePath = envOr("BLOB_BASE_PATH", c.BlobBasePath)

	c.PrimaryAPIURL = strings.TrimSuffix(envOr("PRIMARY_API_URL", c.PrimaryAPIURL), "/")
	c.PrimaryTokenURL = envOr("PRIMARY_TOKEN_URL", c.PrimaryTokenURL)
	c.PrimaryClientID = envOr("PRIMARY_CLIENT_ID", c.PrimaryClientID)
	c.PrimaryClientSecret = envOr("PRIMARY_CLIENT_SECRET", c.PrimaryClientSecret)
	c.FallbackDriver = envOr("FALLBACK_DRIVER", c.FallbackDriver)
	c.FallbackAPIURL = strings.TrimSuffix(envOr("FALLBACK_API_URL", c.FallbackAPIURL), "/")
	c.GeminiAPIKey = envOr("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = envOr("GEMINI_MODEL", c.GeminiModel)
	c.HTTPClientTimeout = envDuration("HTTP_CLIENT_TIMEOUT", c.HTTPClientTimeout)

	c.ScoreRetryAttempts = envInt("SCORE_RETRY_ATTEMPTS", c.ScoreRetryAttempts)
	c.ScoreRetryDelay = envDuration("SCORE_RETRY_DELAY", c.ScoreRetryDelay)

	c.Flow.Timer = envBool("FLOW_TIMER", c.Flow.Timer)
	c.Flow.Guard = envBool("FLOW_GUARD", c.Flow.Guard)
	c.Flow.ImageStage = envBool("FLOW_IMAGE_STAGE", c.Flow.ImageStage)
	c.Flow.Duration = envDuration("FLOW_DURATION", c.Flow.Duration)
	c.Flow.MaxViolations = envInt("FLOW_MAX_VIOLATIONS", c.Flow.MaxViolations)
	c.Flow.Retention = envDuration("FLOW_RETENTION", c.Flow.Retention)

	c.AuthHMACSecret = envOr("AUTH_HMAC_SECRET", c.AuthHMACSecret)
	c.AdminUser = envOr("ADMIN_USER", c.AdminUser)
	c.AdminPassHash = envOr("ADMIN_PASS_HASH", c.AdminPassHash)
	c.RecruiterUser = envOr("RECRUITER_USER", c.RecruiterUser)
	c.RecruiterPassHash = envOr("RECRUITER_PASS_HASH", c.RecruiterPassHash)
	c.CORSOriginsOnline = csvOr("CORS_ORIGINS_ONLINE", c.CORSOriginsOnline)
	c.CORSOriginsOffline = csvOr("CORS_ORIGINS_OFFLINE", c.CORSOriginsOffline)

	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
}

// Validate rejects settings the gateway cannot run with.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	switch c.FallbackDriver {
	case "http", "gemini":
	default:
		return fmt.Errorf("unknown fallback driver %q", c.FallbackDriver)
	}
	if c.PrimaryAPIURL == "" {
		return fmt.Errorf("primary api url is required")
	}
	if c.ScoreRetryAttempts < 1 {
		return fmt.Errorf("score_retry_attempts must be >= 1")
	}
	if c.Flow.Timer && c.Flow.Duration <= 0 {
		return fmt.Errorf("flow duration must be positive when the timer is on")
	}
	if c.Flow.Guard && c.Flow.MaxViolations < 1 {
		return fmt.Errorf("flow max_violations must be >= 1 when the guard is on")
	}
	return nil
}

// CORSOrigins returns the allowed origins for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
func envDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
