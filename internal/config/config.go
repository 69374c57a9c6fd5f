package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	cfg     *APIConfig
	cfgErr  error
	once    sync.Once
	cfgLock sync.RWMutex
)

// APIConfig represents the root element.
type APIConfig struct {
	XMLName     xml.Name        `xml:"API"`
	RequestDump bool            `xml:"REQUEST_DUMP,attr"`
	Context     ContextConfig   `xml:"CONTEXT"`
	DB          DBConfig        `xml:"DB"`
	Wizard      WizardConfig    `xml:"WIZARD"`
	Logging     LoggingConfig   `xml:"LOGGING"`
	RateLimit   RateLimitConfig `xml:"RATE_LIMIT"`
	Cache       CacheConfig     `xml:"CACHE"`
	Receipts    ReceiptConfig   `xml:"RECEIPTS"`
}

// ContextConfig holds basic server settings.
type ContextConfig struct {
	Port         int      `xml:"PORT"`
	Host         string   `xml:"HOST"`
	Path         string   `xml:"PATH"`
	TimeZone     string   `xml:"TIME_ZONE"`
	AllowOrigins []string `xml:"CORS>ORIGIN"`
}

// DBConfig holds database connection settings. DRIVER is "postgres" or "memory".
type DBConfig struct {
	Initialize bool         `xml:"INITIALIZE"`
	Host       string       `xml:"HOST"`
	Port       int          `xml:"PORT"`
	Driver     string       `xml:"DRIVER"`
	SSLMode    string       `xml:"SSL_MODE"`
	Names      DBNames      `xml:"NAMES"`
	Username   string       `xml:"USERNAME"`
	Password   DBPassword   `xml:"PASSWORD"`
	Pool       DBPoolConfig `xml:"POOL"`
}

// DBNames holds the names defined in the DB section.
type DBNames struct {
	GUARD string `xml:"GUARD,attr"`
}

// DBPassword holds password details.
type DBPassword struct {
	Type  string `xml:"TYPE,attr"`
	Value string `xml:",chardata"`
}

// DBPoolConfig holds database connection pooling settings.
type DBPoolConfig struct {
	MaxOpenConns    int `xml:"MAX_OPEN_CONNS"`
	MaxIdleConns    int `xml:"MAX_IDLE_CONNS"`
	ConnMaxLifetime int `xml:"CONN_MAX_LIFETIME"`
}

// WizardConfig configures the respondent-facing flow.
type WizardConfig struct {
	// ReportAPIURL, when set, points the wizard at a remote persistence service
	// instead of the in-process one.
	ReportAPIURL    string `xml:"REPORT_API_URL"`
	AutosaveQuietMS int    `xml:"AUTOSAVE_QUIET_MS"`
	RequestTimeout  int    `xml:"REQUEST_TIMEOUT_SECONDS"`
	EvictSchedule   string `xml:"EVICT_SCHEDULE"`
	EvictIdleMin    int    `xml:"EVICT_IDLE_MINUTES"`
}

type LoggingConfig struct {
	Dir        string `xml:"DIR"`
	Level      string `xml:"LEVEL"`
	MaxSizeMB  int    `xml:"MAX_SIZE_MB"`
	MaxBackups int    `xml:"MAX_BACKUPS"`
	MaxAgeDays int    `xml:"MAX_AGE_DAYS"`
	Compress   bool   `xml:"COMPRESS"`
}

type RateLimitConfig struct {
	Enabled        bool    `xml:"ENABLED,attr"`
	RequestsPerMin float64 `xml:"REQUESTS_PER_MINUTE"`
	Burst          int     `xml:"BURST"`
}

// CacheConfig enables the redis read cache when ADDR is set.
type CacheConfig struct {
	Addr       string `xml:"ADDR"`
	Password   string `xml:"PASSWORD"`
	DB         int    `xml:"DB"`
	TTLSeconds int    `xml:"TTL_SECONDS"`
}

type ReceiptConfig struct {
	Dir string `xml:"DIR"`
}

// Parse decodes an XML document, applies defaults and environment overrides.
func Parse(data []byte) (*APIConfig, error) {
	var c APIConfig
	if err := xml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfig loads .env if present, then reads and parses the XML configuration
// from the given file. The first successful load is cached.
func LoadConfig(xmlPath string) (*APIConfig, error) {
	once.Do(func() {
		_ = godotenv.Load()

		data, err := os.ReadFile(xmlPath)
		if err != nil {
			cfgErr = fmt.Errorf("read config %s: %w", xmlPath, err)
			return
		}
		parsed, err := Parse(data)
		if err != nil {
			cfgErr = err
			return
		}
		SetConfig(parsed)
	})

	if c := GetConfig(); c != nil {
		return c, nil
	}
	if cfgErr == nil {
		cfgErr = os.ErrInvalid
	}
	return nil, cfgErr
}

// GetConfig returns the loaded configuration.
func GetConfig() *APIConfig {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// SetConfig replaces the loaded configuration; used by tests and the migrate command.
func SetConfig(c *APIConfig) {
	cfgLock.Lock()
	cfg = c
	cfgLock.Unlock()
}

func (c *APIConfig) applyDefaults() {
	if c.Context.Host == "" {
		c.Context.Host = "0.0.0.0"
	}
	if c.Context.Port == 0 {
		c.Context.Port = 8080
	}
	if len(c.Context.AllowOrigins) == 0 {
		c.Context.AllowOrigins = []string{"*"}
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "postgres"
	}
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Wizard.AutosaveQuietMS <= 0 {
		c.Wizard.AutosaveQuietMS = 1000
	}
	if c.Wizard.RequestTimeout <= 0 {
		c.Wizard.RequestTimeout = 10
	}
	if c.Wizard.EvictSchedule == "" {
		c.Wizard.EvictSchedule = "@every 5m"
	}
	if c.Wizard.EvictIdleMin <= 0 {
		c.Wizard.EvictIdleMin = 30
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.RateLimit.RequestsPerMin <= 0 {
		c.RateLimit.RequestsPerMin = 30
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Receipts.Dir == "" {
		c.Receipts.Dir = "working/receipts"
	}
}

func (c *APIConfig) applyEnv() {
	if v, ok := os.LookupEnv("REPORT_API_URL"); ok {
		c.Wizard.ReportAPIURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.DB.Password.Value = v
	}
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		c.Cache.Addr = strings.TrimSpace(v)
	}
}

// Validate rejects configurations the server cannot start with.
func (c *APIConfig) Validate() error {
	switch c.DB.Driver {
	case "postgres":
		if c.DB.Host == "" || c.DB.Names.GUARD == "" {
			return fmt.Errorf("config: DB HOST and NAMES GUARD are required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unsupported DB DRIVER %q", c.DB.Driver)
	}
	if c.Context.Port < 0 || c.Context.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Context.Port)
	}
	return nil
}

func (c *APIConfig) AutosaveQuiet() time.Duration {
	return time.Duration(c.Wizard.AutosaveQuietMS) * time.Millisecond
}

func (c *APIConfig) EvictIdle() time.Duration {
	return time.Duration(c.Wizard.EvictIdleMin) * time.Minute
}

func (c *APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Wizard.RequestTimeout) * time.Second
}

func (c *APIConfig) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Addr is the listen address.
func (c *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Context.Host, c.Context.Port)
}
