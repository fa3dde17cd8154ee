package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FileName is the JSON config file looked up in the config directory.
const FileName = "foothold.cfg.json"

// ErrInvalid reports a config key or value the overlay cannot use.
var ErrInvalid = errors.New("invalid config value")

// MaxPoolSize is the largest accepted overlay.poolSize (markers per category).
const MaxPoolSize = 10000

// OverlayConfig holds the operator-facing overlay settings as raw values.
// Parsing into domain types happens in the overlay package.
type OverlayConfig struct {
	ActivationKey     string   `json:"activationKey" mapstructure:"activationKey"`
	Mode              string   `json:"mode" mapstructure:"mode"`
	StandableColor    string   `json:"standableColor" mapstructure:"standableColor"`
	NonStandableColor string   `json:"nonStandableColor" mapstructure:"nonStandableColor"`
	ScanMode          string   `json:"scanMode" mapstructure:"scanMode"`
	Debug             bool     `json:"debug" mapstructure:"debug"`
	PoolSize          int      `json:"poolSize" mapstructure:"poolSize"`
	ScenePrefixes     []string `json:"scenePrefixes" mapstructure:"scenePrefixes"`
}

// DBConfig holds postgres connection settings.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

// JournalConfig selects where scan reports are journaled.
type JournalConfig struct {
	Type       string `json:"type" mapstructure:"type"`
	SQLitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
	DumpPath   string `json:"dumpPath" mapstructure:"dumpPath"`
	QueueLimit int    `json:"queueLimit" mapstructure:"queueLimit"`
	DB         DBConfig
}

// InfluxConfig holds scan telemetry settings.
type InfluxConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Protocol  string
	Token     string
	Org       string
	Bucket    string
	BackupDir string
}

// GraylogConfig holds the GELF sink settings.
type GraylogConfig struct {
	Enabled  bool
	Address  string
	Facility string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	Endpoint       string
	Insecure       bool
	MetricInterval time.Duration
}

// MonitorConfig controls the periodic status file.
type MonitorConfig struct {
	Enabled  bool
	Interval time.Duration
	File     string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// SetDefaults registers every default value. Load calls it; it is exported
// for callers that run without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./footholdlogs")

	viper.SetDefault("overlay.activationKey", "F")
	viper.SetDefault("overlay.mode", "toggle")
	viper.SetDefault("overlay.standableColor", "white")
	viper.SetDefault("overlay.nonStandableColor", "red")
	viper.SetDefault("overlay.scanMode", "timeSliced")
	viper.SetDefault("overlay.debug", false)
	viper.SetDefault("overlay.poolSize", 3000)
	viper.SetDefault("overlay.scenePrefixes", []string{"Level_", "Airport"})

	viper.SetDefault("journal.type", "memory")
	viper.SetDefault("journal.sqlitePath", "")
	viper.SetDefault("journal.dumpPath", "")
	viper.SetDefault("journal.queueLimit", 256)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "foothold")
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "foothold")
	viper.SetDefault("influx.bucket", "scans")
	viper.SetDefault("influx.backupDir", "./footholdlogs/influx")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
	viper.SetDefault("graylog.facility", "foothold")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "foothold")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metricInterval", "30s")

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.file", "./footholdlogs/status.txt")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetOverlayConfig returns the current overlay settings.
func GetOverlayConfig() OverlayConfig {
	return OverlayConfig{
		ActivationKey:     viper.GetString("overlay.activationKey"),
		Mode:              viper.GetString("overlay.mode"),
		StandableColor:    viper.GetString("overlay.standableColor"),
		NonStandableColor: viper.GetString("overlay.nonStandableColor"),
		ScanMode:          viper.GetString("overlay.scanMode"),
		Debug:             viper.GetBool("overlay.debug"),
		PoolSize:          viper.GetInt("overlay.poolSize"),
		ScenePrefixes:     viper.GetStringSlice("overlay.scenePrefixes"),
	}
}

func GetJournalConfig() JournalConfig {
	return JournalConfig{
		Type:       viper.GetString("journal.type"),
		SQLitePath: viper.GetString("journal.sqlitePath"),
		DumpPath:   viper.GetString("journal.dumpPath"),
		QueueLimit: viper.GetInt("journal.queueLimit"),
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
			SSLMode:  viper.GetString("db.sslmode"),
		},
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:   viper.GetBool("influx.enabled"),
		Host:      viper.GetString("influx.host"),
		Port:      viper.GetString("influx.port"),
		Protocol:  viper.GetString("influx.protocol"),
		Token:     viper.GetString("influx.token"),
		Org:       viper.GetString("influx.org"),
		Bucket:    viper.GetString("influx.bucket"),
		BackupDir: viper.GetString("influx.backupDir"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled:  viper.GetBool("graylog.enabled"),
		Address:  viper.GetString("graylog.address"),
		Facility: viper.GetString("graylog.facility"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
	}
}

func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
		File:     viper.GetString("monitor.file"),
	}
}

// Set overrides one overlay key at runtime. Only overlay.* keys may be set;
// the value is converted to the key's type.
func Set(key, value string) error {
	k, v, err := parseOverlayValue(key, value)
	if err != nil {
		return err
	}
	viper.Set(k, v)
	return nil
}

// With returns a copy of c with one overlay key changed, using the same
// conversion rules as Set.
func (c OverlayConfig) With(key, value string) (OverlayConfig, error) {
	k, v, err := parseOverlayValue(key, value)
	if err != nil {
		return c, err
	}
	switch k {
	case "overlay.debug":
		c.Debug = v.(bool)
	case "overlay.poolsize":
		c.PoolSize = v.(int)
	case "overlay.sceneprefixes":
		c.ScenePrefixes = v.([]string)
	case "overlay.activationkey":
		c.ActivationKey = v.(string)
	case "overlay.mode":
		c.Mode = v.(string)
	case "overlay.standablecolor":
		c.StandableColor = v.(string)
	case "overlay.nonstandablecolor":
		c.NonStandableColor = v.(string)
	case "overlay.scanmode":
		c.ScanMode = v.(string)
	}
	return c, nil
}

// parseOverlayValue normalises key to viper's lower-case form and converts value.
func parseOverlayValue(key, value string) (string, any, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if !strings.HasPrefix(k, "overlay.") {
		return "", nil, fmt.Errorf("%w: key %q is not runtime-settable", ErrInvalid, key)
	}

	switch k {
	case "overlay.debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, value, err)
		}
		return k, b, nil
	case "overlay.poolsize":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || n > MaxPoolSize {
			return "", nil, fmt.Errorf("%w: %s must be an integer in [1, %d], got %q", ErrInvalid, key, MaxPoolSize, value)
		}
		return k, n, nil
	case "overlay.sceneprefixes":
		prefixes := []string{}
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				prefixes = append(prefixes, p)
			}
		}
		return k, prefixes, nil
	case "overlay.activationkey", "overlay.mode", "overlay.standablecolor",
		"overlay.nonstandablecolor", "overlay.scanmode":
		v := strings.TrimSpace(value)
		if v == "" {
			return "", nil, fmt.Errorf("%w: %s must not be empty", ErrInvalid, key)
		}
		return k, v, nil
	}
	return "", nil, fmt.Errorf("%w: unknown key %q", ErrInvalid, key)
}

// Watch re-reads the config file on change and hands the new overlay
// settings to fn. fn runs on the watcher goroutine.
func Watch(fn func(OverlayConfig)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		fn(GetOverlayConfig())
	})
	viper.WatchConfig()
}
