package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fleet-tracker/common/config"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Source backends.
const (
	BackendRedis    = "redis"
	BackendMQTT     = "mqtt"
	BackendPostgres = "postgres"
	BackendREST     = "rest"
	BackendMemory   = "memory"
)

// Map surfaces.
const (
	SurfaceMemory = "memory"
	SurfaceMQTT   = "mqtt"
)

// ErrInvalidConfig configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// SourcesConfig backend of each tracking source.
type SourcesConfig struct {
	Positions string `yaml:"positions" validate:"oneof=redis mqtt postgres rest memory"`
	Units     string `yaml:"units" validate:"oneof=redis mqtt postgres rest memory"`
	Personnel string `yaml:"personnel" validate:"oneof=redis mqtt postgres rest memory"`
	Notes     string `yaml:"activity_notes" validate:"oneof=redis mqtt postgres rest memory"`
}

// Backends backend per source name.
func (s SourcesConfig) Backends() map[string]string {
	return map[string]string{
		"positions":      s.Positions,
		"units":          s.Units,
		"personnel":      s.Personnel,
		"activity_notes": s.Notes,
	}
}

// Uses reports whether any source is served by backend.
func (s SourcesConfig) Uses(backend string) bool {
	for _, b := range s.Backends() {
		if b == backend {
			return true
		}
	}
	return false
}

// MapConfig map reconciler settings.
type MapConfig struct {
	Surface     string  `yaml:"surface" validate:"oneof=memory mqtt"`
	TopicPrefix string  `yaml:"topic_prefix"`
	FitPadding  float64 `yaml:"fit_padding" validate:"gte=0,lte=1"`
	FocusZoom   int     `yaml:"focus_zoom" validate:"gte=1,lte=22"`
}

// CacheConfig projection cache settings.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Prefix  string        `yaml:"prefix"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

// TrackingConfig unit tracking settings.
type TrackingConfig struct {
	ViewID          string        `yaml:"view_id" validate:"required"`
	Sources         SourcesConfig `yaml:"sources"`
	StreamPrefix    string        `yaml:"stream_prefix"`
	StreamBlock     time.Duration `yaml:"stream_block" validate:"gte=0"`
	MQTTTopicPrefix string        `yaml:"mqtt_topic_prefix"`
	PollInterval    time.Duration `yaml:"poll_interval" validate:"gte=0"`
	RESTBaseURL     string        `yaml:"rest_base_url" validate:"omitempty,url"`
	RESTToken       string        `yaml:"rest_token"`
	Timezone        string        `yaml:"timezone"`
	RenderInterval  time.Duration `yaml:"render_interval" validate:"gte=0"`
	StaleSelection  string        `yaml:"stale_selection" validate:"oneof=retain clear"`
	Map             MapConfig     `yaml:"map"`
	Cache           CacheConfig   `yaml:"cache"`
}

// Location parsed Timezone; "" or "Local" means the host zone.
func (t TrackingConfig) Location() (*time.Location, error) {
	if t.Timezone == "" || t.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", t.Timezone, err)
	}
	return loc, nil
}

// Config fleet-tracker service configuration
type Config struct {
	Database config.DatabaseConfig `yaml:"database"`
	Redis    config.RedisConfig    `yaml:"redis"`
	MQTT     config.MQTTConfig     `yaml:"mqtt"`
	Tracking TrackingConfig        `yaml:"tracking"`

	HTTP struct {
		Addr string `yaml:"addr" validate:"required"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
		Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	} `yaml:"log"`
}

// Default configuration before file and environment overrides.
func Default() *Config {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "fleet"
	cfg.Database.SSLMode = "disable"

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "fleet-tracker"
	cfg.MQTT.QoS = 1

	cfg.Tracking.ViewID = "default"
	cfg.Tracking.Sources = SourcesConfig{
		Positions: BackendRedis,
		Units:     BackendRedis,
		Personnel: BackendRedis,
		Notes:     BackendRedis,
	}
	cfg.Tracking.StreamPrefix = "fleet:tracking:"
	cfg.Tracking.StreamBlock = 5 * time.Second
	cfg.Tracking.MQTTTopicPrefix = "fleet/tracking"
	cfg.Tracking.PollInterval = 10 * time.Second
	cfg.Tracking.RenderInterval = 30 * time.Second
	cfg.Tracking.StaleSelection = "retain"
	cfg.Tracking.Map = MapConfig{
		Surface:     SurfaceMemory,
		TopicPrefix: "fleet/map",
		FitPadding:  0.1,
		FocusZoom:   16,
	}
	cfg.Tracking.Cache = CacheConfig{
		Enabled: true,
		Prefix:  "fleet:tracking:view:",
		TTL:     60 * time.Second,
	}

	cfg.HTTP.Addr = ":8090"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load defaults, then the YAML file named by CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile like Load with an explicit YAML path ("" = none).
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate struct tags plus cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Tracking.Sources.Uses(BackendREST) && c.Tracking.RESTBaseURL == "" {
		return fmt.Errorf("%w: TRACKING_REST_BASE_URL is required for rest sources", ErrInvalidConfig)
	}
	if _, err := c.Tracking.Location(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.LoadFromEnv("DB")
	c.Redis.LoadFromEnv("REDIS")
	c.MQTT.LoadFromEnv("MQTT")

	t := &c.Tracking
	setString(&t.ViewID, "TRACKING_VIEW_ID")
	setString(&t.Sources.Positions, "TRACKING_SOURCE_POSITIONS")
	setString(&t.Sources.Units, "TRACKING_SOURCE_UNITS")
	setString(&t.Sources.Personnel, "TRACKING_SOURCE_PERSONNEL")
	setString(&t.Sources.Notes, "TRACKING_SOURCE_NOTES")
	setString(&t.StreamPrefix, "TRACKING_STREAM_PREFIX")
	if ms := getEnv("TRACKING_STREAM_BLOCK_MS", ""); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v >= 0 {
			t.StreamBlock = time.Duration(v) * time.Millisecond
		}
	}
	setString(&t.MQTTTopicPrefix, "TRACKING_MQTT_TOPIC_PREFIX")
	setDuration(&t.PollInterval, "TRACKING_POLL_INTERVAL")
	setString(&t.RESTBaseURL, "TRACKING_REST_BASE_URL")
	setString(&t.RESTToken, "TRACKING_REST_TOKEN")
	setString(&t.Timezone, "TRACKING_TIMEZONE")
	setDuration(&t.RenderInterval, "TRACKING_RENDER_INTERVAL")
	setString(&t.StaleSelection, "TRACKING_STALE_SELECTION")

	setString(&t.Map.Surface, "TRACKING_MAP_SURFACE")
	setString(&t.Map.TopicPrefix, "TRACKING_MAP_TOPIC_PREFIX")
	if v := getEnv("TRACKING_MAP_FIT_PADDING", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			t.Map.FitPadding = f
		}
	}
	if v := getEnv("TRACKING_MAP_FOCUS_ZOOM", ""); v != "" {
		if z, err := strconv.Atoi(v); err == nil {
			t.Map.FocusZoom = z
		}
	}

	if v := getEnv("TRACKING_CACHE_ENABLED", ""); v != "" {
		t.Cache.Enabled = v == "true"
	}
	setString(&t.Cache.Prefix, "TRACKING_CACHE_PREFIX")
	setDuration(&t.Cache.TTL, "TRACKING_CACHE_TTL")

	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	*dst = getEnv(key, *dst)
}

// setDuration accepts Go durations ("30s") or plain seconds ("30").
func setDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		*dst = time.Duration(secs) * time.Second
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		*dst = d
	}
}
