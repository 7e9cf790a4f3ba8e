// internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TransportDirect = "direct"
	TransportMaps   = "maps"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Load reads configs/config.yaml (when present), the optional
// config.<APP_ENVIRONMENT>.yaml overlay, .env and the process environment.
// A non-empty path selects an explicit config file, which must exist.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read base config: %w", err)
			}
		}

		env := v.GetString("app.environment")
		v.SetConfigName("config." + env)
		_ = v.MergeInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// setDefaults registers every key so AutomaticEnv can override it. The
// defaults are the endpoints the site has always used.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "carenav")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.port", "8990")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.shutdown_timeout", 10000)

	v.SetDefault("google.api_key", "")
	v.SetDefault("google.geocode_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("google.nearby_search_url", "https://maps.googleapis.com/maps/api/place/nearbysearch/json")
	v.SetDefault("google.maps_base_url", "https://maps.googleapis.com")
	v.SetDefault("google.timeout", 10000)

	v.SetDefault("places.zip_search_transport", TransportDirect)
	v.SetDefault("places.filter_search_transport", TransportDirect)

	v.SetDefault("map.default_lat", 37.7749)
	v.SetDefault("map.default_lng", -122.4194)
	v.SetDefault("map.default_zoom", 14)
	v.SetDefault("map.width_px", 640)
	v.SetDefault("map.height_px", 500)

	v.SetDefault("recognition.tfjs_script_url", "https://cdn.jsdelivr.net/npm/@tensorflow/tfjs@1.3.1/dist/tf.min.js")
	v.SetDefault("recognition.speech_commands_script_url", "https://cdn.jsdelivr.net/npm/@tensorflow-models/speech-commands@0.4.0/dist/speech-commands.min.js")
	v.SetDefault("recognition.model_url", "https://teachablemachine.withgoogle.com/models/IBq-9caN4/")
	v.SetDefault("recognition.confidence_threshold", 0.75)
	v.SetDefault("recognition.debounce_delay", 1000)
	v.SetDefault("recognition.overlap_factor", 0.50)
	v.SetDefault("recognition.load_timeout", 30000)

	v.SetDefault("session.store", StoreMemory)
	v.SetDefault("session.ttl", 24*60*60*1000)
	v.SetDefault("session.data_dir", "")
	v.SetDefault("session.sweep_interval", 60000)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("app.environment", "APP_ENVIRONMENT")
	_ = v.BindEnv("server.port", "PORT", "SERVER_PORT")
	_ = v.BindEnv("server.static_dir", "STATIC_DIR", "SERVER_STATIC_DIR")
	_ = v.BindEnv("google.api_key", "GOOGLE_MAPS_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("session.store", "SESSION_STORE")
	_ = v.BindEnv("session.data_dir", "SESSION_DATA_DIR", "DATA_DIR")
	_ = v.BindEnv("logging.level", "LOG_LEVEL", "LOGGING_LEVEL")
	_ = v.BindEnv("logging.format", "LOG_FORMAT", "LOGGING_FORMAT")
}

// applyDefaults covers values a config file may have zeroed out.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8990"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}
	if cfg.Google.Timeout == 0 {
		cfg.Google.Timeout = 10000
	}
	if cfg.Places.ZipSearchTransport == "" {
		cfg.Places.ZipSearchTransport = TransportDirect
	}
	if cfg.Places.FilterSearchTransport == "" {
		cfg.Places.FilterSearchTransport = TransportDirect
	}
	if cfg.Map.DefaultZoom == 0 {
		cfg.Map.DefaultZoom = 14
	}
	if cfg.Map.WidthPx == 0 {
		cfg.Map.WidthPx = 640
	}
	if cfg.Map.HeightPx == 0 {
		cfg.Map.HeightPx = 500
	}
	if cfg.Recognition.ConfidenceThreshold == 0 {
		cfg.Recognition.ConfidenceThreshold = 0.75
	}
	if cfg.Recognition.DebounceDelay == 0 {
		cfg.Recognition.DebounceDelay = 1000
	}
	if cfg.Recognition.OverlapFactor == 0 {
		cfg.Recognition.OverlapFactor = 0.50
	}
	if cfg.Recognition.LoadTimeout == 0 {
		cfg.Recognition.LoadTimeout = 30000
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = StoreMemory
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * 60 * 60 * 1000
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 60000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Warnings lists settings that load but change behaviour in a way an
// operator should know about.
func (c *Config) Warnings() []string {
	var out []string
	if c.Google.APIKey == "" {
		out = append(out, "google.api_key is not set; map lookups will be rejected by the provider")
	}
	for _, name := range c.mapsTransportPaths() {
		out = append(out, name+" is maps: the client library sends the search radius rounded to whole metres")
	}
	return out
}

func (c *Config) mapsTransportPaths() []string {
	var out []string
	if c.Places.ZipSearchTransport == TransportMaps {
		out = append(out, "places.zip_search_transport")
	}
	if c.Places.FilterSearchTransport == TransportMaps {
		out = append(out, "places.filter_search_transport")
	}
	return out
}

func validateConfig(cfg *Config) error {
	for name, t := range map[string]string{
		"places.zip_search_transport":    cfg.Places.ZipSearchTransport,
		"places.filter_search_transport": cfg.Places.FilterSearchTransport,
	} {
		if t != TransportDirect && t != TransportMaps {
			return fmt.Errorf("%s must be %q or %q, got %q", name, TransportDirect, TransportMaps, t)
		}
	}
	if paths := cfg.mapsTransportPaths(); len(paths) > 0 && cfg.Google.APIKey == "" {
		return fmt.Errorf("%s is %q, which requires google.api_key", paths[0], TransportMaps)
	}

	switch cfg.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if cfg.Redis.Address == "" {
			return fmt.Errorf("redis.address is required when session.store is redis")
		}
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", StoreMemory, StoreRedis, cfg.Session.Store)
	}

	if cfg.Google.GeocodeURL == "" || cfg.Google.NearbySearchURL == "" {
		return fmt.Errorf("google.geocode_url and google.nearby_search_url are required")
	}
	if cfg.Recognition.ModelURL == "" {
		return fmt.Errorf("recognition.model_url is required")
	}
	if t := cfg.Recognition.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("recognition.confidence_threshold must be within [0,1], got %v", t)
	}
	if cfg.Recognition.DebounceDelay < 0 {
		return fmt.Errorf("recognition.debounce_delay must not be negative")
	}
	if cfg.Map.WidthPx < 0 || cfg.Map.HeightPx < 0 {
		return fmt.Errorf("map dimensions must not be negative")
	}

	return nil
}
