// internal/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Google      GoogleConfig      `mapstructure:"google"`
	Places      PlacesConfig      `mapstructure:"places"`
	Map         MapConfig         `mapstructure:"map"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Session     SessionConfig     `mapstructure:"session"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            string `mapstructure:"port"`
	StaticDir       string `mapstructure:"static_dir"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// GoogleConfig holds the maps provider endpoints and key.
type GoogleConfig struct {
	APIKey          string `mapstructure:"api_key"`
	GeocodeURL      string `mapstructure:"geocode_url"`
	NearbySearchURL string `mapstructure:"nearby_search_url"`
	MapsBaseURL     string `mapstructure:"maps_base_url"`
	Timeout         int    `mapstructure:"timeout"` // milliseconds
}

// PlacesConfig selects the transport binding used by each search path:
// "direct" (raw HTTP) or "maps" (Google Maps client library).
type PlacesConfig struct {
	ZipSearchTransport    string `mapstructure:"zip_search_transport"`
	FilterSearchTransport string `mapstructure:"filter_search_transport"`
}

type MapConfig struct {
	DefaultLat  float64 `mapstructure:"default_lat"`
	DefaultLng  float64 `mapstructure:"default_lng"`
	DefaultZoom int     `mapstructure:"default_zoom"`
	WidthPx     int     `mapstructure:"width_px"`
	HeightPx    int     `mapstructure:"height_px"`
}

// RecognitionConfig points at the externally hosted model assets.
type RecognitionConfig struct {
	TFJSScriptURL           string  `mapstructure:"tfjs_script_url"`
	SpeechCommandsScriptURL string  `mapstructure:"speech_commands_script_url"`
	ModelURL                string  `mapstructure:"model_url"`
	ConfidenceThreshold     float64 `mapstructure:"confidence_threshold"`
	DebounceDelay           int     `mapstructure:"debounce_delay"` // milliseconds
	OverlapFactor           float64 `mapstructure:"overlap_factor"`
	LoadTimeout             int     `mapstructure:"load_timeout"` // milliseconds
}

type SessionConfig struct {
	Store         string `mapstructure:"store"`          // memory | redis
	TTL           int    `mapstructure:"ttl"`            // milliseconds
	DataDir       string `mapstructure:"data_dir"`       // memory store snapshot; empty disables
	SweepInterval int    `mapstructure:"sweep_interval"` // milliseconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
