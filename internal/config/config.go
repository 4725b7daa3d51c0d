// Package config loads posereps settings from defaults, an optional YAML file
// and POSEREPS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. POSEREPS_SERVER_PORT.
const EnvPrefix = "POSEREPS"

// Classifier modes.
const (
	ClassifierService   = "service"
	ClassifierTemplates = "templates"
)

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Page    PageConfig    `mapstructure:"page"`
	Camera  CameraConfig  `mapstructure:"camera"`
	Model   ModelConfig   `mapstructure:"model"`
	Session SessionConfig `mapstructure:"session"`
	Store   StoreConfig   `mapstructure:"store"`
	Plugins PluginConfig  `mapstructure:"plugins"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tray    TrayConfig    `mapstructure:"tray"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	StaticDir       string        `mapstructure:"static_dir"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PageConfig holds the values baked into the served page.
type PageConfig struct {
	ModelURL      string  `mapstructure:"model_url"`
	ModelName     string  `mapstructure:"model_name"`
	CanvasSize    int     `mapstructure:"canvas_size"`
	ThresholdPct  int     `mapstructure:"threshold_percent"`
	TFJSURL       string  `mapstructure:"tfjs_url"`
	PoseLibURL    string  `mapstructure:"pose_lib_url"`
	KeypointScore float64 `mapstructure:"keypoint_score"`
}

// CameraConfig configures the server-side camera.
type CameraConfig struct {
	DeviceID int  `mapstructure:"device_id"`
	Size     int  `mapstructure:"size"`
	FPS      int  `mapstructure:"fps"`
	Mirror   bool `mapstructure:"mirror"`
}

// ModelConfig selects how server-side frames are estimated and classified.
type ModelConfig struct {
	Dir         string        `mapstructure:"dir"`
	Classifier  string        `mapstructure:"classifier"`
	Command     []string      `mapstructure:"command"`
	Templates   string        `mapstructure:"templates"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// SessionConfig tunes the server-side frame loop.
type SessionConfig struct {
	ThresholdPct int `mapstructure:"threshold_percent"`
}

// StoreConfig contains the settings database location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// PluginConfig locates rep hooks.
type PluginConfig struct {
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// TrayConfig toggles the system-tray menu.
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("page.model_url", "/static/my-pose-model/")
	v.SetDefault("page.model_name", "my-pose-model")
	v.SetDefault("page.canvas_size", 360)
	v.SetDefault("page.threshold_percent", 70)
	v.SetDefault("page.tfjs_url", "https://cdn.jsdelivr.net/npm/@tensorflow/tfjs@1.3.1")
	v.SetDefault("page.pose_lib_url", "https://cdn.jsdelivr.net/npm/@teachablemachine/pose@0.8/dist/teachablemachine-pose.min.js")
	v.SetDefault("page.keypoint_score", 0.45)

	v.SetDefault("camera.device_id", 0)
	v.SetDefault("camera.size", 360)
	v.SetDefault("camera.fps", 15)
	v.SetDefault("camera.mirror", true)

	v.SetDefault("model.dir", "static/my-pose-model")
	v.SetDefault("model.classifier", ClassifierService)
	v.SetDefault("model.command", []string{"posereps-service"})
	v.SetDefault("model.templates", "")
	v.SetDefault("model.idle_timeout", "30s")

	v.SetDefault("session.threshold_percent", 70)

	v.SetDefault("store.path", "posereps.db")

	v.SetDefault("plugins.dir", "plugins")
	v.SetDefault("plugins.timeout", "5s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("tray.enabled", false)
}

// New returns a viper instance with defaults and environment binding applied.
// When file is non-empty it is read as YAML.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return v, nil
}

// Load builds a viper instance for file and decodes it.
func Load(file string) (*Config, error) {
	v, err := New(file)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Decode decodes the settings held by v and validates them.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(" "),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	settings := make(map[string]any)
	for _, key := range v.AllKeys() {
		setNested(settings, strings.Split(key, "."), v.Get(key))
	}
	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setNested stores value under the dotted path in m.
func setNested(m map[string]any, path []string, value any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Session.ThresholdPct < 0 || c.Session.ThresholdPct > 100 {
		return fmt.Errorf("session.threshold_percent %d must be within 0..100", c.Session.ThresholdPct)
	}
	if c.Page.ThresholdPct < 0 || c.Page.ThresholdPct > 100 {
		return fmt.Errorf("page.threshold_percent %d must be within 0..100", c.Page.ThresholdPct)
	}
	switch c.Model.Classifier {
	case ClassifierService:
		if len(c.Model.Command) == 0 {
			return errors.New("model.command is required for the service classifier")
		}
	case ClassifierTemplates:
		if c.Model.Templates == "" {
			return errors.New("model.templates is required for the templates classifier")
		}
	default:
		return fmt.Errorf("unknown model.classifier %q", c.Model.Classifier)
	}
	return nil
}
