package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"weaponwatch/internal/model"
)

type Config struct {
	Port               int
	CameraDevice       string // index ("0") or stream URL
	SourceID           string // id stamped on every incident ("camera")
	IncidentsDirectory string
	IncidentsURLPrefix string
	DatabasePath       string
	LogDirectory       string

	WeaponLabels        []string
	ConfidenceThreshold float64
	DuplicateWindow     time.Duration

	CaptureFPS     int
	StreamInterval time.Duration

	ModelPath          string
	ModelClasses       []string
	ModelMinConfidence float64

	TelegramBotToken   string
	TelegramTimeout    time.Duration
	AlertQueueSize     int
	AlertRatePerSecond float64
	NotificationsOn    bool
	PublicBaseURL      string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	StoreTimeout time.Duration
	AdminToken   string

	// Sources maps a source id to its display name and physical location.
	Sources map[string]model.SourceInfo
}

var defaultSources = map[string]model.SourceInfo{
	"Camera 1": {Name: "Main Entrance", Location: "Building A - Front"},
}

// Load reads envFile (if present) into the process environment and builds a Config
// from environment variables, falling back to defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Port:                v.GetInt("PORT"),
		CameraDevice:        v.GetString("CAMERA_DEVICE"),
		SourceID:            v.GetString("CAMERA_LABEL"),
		IncidentsDirectory:  v.GetString("INCIDENTS_DIR"),
		IncidentsURLPrefix:  strings.TrimRight(v.GetString("INCIDENTS_URL_PREFIX"), "/"),
		DatabasePath:        v.GetString("DATABASE_PATH"),
		LogDirectory:        v.GetString("LOG_DIR"),
		WeaponLabels:        splitList(v.GetString("WEAPON_LABELS")),
		ConfidenceThreshold: v.GetFloat64("CONFIDENCE_THRESHOLD"),
		DuplicateWindow:     v.GetDuration("DUPLICATE_WINDOW"),
		CaptureFPS:          v.GetInt("CAPTURE_FPS"),
		StreamInterval:      v.GetDuration("STREAM_INTERVAL"),
		ModelPath:           v.GetString("MODEL_PATH"),
		ModelClasses:        splitList(v.GetString("MODEL_CLASSES")),
		ModelMinConfidence:  v.GetFloat64("MODEL_MIN_CONFIDENCE"),
		TelegramBotToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramTimeout:     v.GetDuration("TELEGRAM_TIMEOUT"),
		AlertQueueSize:      v.GetInt("ALERT_QUEUE_SIZE"),
		AlertRatePerSecond:  v.GetFloat64("ALERT_RATE_PER_SECOND"),
		NotificationsOn:     v.GetBool("NOTIFICATIONS_ENABLED"),
		PublicBaseURL:       strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		MQTTBroker:          v.GetString("MQTT_BROKER"),
		MQTTTopic:           v.GetString("MQTT_TOPIC"),
		MQTTClientID:        v.GetString("MQTT_CLIENT_ID"),
		StoreTimeout:        v.GetDuration("STORE_TIMEOUT"),
		AdminToken:          v.GetString("ADMIN_TOKEN"),
		Sources:             defaultSources,
	}

	if path := v.GetString("SOURCES_FILE"); path != "" {
		sources, err := loadSources(path)
		if err != nil {
			return nil, err
		}
		cfg.Sources = sources
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8000)
	v.SetDefault("CAMERA_DEVICE", "0")
	v.SetDefault("CAMERA_LABEL", "Camera 1")
	v.SetDefault("INCIDENTS_DIR", "incidents")
	v.SetDefault("INCIDENTS_URL_PREFIX", "/incidents")
	v.SetDefault("DATABASE_PATH", "incidents.db")
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("WEAPON_LABELS", "pistol,knife")
	v.SetDefault("CONFIDENCE_THRESHOLD", 0.78)
	v.SetDefault("DUPLICATE_WINDOW", "10s")
	v.SetDefault("CAPTURE_FPS", 20)
	v.SetDefault("STREAM_INTERVAL", "50ms")
	v.SetDefault("MODEL_PATH", "bestyolov11.onnx")
	v.SetDefault("MODEL_CLASSES", "knife,neutral,pistol")
	v.SetDefault("MODEL_MIN_CONFIDENCE", 0.25)
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_TIMEOUT", "10s")
	v.SetDefault("ALERT_QUEUE_SIZE", 64)
	v.SetDefault("ALERT_RATE_PER_SECOND", 25)
	v.SetDefault("NOTIFICATIONS_ENABLED", true)
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_TOPIC", "weaponwatch/incidents")
	v.SetDefault("MQTT_CLIENT_ID", "weaponwatch")
	v.SetDefault("STORE_TIMEOUT", "2s")
	v.SetDefault("ADMIN_TOKEN", "")
	v.SetDefault("SOURCES_FILE", "")
}

// loadSources reads a YAML or JSON file with a top-level "sources" list.
func loadSources(path string) (map[string]model.SourceInfo, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	// viper lower-cases map keys, so decode entries as a list to keep source ids intact.
	var entries []struct {
		ID       string `mapstructure:"id"`
		Name     string `mapstructure:"name"`
		Location string `mapstructure:"location"`
	}
	if err := v.UnmarshalKey("sources", &entries); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}

	sources := make(map[string]model.SourceInfo, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("source entry without id in %s", path)
		}
		sources[e.ID] = model.SourceInfo{Name: e.Name, Location: e.Location}
	}
	return sources, nil
}

// Validate checks value ranges that would otherwise break the pipeline at runtime.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.DuplicateWindow <= 0 {
		return fmt.Errorf("DUPLICATE_WINDOW must be positive, got %v", c.DuplicateWindow)
	}
	if c.CaptureFPS <= 0 {
		return fmt.Errorf("CAPTURE_FPS must be positive, got %d", c.CaptureFPS)
	}
	if c.AlertQueueSize <= 0 {
		return fmt.Errorf("ALERT_QUEUE_SIZE must be positive, got %d", c.AlertQueueSize)
	}
	if c.StreamInterval <= 0 {
		return fmt.Errorf("STREAM_INTERVAL must be positive, got %v", c.StreamInterval)
	}
	if !strings.HasPrefix(c.IncidentsURLPrefix, "/") || c.IncidentsURLPrefix == "/" {
		return fmt.Errorf("INCIDENTS_URL_PREFIX must be an absolute path below /, got %q", c.IncidentsURLPrefix)
	}
	if len(c.WeaponLabels) == 0 {
		return errors.New("WEAPON_LABELS must name at least one label")
	}
	return nil
}

// SourceInfo resolves display metadata for a source, falling back to the id itself
// and an "Unknown" location.
func (c *Config) SourceInfo(sourceID string) model.SourceInfo {
	if info, ok := c.Sources[sourceID]; ok {
		return info
	}
	return model.SourceInfo{Name: sourceID, Location: "Unknown"}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
