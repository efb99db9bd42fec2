package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"camwatch/internal/model"
)

// ErrInvalidConfig is returned when the configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultTimezone         = "Asia/Singapore"
	DefaultReconnectBackoff = 2000
	DefaultQueueSize        = 4
	DefaultTextThickness    = 2
)

type Config struct {
	SiteName               string                  `json:"site_name"`
	ShowVideo              bool                    `json:"show_video"`
	Model                  ModelConfig             `json:"model"`
	Detection              DetectionConfig         `json:"detection_settings"`
	Display                DisplayConfig           `json:"display_settings"`
	Runtime                RuntimeConfig           `json:"runtime"`
	Cameras                map[string]CameraConfig `json:"camera"`
	DetectedObjects        string                  `json:"detected_objects"`
	DetectionFrameInterval int                     `json:"detection_frame_interval"`
	LogFilePath            string                  `json:"log_file_path"`
	Timezone               string                  `json:"timezone"`
	ReconnectBackoffMs     int                     `json:"reconnect_backoff_ms"`
	IndexDBPath            string                  `json:"index_db_path"`

	// cameraOrder holds the camera names in the order they appear in the file.
	cameraOrder []string
}

type ModelConfig struct {
	ClassesPath string `json:"classes_path"`
	ConfigPath  string `json:"config_path"`
	WeightPath  string `json:"weight_path"`
	TargetClass string `json:"target_class"`
	ModelSize   int    `json:"model_size"`
}

type DetectionConfig struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	NMSThreshold        float64 `json:"nms_threshold"`
}

// DisplayConfig holds annotation styling. Colors are BGR triples as in OpenCV.
type DisplayConfig struct {
	BoxColor      []int   `json:"box_color"`
	BoxThickness  int     `json:"box_thickness"`
	TextSize      float64 `json:"text_size"`
	TextColor     []int   `json:"text_color"`
	TextThickness int     `json:"text_thickness"`
}

type RuntimeConfig struct {
	SaveWithoutBBox   bool `json:"save_without_bbox"`
	SaveWithBBox      bool `json:"save_with_bbox"`
	ConcurrentCameras bool `json:"concurrent_cameras"`
	QueueSize         int  `json:"queue_size"`
}

type CameraConfig struct {
	URL    string `json:"url"`
	FPS    int    `json:"fps"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Load reads .env (if present), resolves the config file path and decodes it.
// Environment variables override a subset of file values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return LoadFile(getEnv("CONFIG_PATH", "config.json"))
}

// LoadFile decodes and validates the config file at path, applying
// environment overrides and defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes raw JSON config bytes, applying environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	order, err := cameraOrder(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.cameraOrder = order

	cfg.DetectedObjects = getEnv("DETECTED_OBJECTS", cfg.DetectedObjects)
	cfg.LogFilePath = getEnv("LOG_FILE_PATH", cfg.LogFilePath)
	cfg.IndexDBPath = getEnv("INDEX_DB_PATH", cfg.IndexDBPath)
	cfg.ShowVideo = getEnvAsBool("SHOW_VIDEO", cfg.ShowVideo)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.ReconnectBackoffMs == 0 {
		c.ReconnectBackoffMs = DefaultReconnectBackoff
	}
	if c.Runtime.QueueSize <= 0 {
		c.Runtime.QueueSize = DefaultQueueSize
	}
	if c.Display.TextThickness <= 0 {
		c.Display.TextThickness = DefaultTextThickness
	}
}

// Validate checks every field the detection loop depends on.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, v ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, v...))
	}

	if c.SiteName == "" {
		add("site_name is required")
	}
	if c.Model.ClassesPath == "" || c.Model.ConfigPath == "" || c.Model.WeightPath == "" {
		add("model.classes_path, model.config_path and model.weight_path are required")
	}
	if c.Model.TargetClass == "" {
		add("model.target_class is required")
	}
	if c.Model.ModelSize <= 0 {
		add("model.model_size must be positive")
	}
	if !inUnitRange(c.Detection.ConfidenceThreshold) {
		add("detection_settings.confidence_threshold must be within [0,1]")
	}
	if !inUnitRange(c.Detection.NMSThreshold) {
		add("detection_settings.nms_threshold must be within [0,1]")
	}
	if !validColor(c.Display.BoxColor) {
		add("display_settings.box_color must have 3 components within [0,255]")
	}
	if !validColor(c.Display.TextColor) {
		add("display_settings.text_color must have 3 components within [0,255]")
	}
	if c.Display.BoxThickness <= 0 {
		add("display_settings.box_thickness must be positive")
	}
	if c.Display.TextSize <= 0 {
		add("display_settings.text_size must be positive")
	}
	if c.DetectedObjects == "" {
		add("detected_objects is required")
	}
	if c.DetectionFrameInterval < 1 {
		add("detection_frame_interval must be at least 1")
	}
	if c.LogFilePath == "" {
		add("log_file_path is required")
	}
	if c.ReconnectBackoffMs < 0 {
		add("reconnect_backoff_ms must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		add("timezone %q is unknown", c.Timezone)
	}
	if len(c.Cameras) == 0 {
		add("at least one camera is required")
	}
	for _, name := range c.CameraNames() {
		if c.Cameras[name].URL == "" {
			add("camera.%s.url is required", name)
		}
	}
	if c.ShowVideo && c.Runtime.ConcurrentCameras {
		add("show_video cannot be combined with runtime.concurrent_cameras")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, problems)
	}
	return nil
}

// CameraNames returns configured camera names in config file order. Cameras
// not read from a file follow in name order.
func (c *Config) CameraNames() []string {
	names := make([]string, 0, len(c.Cameras))
	seen := make(map[string]bool, len(c.Cameras))
	for _, name := range c.cameraOrder {
		if _, ok := c.Cameras[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range c.Cameras {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// cameraOrder lists the keys of the top-level "camera" object as they appear in data.
func cameraOrder(data []byte) ([]string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	raw, ok := top["camera"]
	if !ok {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil
	}

	var names []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if name, ok := tok.(string); ok {
			names = append(names, name)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// CameraSpecs converts the camera section into immutable specs, in CameraNames order.
func (c *Config) CameraSpecs() []model.CameraSpec {
	specs := make([]model.CameraSpec, 0, len(c.Cameras))
	for _, name := range c.CameraNames() {
		cam := c.Cameras[name]
		specs = append(specs, model.CameraSpec{
			Name:   name,
			URL:    cam.URL,
			FPS:    cam.FPS,
			Width:  cam.Width,
			Height: cam.Height,
		})
	}
	return specs
}

// Location returns the reference timezone used for output paths and log rotation.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffMs) * time.Millisecond
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func validColor(c []int) bool {
	if len(c) != 3 {
		return false
	}
	for _, v := range c {
		if v < 0 || v > 255 {
			return false
		}
	}
	return true
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
