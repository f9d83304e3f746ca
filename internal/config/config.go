package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`
	ShowStats bool   `yaml:"show_stats"`

	Canvas  CanvasConfig  `yaml:"canvas"`
	Export  ExportConfig  `yaml:"export"`
	Paths   PathsConfig   `yaml:"paths"`
	Storage StorageConfig `yaml:"storage"`
}

type CanvasConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// FrameInterval is the playback tick period.
	FrameInterval time.Duration `yaml:"frame_interval"`
}

type ExportConfig struct {
	FPS           int           `yaml:"fps"`
	Bitrate       string        `yaml:"bitrate"`
	Codec         string        `yaml:"codec"`
	Container     string        `yaml:"container"`
	ChunkInterval time.Duration `yaml:"chunk_interval"`
	StartDelay    time.Duration `yaml:"start_delay"`
	FileName      string        `yaml:"file_name"`
}

type PathsConfig struct {
	AssetDir string `yaml:"asset_dir"`
	AudioDir string `yaml:"audio_dir"`
	StateDir string `yaml:"state_dir"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs"
	Type string `yaml:"type"`

	// Local storage options
	OutputDir string `yaml:"output_dir"`

	// GCS options
	Bucket          string `yaml:"bucket"`
	ObjectPrefix    string `yaml:"object_prefix"`
	CredentialsFile string `yaml:"credentials_file"`
	PublicBaseURL   string `yaml:"public_base_url"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config and fills unset fields with defaults.
// A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Canvas.Width == 0 {
		c.Canvas.Width = 1920
	}
	if c.Canvas.Height == 0 {
		c.Canvas.Height = 1080
	}
	if c.Canvas.FrameInterval == 0 {
		c.Canvas.FrameInterval = time.Second / 60
	}

	if c.Export.FPS == 0 {
		c.Export.FPS = 30
	}
	if c.Export.Bitrate == "" {
		c.Export.Bitrate = "5M"
	}
	if c.Export.Codec == "" {
		c.Export.Codec = "libvpx-vp9"
	}
	if c.Export.Container == "" {
		c.Export.Container = "webm"
	}
	if c.Export.ChunkInterval == 0 {
		c.Export.ChunkInterval = 100 * time.Millisecond
	}
	if c.Export.StartDelay == 0 {
		c.Export.StartDelay = 100 * time.Millisecond
	}
	if c.Export.FileName == "" {
		c.Export.FileName = "the-curse-of-parsi-falia-trailer.webm"
	}

	if c.Paths.AssetDir == "" {
		c.Paths.AssetDir = "assets"
	}
	if c.Paths.AudioDir == "" {
		c.Paths.AudioDir = "assets/audio"
	}
	if c.Paths.StateDir == "" {
		c.Paths.StateDir = ".trailer2video"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "output"
	}
}

func (c *Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Export.FPS <= 0 {
		return fmt.Errorf("invalid export fps %d", c.Export.FPS)
	}
	switch strings.ToLower(c.Storage.Type) {
	case "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.New("storage type gcs requires a bucket")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	return nil
}

// ApplyEnv overrides storage settings from the environment
// (TRAILER_STORAGE, TRAILER_GCS_BUCKET, TRAILER_GCS_PREFIX,
// GOOGLE_APPLICATION_CREDENTIALS).
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TRAILER_STORAGE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("TRAILER_GCS_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("TRAILER_GCS_PREFIX"); v != "" {
		c.Storage.ObjectPrefix = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && c.Storage.CredentialsFile == "" {
		c.Storage.CredentialsFile = v
	}
}
