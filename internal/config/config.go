package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for DocLens
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Janitor  JanitorConfig  `mapstructure:"janitor"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	BodyLimitMB  int      `mapstructure:"body_limit_mb"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// PipelineConfig holds page extraction settings
type PipelineConfig struct {
	MaxPages          int      `mapstructure:"max_pages"`
	DPI               int      `mapstructure:"dpi"`
	OCRLanguages      []string `mapstructure:"ocr_languages"`
	PageSegMode       int      `mapstructure:"page_seg_mode"`
	CellMaxChars      int      `mapstructure:"cell_max_chars"`
	ErrorMessageLimit int      `mapstructure:"error_message_limit"`
	TempDir           string   `mapstructure:"temp_dir"`
}

// ToolsConfig holds external binary settings
type ToolsConfig struct {
	OCREngine string `mapstructure:"ocr_engine"`
	Tesseract string `mapstructure:"tesseract"`
	Pdftoppm  string `mapstructure:"pdftoppm"`
	Pdfinfo   string `mapstructure:"pdfinfo"`
}

// RendererConfig holds headless Chrome settings
type RendererConfig struct {
	ChromePath         string        `mapstructure:"chrome_path"`
	Timeout            time.Duration `mapstructure:"timeout"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// JanitorConfig holds stale temp cleanup settings
type JanitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = GetEnvDefault("DOCLENS_STORAGE_DATA_DIR", getDefaultDataDir())
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "history.db"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "doclens.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// DOCLENS_SERVER_PORT, DOCLENS_PIPELINE_MAX_PAGES, ...
	v.SetEnvPrefix("DOCLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 120)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.body_limit_mb", 50)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("pipeline.max_pages", 10)
	v.SetDefault("pipeline.dpi", 150)
	v.SetDefault("pipeline.ocr_languages", []string{"eng", "rus", "chi_sim"})
	v.SetDefault("pipeline.page_seg_mode", 6)
	v.SetDefault("pipeline.cell_max_chars", 500)
	v.SetDefault("pipeline.error_message_limit", 200)
	v.SetDefault("pipeline.temp_dir", os.TempDir())

	v.SetDefault("tools.ocr_engine", "tesseract")
	v.SetDefault("tools.tesseract", "tesseract")
	v.SetDefault("tools.pdftoppm", "pdftoppm")
	v.SetDefault("tools.pdfinfo", "pdfinfo")

	v.SetDefault("renderer.timeout", time.Duration(0))
	v.SetDefault("renderer.breaker_max_failures", 3)
	v.SetDefault("renderer.breaker_open_timeout", 30*time.Second)

	v.SetDefault("janitor.enabled", true)
	v.SetDefault("janitor.schedule", "@every 15m")
	v.SetDefault("janitor.max_age", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "doclens")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "doclens")
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.MaxPages <= 0 {
		return fmt.Errorf("pipeline.max_pages must be positive")
	}
	if cfg.Pipeline.DPI <= 0 {
		return fmt.Errorf("pipeline.dpi must be positive")
	}
	if len(cfg.Pipeline.OCRLanguages) == 0 {
		return fmt.Errorf("pipeline.ocr_languages must not be empty")
	}
	if cfg.Pipeline.CellMaxChars <= 0 {
		return fmt.Errorf("pipeline.cell_max_chars must be positive")
	}
	switch cfg.Tools.OCREngine {
	case "tesseract", "gosseract":
	default:
		return fmt.Errorf("tools.ocr_engine must be tesseract or gosseract, got %q", cfg.Tools.OCREngine)
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
