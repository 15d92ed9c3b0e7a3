// Package config loads server settings from defaults, an optional YAML
// file, a .env file and the environment (later sources win).
//
// MySQL settings keep their MYSQL_* names; everything else uses the
// BLUEPRINT_ prefix with underscores for nesting, e.g. BLUEPRINT_SERVER_PORT.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "BLUEPRINT"

// Config - 전체 설정
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Animation AnimationConfig `mapstructure:"animation"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Boundary  BoundaryConfig  `mapstructure:"boundary"`
	Loader    LoaderConfig    `mapstructure:"loader"`
}

// ServerConfig - HTTP/WebSocket 서버
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	AllowOrigins string        `mapstructure:"allow_origins"`
	RateLimit    float64       `mapstructure:"rate_limit"` // 초당 요청 수 (0이면 제한 없음)
	RateBurst    int           `mapstructure:"rate_burst"`
	BodyLimit    int           `mapstructure:"body_limit"` // 바이트
	MaxImageSide int           `mapstructure:"max_image_side"`
	ShutdownWait time.Duration `mapstructure:"shutdown_wait"`
}

// DatabaseConfig - DB 연결
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"` // mysql | sqlite
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Debug      bool   `mapstructure:"debug"`
}

// LoggingConfig - 로그 레벨과 이벤트 로그 버퍼
type LoggingConfig struct {
	Level         string        `mapstructure:"level"`
	FlushSize     int           `mapstructure:"flush_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// AnimationConfig - 태그 이동 애니메이션
type AnimationConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Speed     float64       `mapstructure:"speed"`
	Tolerance float64       `mapstructure:"tolerance"`
}

// ViewportConfig - 줌 한계
type ViewportConfig struct {
	MinZoom     float64 `mapstructure:"min_zoom"`
	MaxZoom     float64 `mapstructure:"max_zoom"`
	WheelFactor float64 `mapstructure:"wheel_factor"`
}

// BoundaryConfig - 초기 경계 사각형 (캔버스 픽셀)
type BoundaryConfig struct {
	X      float64 `mapstructure:"x"`
	Y      float64 `mapstructure:"y"`
	Width  float64 `mapstructure:"width"`
	Height float64 `mapstructure:"height"`
}

// LoaderConfig - 디바이스 API
type LoaderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads the configuration. cfgFile may be empty, in which case
// config.yaml is looked up in . and ./configs; a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	// .env 파일 로드 (없으면 무시)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindMySQLEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// bindMySQLEnv - 기존 MYSQL_* 환경 변수 이름 유지
func bindMySQLEnv(v *viper.Viper) {
	_ = v.BindEnv("database.host", "MYSQL_HOST")
	_ = v.BindEnv("database.port", "MYSQL_PORT")
	_ = v.BindEnv("database.user", "MYSQL_USER")
	_ = v.BindEnv("database.password", "MYSQL_PASSWORD")
	_ = v.BindEnv("database.name", "MYSQL_DATABASE")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allow_origins", "http://localhost:5173, http://localhost:3000")
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.rate_burst", 100)
	v.SetDefault("server.body_limit", 16*1024*1024)
	v.SetDefault("server.max_image_side", 4096)
	v.SetDefault("server.shutdown_wait", "5s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.sqlite_path", "blueprint.db")
	v.SetDefault("database.debug", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.flush_size", 50)
	v.SetDefault("logging.flush_interval", "10s")

	v.SetDefault("animation.interval", "140ms")
	v.SetDefault("animation.speed", 0.1)
	v.SetDefault("animation.tolerance", 1.0)

	v.SetDefault("viewport.min_zoom", 0.5)
	v.SetDefault("viewport.max_zoom", 2.0)
	v.SetDefault("viewport.wheel_factor", 1.1)

	v.SetDefault("boundary.x", 100)
	v.SetDefault("boundary.y", 100)
	v.SetDefault("boundary.width", 600)
	v.SetDefault("boundary.height", 400)

	v.SetDefault("loader.base_url", "")
	v.SetDefault("loader.token", "")
	v.SetDefault("loader.timeout", "10s")
}

// Validate checks value ranges after decoding.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative: %v", cfg.Server.RateLimit)
	}

	switch cfg.Database.Driver {
	case "sqlite":
	case "mysql":
		if cfg.Database.Host == "" || cfg.Database.User == "" || cfg.Database.Name == "" {
			return fmt.Errorf("mysql driver needs MYSQL_HOST, MYSQL_USER and MYSQL_DATABASE")
		}
	default:
		return fmt.Errorf("unknown database driver %q (mysql or sqlite)", cfg.Database.Driver)
	}

	if cfg.Animation.Interval <= 0 {
		return fmt.Errorf("animation interval must be positive: %v", cfg.Animation.Interval)
	}
	if cfg.Animation.Speed <= 0 || cfg.Animation.Tolerance <= 0 {
		return fmt.Errorf("animation speed and tolerance must be positive")
	}

	if cfg.Viewport.MinZoom <= 0 || cfg.Viewport.MaxZoom < cfg.Viewport.MinZoom {
		return fmt.Errorf("invalid zoom range [%v, %v]", cfg.Viewport.MinZoom, cfg.Viewport.MaxZoom)
	}
	if cfg.Viewport.WheelFactor <= 1 {
		return fmt.Errorf("wheel factor must be > 1: %v", cfg.Viewport.WheelFactor)
	}

	if cfg.Logging.FlushSize < 1 {
		return fmt.Errorf("logging flush size must be at least 1")
	}
	return nil
}
