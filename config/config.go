// Package config 读取 symlayout 的 YAML 配置，并允许环境变量覆盖。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
	"gopkg.in/yaml.v3"

	"github.com/ByLCY/symlayout/layout"
)

// EnvPrefix 是环境变量覆盖的前缀。
const EnvPrefix = "SYMBOLS_"

// Config 是配置文件的根结构。
type Config struct {
	Layout  LayoutConfig `yaml:"layout"`
	Server  ServerConfig `yaml:"server"`
	Log     LogConfig    `yaml:"log"`
	Debug   DebugConfig  `yaml:"debug"`
	Workers int          `yaml:"workers"`
}

// LayoutConfig 对应 layout.BuildOptions 中与调用方无关的部分。
type LayoutConfig struct {
	Extent        int     `yaml:"extent"`
	TileSize      int     `yaml:"tile-size"`
	ClipBuffer    float64 `yaml:"clip-buffer"`
	Overscaling   float64 `yaml:"overscaling"`
	PixelRatio    float64 `yaml:"pixel-ratio"`
	ScaleFactor   float64 `yaml:"scale-factor"`
	PolePrecision float64 `yaml:"pole-precision"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address             string `yaml:"address"`
	BodyLimit           string `yaml:"body-limit"`
	ReadTimeoutSeconds  int    `yaml:"read-timeout-seconds"`
	WriteTimeoutSeconds int    `yaml:"write-timeout-seconds"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// DebugConfig 控制调试输出。
type DebugConfig struct {
	CollisionBoxes bool   `yaml:"collision-boxes"`
	RenderFormat   string `yaml:"render-format"`
	Labels         bool   `yaml:"labels"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Layout: LayoutConfig{
			Extent:        layout.DefaultExtent,
			TileSize:      layout.DefaultTileSize,
			ClipBuffer:    0,
			Overscaling:   1,
			PixelRatio:    1,
			ScaleFactor:   1,
			PolePrecision: 2,
		},
		Server: ServerConfig{
			Address:             ":8090",
			BodyLimit:           "16M",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
		},
		Log:     LogConfig{Level: "info"},
		Debug:   DebugConfig{RenderFormat: "pdf"},
		Workers: 4,
	}
}

// Load 读取 path 处的 YAML 配置；path 为空或文件不存在时使用默认值。
// 文件中未出现的字段保留默认值，随后应用环境变量覆盖并校验。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		}
	}
	if err := cfg.applyEnvironmentOverrides(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save 把配置写为 YAML。
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides 用 SYMBOLS_* 环境变量覆盖配置。
func (c *Config) applyEnvironmentOverrides(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"EXTENT":    &c.Layout.Extent,
		"TILE_SIZE": &c.Layout.TileSize,
		"WORKERS":   &c.Workers,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("环境变量 %s%s 不是整数: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	floats := map[string]*float64{
		"CLIP_BUFFER":  &c.Layout.ClipBuffer,
		"OVERSCALING":  &c.Layout.Overscaling,
		"PIXEL_RATIO":  &c.Layout.PixelRatio,
		"SCALE_FACTOR": &c.Layout.ScaleFactor,
	}
	for key, dst := range floats {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fmt.Errorf("环境变量 %s%s 不是数字: %w", EnvPrefix, key, err)
			}
			*dst = f
		}
	}
	if v, ok := lookup(EnvPrefix + "ADDR"); ok {
		c.Server.Address = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvPrefix + "DEBUG_COLLISION_BOXES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("环境变量 %sDEBUG_COLLISION_BOXES 不是布尔值: %w", EnvPrefix, err)
		}
		c.Debug.CollisionBoxes = b
	}
	return nil
}

// Validate 检查配置取值范围。
func (c *Config) Validate() error {
	l := c.Layout
	switch {
	case l.Extent <= 0:
		return fmt.Errorf("layout.extent 必须为正数: %d", l.Extent)
	case l.TileSize <= 0:
		return fmt.Errorf("layout.tile-size 必须为正数: %d", l.TileSize)
	case l.ClipBuffer < 0:
		return fmt.Errorf("layout.clip-buffer 不能为负: %g", l.ClipBuffer)
	case l.Overscaling < 1:
		return fmt.Errorf("layout.overscaling 不能小于 1: %g", l.Overscaling)
	case l.PixelRatio <= 0:
		return fmt.Errorf("layout.pixel-ratio 必须为正数: %g", l.PixelRatio)
	case l.ScaleFactor <= 0:
		return fmt.Errorf("layout.scale-factor 必须为正数: %g", l.ScaleFactor)
	case c.Workers <= 0:
		return fmt.Errorf("workers 必须为正数: %d", c.Workers)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Debug.RenderFormat {
	case "", "pdf", "svg":
	default:
		return fmt.Errorf("debug.render-format 只能是 pdf 或 svg: %s", c.Debug.RenderFormat)
	}
	return nil
}

// LogLevel 解析日志级别。
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level 无效: %s", c.Log.Level)
	}
	return level, nil
}

// BuildOptions 返回 tile 的构建参数，Shaper 与 Images 由调用方补充。
func (c *Config) BuildOptions(tile maptile.Tile, zoom float64) layout.BuildOptions {
	l := c.Layout
	return layout.BuildOptions{
		Tile:          tile,
		Zoom:          zoom,
		Extent:        l.Extent,
		TileSize:      l.TileSize,
		ClipBuffer:    l.ClipBuffer,
		Overscaling:   l.Overscaling,
		PixelRatio:    l.PixelRatio,
		ScaleFactor:   l.ScaleFactor,
		PolePrecision: l.PolePrecision,
		Debug:         layout.DebugOptions{CollisionBoxes: c.Debug.CollisionBoxes},
	}
}
