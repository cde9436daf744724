package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CameraConfig holds the remote camera settings.
type CameraConfig struct {
	IP             string        `json:"ip"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	QueryTimeout   time.Duration `json:"query_timeout"`
	Fallback       bool          `json:"fallback"`
}

type LocalConfig struct {
	DeviceID int `json:"device"`
	FPS      int `json:"fps"`
}

type LogConfig struct {
	File  string `json:"file"`
	Level string `json:"level"`
}

type SimulatorConfig struct {
	Port string `json:"port"`
	FPS  int    `json:"fps"`
}

type AppConfig struct {
	Camera    CameraConfig    `json:"camera"`
	Local     LocalConfig     `json:"local"`
	Log       LogConfig       `json:"log"`
	Simulator SimulatorConfig `json:"simulator"`
}

// FrameInterval is the fallback polling period for Local.FPS.
func (c *AppConfig) FrameInterval() time.Duration {
	if c.Local.FPS <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.Local.FPS)
}

// envBindings maps config keys to their SUS_* environment variables.
var envBindings = []struct{ key, env string }{
	{"camera.ip", "SUS_IP"},
	{"camera.fallback", "SUS_FALLBACK"},
	{"camera.connect_timeout", "SUS_CONNECT_TIMEOUT"},
	{"camera.query_timeout", "SUS_QUERY_TIMEOUT"},
	{"local.device", "SUS_LOCAL_DEVICE"},
	{"local.fps", "SUS_LOCAL_FPS"},
	{"log.file", "SUS_LOG_FILE"},
	{"log.level", "SUS_LOG_LEVEL"},
	{"simulator.port", "SUS_SIM_PORT"},
	{"simulator.fps", "SUS_SIM_FPS"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("camera.ip", "127.0.0.1")
	v.SetDefault("camera.connect_timeout", 5*time.Second)
	v.SetDefault("camera.query_timeout", 2*time.Second)
	v.SetDefault("camera.fallback", false)
	v.SetDefault("local.device", 0)
	v.SetDefault("local.fps", 20)
	v.SetDefault("log.file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("simulator.port", "8080")
	v.SetDefault("simulator.fps", 20)
}

// getConfigPath follows the XDG convention: ~/.config/suscam/config.json
func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "suscam", "config.json"), nil
}

// Load merges, lowest first: defaults, the config file, .env and the
// environment. SUS_IP selects the camera address.
func Load() (*AppConfig, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit config file. A missing file is fine.
func LoadFile(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	_ = godotenv.Load(".env")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", b.key, b.env, err)
		}
	}

	return &AppConfig{
		Camera: CameraConfig{
			IP:             v.GetString("camera.ip"),
			ConnectTimeout: v.GetDuration("camera.connect_timeout"),
			QueryTimeout:   v.GetDuration("camera.query_timeout"),
			Fallback:       v.GetBool("camera.fallback"),
		},
		Local: LocalConfig{
			DeviceID: v.GetInt("local.device"),
			FPS:      v.GetInt("local.fps"),
		},
		Log: LogConfig{
			File:  v.GetString("log.file"),
			Level: v.GetString("log.level"),
		},
		Simulator: SimulatorConfig{
			Port: v.GetString("simulator.port"),
			FPS:  v.GetInt("simulator.fps"),
		},
	}, nil
}

// Save writes cfg to the default config path.
func Save(cfg *AppConfig) (string, error) {
	path, err := getConfigPath()
	if err != nil {
		return "", err
	}
	return path, SaveFile(cfg, path)
}

// SaveFile writes cfg as JSON. Durations are written as strings so Load can
// read them back.
func SaveFile(cfg *AppConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	out := map[string]any{
		"camera": map[string]any{
			"ip":              cfg.Camera.IP,
			"connect_timeout": cfg.Camera.ConnectTimeout.String(),
			"query_timeout":   cfg.Camera.QueryTimeout.String(),
			"fallback":        cfg.Camera.Fallback,
		},
		"local":     cfg.Local,
		"log":       cfg.Log,
		"simulator": cfg.Simulator,
	}
	configBytes, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}
	if err := os.WriteFile(path, configBytes, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
