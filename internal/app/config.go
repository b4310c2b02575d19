package app

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix scopes the environment variables, e.g. LIVECHAT_ADDR.
const envPrefix = "livechat"

// ServerConfig defines how the HTTP/WebSocket backend should run.
type ServerConfig struct {
	Addr string `envconfig:"ADDR" default:":8080"`
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	Endpoint    string `envconfig:"ENDPOINT" default:"http://127.0.0.1:8080"`
	DisplayName string `envconfig:"NAME"`
	UserID      string `envconfig:"USER_ID"`
	Room        string `envconfig:"ROOM"`
	DBPath      string `envconfig:"DB_PATH"`
}

// LoadServerConfig reads server settings from the environment.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	err := envconfig.Process(envPrefix, &cfg)
	return cfg, err
}

// LoadClientConfig reads client settings from the environment.
func LoadClientConfig() (ClientConfig, error) {
	var cfg ClientConfig
	err := envconfig.Process(envPrefix, &cfg)
	if err == nil && cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	return cfg, err
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("LIVECHAT_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("LIVECHAT_DATA_DIR"); env != "" {
		return filepath.Join(env, "livechat.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "livechat", "livechat.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Livechat", "livechat.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Livechat", "livechat.db")
		}
		return filepath.Join(home, ".local", "share", "livechat", "livechat.db")
	}
	return filepath.Join(".", ".livechat", "livechat.db")
}
