package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	State   ServiceConfig `toml:"state"`
	Worker  ServiceConfig `toml:"worker"`
	Paths   PathsConfig   `toml:"paths"`
	Spotify SpotifyConfig `toml:"spotify"`
	History HistoryConfig `toml:"history"`
}

// ServiceConfig contains listener settings for one of the two loopback services.
type ServiceConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the host:port listen address for the service.
func (s ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PathsConfig contains filesystem locations shared by the services.
//
// DataDir holds the queue, credentials and debug-settings documents.
// DownloadDir is where the P2P client drops completed files; album folders
// are created beneath it.
type PathsConfig struct {
	DataDir     string `toml:"data_dir"`
	DownloadDir string `toml:"download_dir"`
}

// SpotifyConfig contains optional Spotify API credentials.
//
// Credentials posted by the browser through the state service take
// precedence; these act as a bootstrap default.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// HistoryConfig contains settings for the worker's enrichment history store.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv loads a .env file when present and overlays SPOTIFY_CLIENT_ID and
// SPOTIFY_CLIENT_SECRET onto the config. Missing .env files are not an error.
func ApplyEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		config.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		config.Spotify.ClientSecret = v
	}
}
