package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Engine      EngineConfig      `toml:"engine"`
	OCR         OCRConfig         `toml:"ocr"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
//
// RefreshToken is exchanged for access tokens on demand; without it the
// client falls back to the client-credentials grant, which can search but
// cannot create playlists.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	UserID       string `toml:"user_id"`
	RedirectURI  string `toml:"redirect_uri"`
	Market       string `toml:"market"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	RequestTimeout Duration `toml:"request_timeout"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Addr returns the host:port pair the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EngineConfig tunes playlist generation.
type EngineConfig struct {
	Workers             int     `toml:"workers"`
	RateLimit           float64 `toml:"rate_limit"`
	RateBurst           int     `toml:"rate_burst"`
	MaxRetries          int     `toml:"max_retries"`
	BatchSize           int     `toml:"batch_size"`
	PlaylistName        string  `toml:"playlist_name"`
	PlaylistDescription string  `toml:"playlist_description"`
}

// OCRConfig points at the tesseract binary used for screenshot extraction.
type OCRConfig struct {
	Tesseract string `toml:"tesseract"`
	Lang      string `toml:"lang"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from TOML strings like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
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

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnv loads the given dotenv files (missing files are ignored) and
// overrides Spotify credentials with any SPOTIFY_* variables that are set.
func ApplyEnv(config *Config, files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	overrides := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &config.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &config.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REFRESH_TOKEN": &config.Credentials.Spotify.RefreshToken,
		"SPOTIFY_USER_ID":       &config.Credentials.Spotify.UserID,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
}

// Validate checks the values the engine and server cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Engine.Workers < 1:
		return fmt.Errorf("%w: engine.workers must be at least 1", ErrInvalidConfig)
	case c.Engine.BatchSize < 1 || c.Engine.BatchSize > 100:
		return fmt.Errorf("%w: engine.batch_size must be between 1 and 100", ErrInvalidConfig)
	case c.Engine.MaxRetries < 0:
		return fmt.Errorf("%w: engine.max_retries must not be negative", ErrInvalidConfig)
	case c.Engine.RateLimit <= 0:
		return fmt.Errorf("%w: engine.rate_limit must be positive", ErrInvalidConfig)
	case c.Server.RequestTimeout.Duration <= 0:
		return fmt.Errorf("%w: server.request_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
