package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Mixing      MixingConfig      `toml:"mixing"`
	Resolver    ResolverConfig    `toml:"resolver"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the last issued token.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenExpiry  string `toml:"token_expiry"` // RFC 3339
}

// Map returns the credentials in the form accepted by the service constructors.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
		"token_expiry":  s.TokenExpiry,
	}
}

// SetToken stores an issued token so the next run can reuse it.
func (s *SpotifyConfig) SetToken(token *oauth2.Token) {
	if token == nil {
		return
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = ""
	if !token.Expiry.IsZero() {
		s.TokenExpiry = token.Expiry.UTC().Format(time.RFC3339)
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"` // Empty or "*" allows any origin
}

// Addr returns host:port for [http.Server].
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MixingConfig holds the sequencer, grouper and similarity settings.
type MixingConfig struct {
	BeamWidth       int           `toml:"beam_width"`
	MaxClusters     int           `toml:"max_clusters"`
	ClampSimilarity bool          `toml:"clamp_similarity"`
	Weights         WeightsConfig `toml:"weights"`
}

// WeightsConfig mirrors the transition cost weights field for field, so it converts directly to the
// mixing package's Weights.
type WeightsConfig struct {
	Danceability float64 `toml:"danceability"`
	Energy       float64 `toml:"energy"`
	Loudness     float64 `toml:"loudness"`
	Tempo        float64 `toml:"tempo"`
	Valence      float64 `toml:"valence"`
	Genre        float64 `toml:"genre"`
}

// Validate rejects settings the mixing package would refuse.
func (m MixingConfig) Validate() error {
	if m.BeamWidth <= 0 {
		return fmt.Errorf("%w: mixing.beam_width must be positive, got %d", ErrInvalidConfig, m.BeamWidth)
	}
	if m.MaxClusters <= 0 {
		return fmt.Errorf("%w: mixing.max_clusters must be positive, got %d", ErrInvalidConfig, m.MaxClusters)
	}
	w := m.Weights
	for _, v := range []float64{w.Danceability, w.Energy, w.Loudness, w.Tempo, w.Valence, w.Genre} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: mixing.weights must be finite and non-negative, got %+v", ErrInvalidConfig, w)
		}
	}
	return nil
}

// ResolverConfig tunes how audio features are fetched.
type ResolverConfig struct {
	Workers   int     `toml:"workers"`
	RateLimit float64 `toml:"rate_limit"` // Requests per second
	Cache     bool    `toml:"cache"`      // Persist resolved features in the database
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

// SaveConfig writes config to path, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
