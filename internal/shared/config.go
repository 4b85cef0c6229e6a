package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source   SourceConfig   `toml:"source"`
	Backend  BackendConfig  `toml:"backend"`
	Paths    PathsConfig    `toml:"paths"`
	Sync     SyncConfig     `toml:"sync"`
	Tags     TagsConfig     `toml:"tags"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// SourceConfig selects the playlist provider.
type SourceConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify client-credentials settings and the playlist to mirror.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	PlaylistID   string `toml:"playlist_id"`
}

// BackendConfig configures the slskd acquisition backend and the candidate filter.
type BackendConfig struct {
	URL            string   `toml:"url"`
	APIKey         string   `toml:"api_key"`
	RequestTimeout Duration `toml:"request_timeout"`
	PollInterval   Duration `toml:"poll_interval"`
	MaxWait        Duration `toml:"max_wait"`
	Format         string   `toml:"format"`
	MinBitRate     int      `toml:"min_bitrate"`
}

// PathsConfig holds every filesystem location the run touches.
type PathsConfig struct {
	StagingDir   string   `toml:"staging_dir"`
	IntakeDir    string   `toml:"intake_dir"`
	LibraryIndex string   `toml:"library_index"`
	LibraryRoots []string `toml:"library_roots"`
	Playlist     string   `toml:"playlist"`
	LockFile     string   `toml:"lock_file"`
}

// SyncConfig controls run-level timing and post-processing policy.
type SyncConfig struct {
	RunTimeout         Duration `toml:"run_timeout"`
	TrackPacing        Duration `toml:"track_pacing"`
	SettleDelay        Duration `toml:"settle_delay"`
	RetentionDays      int      `toml:"retention_days"`
	PurgeOnCopyFailure bool     `toml:"purge_on_copy_failure"`
}

// TagsConfig holds the fixed values the tag normalizer writes.
type TagsConfig struct {
	Album       string `toml:"album"`
	AlbumArtist string `toml:"album_artist"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig sets the log level ("debug", "info", "warn", "error").
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps [time.Duration] so TOML values like "30m" decode directly.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults. Secrets can be supplied through the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv(os.LookupEnv)
	if err := config.Validate(); err != nil {
		return nil, err
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

// ApplyEnv overrides credentials with environment variables when present.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for name, target := range map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Source.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Source.Spotify.ClientSecret,
		"SPOTIFY_PLAYLIST_ID":   &c.Source.Spotify.PlaylistID,
		"SLSKD_URL":             &c.Backend.URL,
		"SLSKD_API_KEY":         &c.Backend.APIKey,
	} {
		if v, ok := lookup(name); ok && v != "" {
			*target = v
		}
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Paths.StagingDir == "":
		return fmt.Errorf("%w: paths.staging_dir is required", ErrInvalidConfig)
	case c.Paths.IntakeDir == "":
		return fmt.Errorf("%w: paths.intake_dir is required", ErrInvalidConfig)
	case c.Backend.PollInterval.Duration <= 0:
		return fmt.Errorf("%w: backend.poll_interval must be positive", ErrInvalidConfig)
	case c.Backend.MaxWait.Duration < c.Backend.PollInterval.Duration:
		return fmt.Errorf("%w: backend.max_wait must be at least poll_interval", ErrInvalidConfig)
	case c.Backend.Format == "":
		return fmt.Errorf("%w: backend.format is required", ErrInvalidConfig)
	}
	return nil
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

// PlaylistPath resolves the playlist export location; relative names live in the staging directory.
func (c *Config) PlaylistPath() string {
	if filepath.IsAbs(c.Paths.Playlist) {
		return c.Paths.Playlist
	}
	return filepath.Join(c.Paths.StagingDir, c.Paths.Playlist)
}
