package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"gopkg.in/yaml.v3"

	"github.com/xeptore/spotstat/redact"
)

const (
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET" //nolint:gosec
	EnvRefreshToken = "SPOTIFY_REFRESH_TOKEN" //nolint:gosec
	EnvStatusFile   = "SPOTSTAT_STATUS_FILE"
)

type Config struct {
	Spotify Spotify `yaml:"spotify"`
	State   State   `yaml:"state"`
	Status  Status  `yaml:"status"`
	HTTP    HTTP    `yaml:"http"`
	Log     Log     `yaml:"log"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("spotify", c.Spotify.ToDict()).
		Dict("state", c.State.ToDict()).
		Dict("status", c.Status.ToDict()).
		Dict("http", c.HTTP.ToDict()).
		Dict("log", c.Log.ToDict())
}

func (c *Config) setDefaults() {
	c.Spotify.setDefaults()
	c.State.setDefaults()
	c.Status.setDefaults()
	c.HTTP.setDefaults()
	c.Log.setDefaults()

	if c.Status.File == "" {
		c.Status.File = filepath.Join(c.State.Dir, "status-bar")
	}
}

func (c *Config) validate() error {
	if err := c.Spotify.validate(); nil != err {
		return fmt.Errorf("spotify config validation failed: %v", err)
	}

	if err := c.State.validate(); nil != err {
		return fmt.Errorf("state config validation failed: %v", err)
	}

	if err := c.Status.validate(); nil != err {
		return fmt.Errorf("status config validation failed: %v", err)
	}

	if err := c.HTTP.validate(); nil != err {
		return fmt.Errorf("http config validation failed: %v", err)
	}

	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	return nil
}

type Spotify struct {
	ClientID        string   `yaml:"client_id"`
	ClientSecret    string   `yaml:"-"`
	RefreshToken    string   `yaml:"-"`
	RedirectURL     string   `yaml:"redirect_url"`
	Scopes          []string `yaml:"scopes"`
	DefaultPlaylist string   `yaml:"default_playlist"`
	Market          string   `yaml:"market"`
	APIURL          string   `yaml:"api_url"`
	AuthURL         string   `yaml:"auth_url"`
	TokenURL        string   `yaml:"token_url"`
}

func (c *Spotify) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("client_id", c.ClientID).
		Str("client_secret", redact.String(c.ClientSecret)).
		Str("refresh_token", redact.String(c.RefreshToken)).
		Str("redirect_url", c.RedirectURL).
		Strs("scopes", c.Scopes).
		Str("default_playlist", c.DefaultPlaylist).
		Str("market", c.Market).
		Str("api_url", c.APIURL).
		Str("auth_url", c.AuthURL).
		Str("token_url", c.TokenURL)
}

func (c *Spotify) setDefaults() {
	if len(c.Scopes) == 0 {
		c.Scopes = []string{
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
		}
	}

	if c.APIURL == "" {
		c.APIURL = "https://api.spotify.com/v1"
	}

	if c.AuthURL == "" {
		c.AuthURL = spotifyauth.AuthURL
	}

	if c.TokenURL == "" {
		c.TokenURL = spotifyauth.TokenURL
	}
}

func (c *Spotify) validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}

	if c.ClientSecret == "" {
		return errors.New("make sure the " + EnvClientSecret + " environment variable is set")
	}

	if c.RedirectURL == "" {
		return errors.New("redirect_url is required")
	}

	for name, raw := range map[string]string{
		"redirect_url": c.RedirectURL,
		"api_url":      c.APIURL,
		"auth_url":     c.AuthURL,
		"token_url":    c.TokenURL,
	} {
		if u, err := url.Parse(raw); nil != err {
			return fmt.Errorf("%s is not a valid url: %v", name, err)
		} else if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s must be an http(s) url, got: %s", name, raw)
		}
	}

	return nil
}

type State struct {
	Dir string `yaml:"dir"`
}

func (c *State) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("dir", c.Dir)
}

func (c *State) setDefaults() {
	if c.Dir == "" {
		c.Dir = "/tmp/spotify-api"
	}
}

func (c *State) validate() error {
	if i, err := os.Stat(c.Dir); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to stat dir: %v", err)
	} else if !i.IsDir() {
		return errors.New("dir must be a directory")
	}

	return nil
}

func (c *State) ensure() error {
	if err := os.MkdirAll(c.Dir, 0o0700); nil != err {
		return fmt.Errorf("failed to create state dir: %v", err)
	}

	return nil
}

type Status struct {
	File         string   `yaml:"file"`
	Width        int      `yaml:"width"`
	Placeholder  string   `yaml:"placeholder"`
	ResetText    string   `yaml:"reset_text"`
	Padding      Duration `yaml:"padding"`
	IdleInterval Duration `yaml:"idle_interval"`
	MaxIdle      Duration `yaml:"max_idle"`
}

func (c *Status) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("file", c.File).
		Int("width", c.Width).
		Str("placeholder", c.Placeholder).
		Str("reset_text", c.ResetText).
		Str("padding", c.Padding.String()).
		Str("idle_interval", c.IdleInterval.String()).
		Str("max_idle", c.MaxIdle.String())
}

func (c *Status) setDefaults() {
	if c.Width == 0 {
		c.Width = 100
	}

	if c.Placeholder == "" {
		c.Placeholder = "..."
	}

	if c.ResetText == "" {
		c.ResetText = "Connecting to Spotify..."
	}

	if c.Padding.Duration == 0 {
		c.Padding.Duration = 2 * time.Second
	}

	if c.IdleInterval.Duration == 0 {
		c.IdleInterval.Duration = 5 * time.Second
	}

	if c.MaxIdle.Duration == 0 {
		c.MaxIdle.Duration = 1 * time.Minute
	}
}

func (c *Status) validate() error {
	if c.Width <= len(c.Placeholder) {
		return errors.New("width must be greater than the placeholder length")
	}

	if c.Padding.Duration < 0 {
		return errors.New("padding must not be negative")
	}

	if c.IdleInterval.Duration <= 0 {
		return errors.New("idle_interval must be greater than 0")
	}

	if c.MaxIdle.Duration < c.IdleInterval.Duration {
		return errors.New("max_idle must not be less than idle_interval")
	}

	return nil
}

type HTTP struct {
	Timeout           Duration `yaml:"timeout"`
	MaxRetries        int      `yaml:"max_retries"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Burst             int      `yaml:"burst"`
	RetryBackoff      Duration `yaml:"retry_backoff"`
}

func (c *HTTP) ToDict() *zerolog.Event {
	return zerolog.
		Dict().
		Str("timeout", c.Timeout.String()).
		Int("max_retries", c.MaxRetries).
		Float64("requests_per_second", c.RequestsPerSecond).
		Int("burst", c.Burst).
		Str("retry_backoff", c.RetryBackoff.String())
}

func (c *HTTP) setDefaults() {
	if c.Timeout.Duration == 0 {
		c.Timeout.Duration = 10 * time.Second
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}

	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 5
	}

	if c.Burst == 0 {
		c.Burst = 5
	}

	if c.RetryBackoff.Duration == 0 {
		c.RetryBackoff.Duration = 1 * time.Second
	}
}

func (c *HTTP) validate() error {
	if c.Timeout.Duration < 0 {
		return errors.New("timeout must be greater than 0")
	}

	if c.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}

	if c.RequestsPerSecond < 0 {
		return errors.New("requests_per_second must be greater than 0")
	}

	if c.Burst < 0 {
		return errors.New("burst must be greater than 0")
	}

	if c.RetryBackoff.Duration < 0 {
		return errors.New("retry_backoff must not be negative")
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format)
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "pretty"
	}
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: trace, debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"json", "pretty"}, c.Format) {
		return fmt.Errorf("format must be 'json' or 'pretty', got: %s", c.Format)
	}

	return nil
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	d.Duration = parsed

	return nil
}

func Load(filename string) (*Config, error) {
	filename = lo.Ternary(len(filename) > 0, filename, "config.yaml")

	data, err := os.ReadFile(filename)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	return Parse(data)
}

// Parse builds a Config from YAML contents, filling secrets from the
// environment and creating the state directory.
func Parse(data []byte) (*Config, error) {
	var conf Config
	if err := yaml.Unmarshal(data, &conf); nil != err {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	conf.Spotify.ClientSecret = os.Getenv(EnvClientSecret)
	conf.Spotify.RefreshToken = os.Getenv(EnvRefreshToken)
	if f := os.Getenv(EnvStatusFile); f != "" {
		conf.Status.File = f
	}
	conf.setDefaults()

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	if err := conf.State.ensure(); nil != err {
		return nil, err
	}

	return &conf, nil
}
