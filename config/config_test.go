package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/spotstat/config"
)

func TestParseDefaults(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "state")
	t.Setenv(config.EnvClientSecret, "secret")
	t.Setenv(config.EnvRefreshToken, "refresh")
	t.Setenv(config.EnvStatusFile, "")

	conf, err := config.Parse([]byte(`
spotify:
  client_id: app
  redirect_url: http://127.0.0.1:8888/callback
  default_playlist: liked
state:
  dir: ` + stateDir + `
`))
	require.NoError(t, err)

	assert.Equal(t, "secret", conf.Spotify.ClientSecret)
	assert.Equal(t, "refresh", conf.Spotify.RefreshToken)
	assert.Equal(t, "https://api.spotify.com/v1", conf.Spotify.APIURL)
	assert.Equal(t, "https://accounts.spotify.com/api/token", conf.Spotify.TokenURL)
	assert.Contains(t, conf.Spotify.Scopes, "user-read-currently-playing")
	assert.Equal(t, filepath.Join(stateDir, "status-bar"), conf.Status.File)
	assert.Equal(t, 100, conf.Status.Width)
	assert.Equal(t, "...", conf.Status.Placeholder)
	assert.Equal(t, "Connecting to Spotify...", conf.Status.ResetText)
	assert.Equal(t, 2*time.Second, conf.Status.Padding.Duration)
	assert.Equal(t, 3, conf.HTTP.MaxRetries)
	assert.Equal(t, "info", conf.Log.Level)
	assert.Equal(t, "pretty", conf.Log.Format)

	info, err := os.Stat(stateDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv(config.EnvClientSecret, "secret")
	t.Setenv(config.EnvStatusFile, "/tmp/from-env")

	conf, err := config.Parse([]byte(`
spotify:
  client_id: app
  redirect_url: http://127.0.0.1:8888/callback
state:
  dir: ` + t.TempDir() + `
status:
  file: /tmp/from-yaml
  width: 40
  padding: 500ms
http:
  timeout: 3s
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/from-env", conf.Status.File)
	assert.Equal(t, 40, conf.Status.Width)
	assert.Equal(t, 500*time.Millisecond, conf.Status.Padding.Duration)
	assert.Equal(t, 3*time.Second, conf.HTTP.Timeout.Duration)
	assert.Equal(t, "json", conf.Log.Format)
}

func TestParseValidation(t *testing.T) {
	t.Setenv(config.EnvClientSecret, "secret")

	dir := t.TempDir()
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing client id",
			yaml: "spotify:\n  redirect_url: http://localhost/cb\nstate:\n  dir: " + dir,
		},
		{
			name: "missing redirect url",
			yaml: "spotify:\n  client_id: app\nstate:\n  dir: " + dir,
		},
		{
			name: "non http redirect url",
			yaml: "spotify:\n  client_id: app\n  redirect_url: ftp://localhost/cb\nstate:\n  dir: " + dir,
		},
		{
			name: "invalid log level",
			yaml: "spotify:\n  client_id: app\n  redirect_url: http://localhost/cb\nstate:\n  dir: " + dir + "\nlog:\n  level: loud",
		},
		{
			name: "width too small",
			yaml: "spotify:\n  client_id: app\n  redirect_url: http://localhost/cb\nstate:\n  dir: " + dir + "\nstatus:\n  width: 2",
		},
		{
			name: "invalid duration",
			yaml: "spotify:\n  client_id: app\n  redirect_url: http://localhost/cb\nstate:\n  dir: " + dir + "\nstatus:\n  padding: soon",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := config.Parse([]byte(test.yaml))
			require.Error(t, err)
		})
	}
}

func TestParseRequiresClientSecret(t *testing.T) {
	t.Setenv(config.EnvClientSecret, "")

	_, err := config.Parse([]byte("spotify:\n  client_id: app\n  redirect_url: http://localhost/cb\nstate:\n  dir: " + t.TempDir()))
	require.ErrorContains(t, err, config.EnvClientSecret)
}
