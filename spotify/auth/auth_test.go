package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/spotstat/config"
	"github.com/xeptore/spotstat/spotify/auth"
	"github.com/xeptore/spotstat/spotify/fs"
)

func newConf(tokenURL string) config.Spotify {
	return config.Spotify{
		ClientID:        "app",
		ClientSecret:    "secret",
		RefreshToken:    "",
		RedirectURL:     "http://127.0.0.1:8888/callback",
		Scopes:          []string{"user-read-currently-playing", "user-read-playback-state"},
		DefaultPlaylist: "",
		Market:          "",
		APIURL:          "",
		AuthURL:         "https://accounts.example.com/authorize",
		TokenURL:        tokenURL,
	}
}

type tokenServer struct {
	*httptest.Server
	calls  atomic.Int32
	status int
	body   string
	forms  chan url.Values
}

func newTokenServer(t *testing.T, status int, body string) *tokenServer {
	t.Helper()

	ts := &tokenServer{status: status, body: body, forms: make(chan url.Values, 8)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)

		user, pass, ok := r.BasicAuth()
		if !ok || user != "app" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": "invalid_client"}`))
			return
		}

		if err := r.ParseForm(); nil != err {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		ts.forms <- r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		_, _ = w.Write([]byte(ts.body))
	}))
	t.Cleanup(ts.Close)

	return ts
}

func TestExchangePersistsSession(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, http.StatusOK, `{"access_token": "acc", "token_type": "Bearer", "expires_in": 3600, "refresh_token": "ref", "scope": "x"}`)
	state := fs.StateDirFrom(t.TempDir())

	a, err := auth.New(zerolog.Nop(), newConf(srv.URL), state.AuthFile(), 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, a.Exchange(context.Background(), zerolog.Nop(), "the-code"))

	form := <-srv.forms
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, "http://127.0.0.1:8888/callback", form.Get("redirect_uri"))

	creds := a.Credentials()
	assert.Equal(t, "acc", creds.AccessToken)
	assert.Equal(t, "ref", creds.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), creds.ExpiresAt, 5*time.Second)

	stored, err := state.AuthFile().Read()
	require.NoError(t, err)
	assert.Equal(t, "acc", stored.AccessToken)
	assert.Equal(t, "ref", stored.RefreshToken)

	reloaded, err := auth.New(zerolog.Nop(), newConf(srv.URL), state.AuthFile(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "acc", reloaded.Credentials().AccessToken)
	assert.False(t, reloaded.Credentials().NeedsRefresh(time.Now()))
}

func TestExchangeRejectsMalformedResponses(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"token_type": "Bearer", "expires_in": 3600, "refresh_token": "ref"}`,
		`{"access_token": "acc", "refresh_token": "ref"}`,
		`{"access_token": "acc", "expires_in": "soon", "refresh_token": "ref"}`,
		`{"access_token": "acc", "expires_in": 3600}`,
	}
	for _, body := range bodies {
		srv := newTokenServer(t, http.StatusOK, body)
		a, err := auth.New(zerolog.Nop(), newConf(srv.URL), fs.StateDirFrom(t.TempDir()).AuthFile(), 5*time.Second)
		require.NoError(t, err)

		err = a.Exchange(context.Background(), zerolog.Nop(), "code")
		require.ErrorIs(t, err, auth.ErrMalformedTokenResponse, body)
	}
}

func TestEnsureFreshWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, http.StatusOK, `{}`)
	a, err := auth.New(zerolog.Nop(), newConf(srv.URL), fs.StateDirFrom(t.TempDir()).AuthFile(), 5*time.Second)
	require.NoError(t, err)

	require.ErrorIs(t, a.EnsureFresh(context.Background(), zerolog.Nop()), auth.ErrLoginRequired)
	assert.Zero(t, srv.calls.Load())
}

func TestEnsureFreshSeedsFromConfiguredRefreshToken(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, http.StatusOK, `{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}`)
	conf := newConf(srv.URL)
	conf.RefreshToken = "seed"
	state := fs.StateDirFrom(t.TempDir())

	a, err := auth.New(zerolog.Nop(), conf, state.AuthFile(), 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, a.EnsureFresh(context.Background(), zerolog.Nop()))

	form := <-srv.forms
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "seed", form.Get("refresh_token"))

	creds := a.Credentials()
	assert.Equal(t, "fresh", creds.AccessToken)
	assert.Equal(t, "seed", creds.RefreshToken, "refresh token is kept when not rotated")

	require.NoError(t, a.EnsureFresh(context.Background(), zerolog.Nop()))
	assert.Equal(t, int32(1), srv.calls.Load(), "valid token is not refreshed again")
}

func TestRefreshSkipsWhenAlreadyRefreshed(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, http.StatusOK, `{"access_token": "new", "expires_in": 3600, "refresh_token": "rotated"}`)
	conf := newConf(srv.URL)
	conf.RefreshToken = "seed"

	a, err := auth.New(zerolog.Nop(), conf, fs.StateDirFrom(t.TempDir()).AuthFile(), 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, a.Refresh(context.Background(), zerolog.Nop(), ""))
	assert.Equal(t, "rotated", a.Credentials().RefreshToken)

	require.NoError(t, a.Refresh(context.Background(), zerolog.Nop(), "some-older-token"))
	assert.Equal(t, int32(1), srv.calls.Load())

	require.NoError(t, a.Refresh(context.Background(), zerolog.Nop(), "new"))
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestRefreshInvalidGrant(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, http.StatusBadRequest, `{"error": "invalid_grant", "error_description": "Invalid refresh token"}`)
	conf := newConf(srv.URL)
	conf.RefreshToken = "revoked"

	a, err := auth.New(zerolog.Nop(), conf, fs.StateDirFrom(t.TempDir()).AuthFile(), 5*time.Second)
	require.NoError(t, err)

	require.ErrorIs(t, a.Refresh(context.Background(), zerolog.Nop(), ""), auth.ErrLoginRequired)
}

func TestRefreshServerError(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, http.StatusInternalServerError, `oops`)
	conf := newConf(srv.URL)
	conf.RefreshToken = "seed"

	a, err := auth.New(zerolog.Nop(), conf, fs.StateDirFrom(t.TempDir()).AuthFile(), 5*time.Second)
	require.NoError(t, err)

	err = a.Refresh(context.Background(), zerolog.Nop(), "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrLoginRequired)
	assert.ErrorContains(t, err, "500")
}

func TestForgetKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	srv := newTokenServer(t, http.StatusOK, `{"access_token": "acc", "expires_in": 3600, "refresh_token": "ref"}`)
	state := fs.StateDirFrom(t.TempDir())

	a, err := auth.New(zerolog.Nop(), newConf(srv.URL), state.AuthFile(), 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, a.Exchange(context.Background(), zerolog.Nop(), "code"))
	<-srv.forms
	require.NoError(t, a.Forget())
	assert.Equal(t, "acc", a.Credentials().AccessToken)

	reloaded, err := auth.New(zerolog.Nop(), newConf(srv.URL), state.AuthFile(), 5*time.Second)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Credentials().AccessToken)
	assert.Equal(t, "ref", reloaded.Credentials().RefreshToken)
	assert.True(t, reloaded.Credentials().NeedsRefresh(time.Now()))

	require.NoError(t, reloaded.EnsureFresh(context.Background(), zerolog.Nop()))
	form := <-srv.forms
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "ref", form.Get("refresh_token"))
	assert.Equal(t, "acc", reloaded.Credentials().AccessToken)
	assert.Equal(t, int32(2), srv.calls.Load())
}

func TestAuthorizationURL(t *testing.T) {
	t.Parallel()

	a, err := auth.New(zerolog.Nop(), newConf("http://unused"), fs.StateDirFrom(t.TempDir()).AuthFile(), time.Second)
	require.NoError(t, err)

	u, err := url.Parse(a.AuthorizationURL("xyz"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", u.Host)

	q := u.Query()
	assert.Equal(t, "app", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://127.0.0.1:8888/callback", q.Get("redirect_uri"))
	assert.Equal(t, "user-read-currently-playing user-read-playback-state", q.Get("scope"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "false", q.Get("show_dialog"))
}

func TestExtractCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		state    string
		expected string
		err      error
	}{
		{
			name:     "redirect url",
			input:    "http://127.0.0.1:8888/callback?code=AQB-x_1&state=s1",
			state:    "s1",
			expected: "AQB-x_1",
		},
		{
			name:     "surrounding whitespace",
			input:    "  http://127.0.0.1:8888/callback?state=s1&code=abc \n",
			state:    "s1",
			expected: "abc",
		},
		{
			name:     "bare code",
			input:    "AQBcode",
			expected: "AQBcode",
		},
		{
			name:  "state mismatch",
			input: "http://127.0.0.1:8888/callback?code=abc&state=other",
			state: "s1",
			err:   auth.ErrStateMismatch,
		},
		{
			name:  "denied",
			input: "http://127.0.0.1:8888/callback?error=access_denied&state=s1",
			state: "s1",
			err:   auth.ErrAccessDenied,
		},
		{
			name:  "no code",
			input: "http://127.0.0.1:8888/callback?state=s1",
			state: "s1",
			err:   auth.ErrMissingCode,
		},
		{
			name:  "empty",
			input: "   ",
			err:   auth.ErrMissingCode,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			code, err := auth.ExtractCode(test.input, test.state)
			if nil != test.err {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, code)
		})
	}
}
