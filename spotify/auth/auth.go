package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/xeptore/spotstat/config"
	"github.com/xeptore/spotstat/spotify/fs"
)

// Access tokens this close to their expiry are refreshed before use.
const expiryLeeway = 1 * time.Minute

var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrLoginRequired          = errors.New("login required")
	ErrMalformedTokenResponse = errors.New("malformed token response")
	ErrAccessDenied           = errors.New("authorization denied")
	ErrStateMismatch          = errors.New("authorization state mismatch")
	ErrMissingCode            = errors.New("authorization code not found")
)

type Auth struct {
	conf        config.Spotify
	authFile    fs.AuthFile
	httpClient  *http.Client
	oauth       *oauth2.Config
	refreshMux  sync.Mutex
	credentials atomic.Pointer[Credentials]
}

type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// NeedsRefresh reports whether the access token is missing or about to
// expire at now.
func (c *Credentials) NeedsRefresh(now time.Time) bool {
	return c.AccessToken == "" || !now.Add(expiryLeeway).Before(c.ExpiresAt)
}

func (c *Credentials) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{ //nolint:exhaustruct
		AccessToken:  c.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
	}
}

// New loads the session cached in authFile. When there is none, the refresh
// token from the configuration (if any) seeds an otherwise empty session.
func New(logger zerolog.Logger, conf config.Spotify, authFile fs.AuthFile, timeout time.Duration) (*Auth, error) {
	content, err := authFile.Read()
	if nil != err && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read auth file: %w", err)
	}

	creds := &Credentials{
		AccessToken:  "",
		RefreshToken: conf.RefreshToken,
		ExpiresAt:    time.Time{},
	}
	if nil != content {
		creds = &Credentials{
			AccessToken:  content.AccessToken,
			RefreshToken: content.RefreshToken,
			ExpiresAt:    time.Unix(content.ExpiresAt, 0),
		}
		logger.Debug().Time("expires_at", creds.ExpiresAt).Msg("Loaded cached session")
	}

	a := &Auth{
		conf:       conf,
		authFile:   authFile,
		httpClient: &http.Client{Timeout: timeout}, //nolint:exhaustruct
		oauth: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			RedirectURL:  conf.RedirectURL,
			Scopes:       conf.Scopes,
			Endpoint: oauth2.Endpoint{ //nolint:exhaustruct
				AuthURL:   conf.AuthURL,
				TokenURL:  conf.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		refreshMux:  sync.Mutex{},
		credentials: atomic.Pointer[Credentials]{},
	}
	a.credentials.Store(creds)

	return a, nil
}

func (a *Auth) Credentials() *Credentials {
	return a.credentials.Load()
}

// EnsureFresh refreshes the access token when it is missing or about to
// expire. It returns ErrLoginRequired when there is nothing to refresh with.
func (a *Auth) EnsureFresh(ctx context.Context, logger zerolog.Logger) error {
	creds := a.credentials.Load()
	if !creds.NeedsRefresh(time.Now()) {
		return nil
	}

	if creds.RefreshToken == "" {
		return ErrLoginRequired
	}

	return a.Refresh(ctx, logger, creds.AccessToken)
}

// Refresh exchanges the refresh token for a new access token, unless the
// access token has already moved on from stale, in which case a concurrent
// caller has refreshed it.
func (a *Auth) Refresh(ctx context.Context, logger zerolog.Logger, stale string) error {
	a.refreshMux.Lock()
	defer a.refreshMux.Unlock()

	existing := a.credentials.Load()
	if existing.AccessToken != stale && !existing.NeedsRefresh(time.Now()) {
		logger.Debug().Msg("Access token already refreshed")
		return nil
	}

	if existing.RefreshToken == "" {
		return ErrLoginRequired
	}

	newCreds, err := a.refreshToken(ctx, logger, existing.RefreshToken)
	if nil != err {
		if errors.Is(err, ErrUnauthorized) {
			return ErrLoginRequired
		}

		return fmt.Errorf("refresh token: %w", err)
	}

	if err := a.store(newCreds); nil != err {
		logger.Error().Err(err).Msg("Failed to write credentials to file")
		return err
	}
	logger.Debug().Time("expires_at", newCreds.ExpiresAt).Msg("Access token refreshed")

	return nil
}

// Forget drops the cached access token, keeping the refresh token on disk so
// the next process can refresh without a new login. The in-memory credentials
// stay valid for the rest of the process.
func (a *Auth) Forget() error {
	if err := a.authFile.Forget(); nil != err {
		return fmt.Errorf("forget session: %v", err)
	}

	return nil
}

func (a *Auth) store(creds *Credentials) error {
	a.credentials.Store(creds)

	content := fs.AuthFileContent{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    creds.ExpiresAt.Unix(),
	}
	if err := a.authFile.Write(content); nil != err {
		return fmt.Errorf("write credentials to file: %v", err)
	}

	return nil
}
