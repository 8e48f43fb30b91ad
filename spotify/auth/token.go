package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xeptore/spotstat/httputil"
	"github.com/xeptore/spotstat/jsonv"
)

// Exchange trades an authorization code for a session and persists it.
func (a *Auth) Exchange(ctx context.Context, logger zerolog.Logger, code string) error {
	params := make(url.Values, 3)
	params.Set("grant_type", "authorization_code")
	params.Set("code", code)
	params.Set("redirect_uri", a.conf.RedirectURL)

	creds, err := a.requestToken(ctx, logger, params, "")
	if nil != err {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	if creds.RefreshToken == "" {
		return fmt.Errorf("%w: refresh_token is missing", ErrMalformedTokenResponse)
	}

	a.refreshMux.Lock()
	defer a.refreshMux.Unlock()

	return a.store(creds)
}

func (a *Auth) refreshToken(ctx context.Context, logger zerolog.Logger, refreshToken string) (*Credentials, error) {
	params := make(url.Values, 2)
	params.Set("grant_type", "refresh_token")
	params.Set("refresh_token", refreshToken)

	return a.requestToken(ctx, logger, params, refreshToken)
}

// requestToken posts a token grant. The accounts service only sometimes
// rotates refresh tokens, so fallbackRefresh is kept when the response has
// none.
func (a *Auth) requestToken(
	ctx context.Context,
	logger zerolog.Logger,
	params url.Values,
	fallbackRefresh string,
) (creds *Credentials, err error) {
	requestedAt := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.conf.TokenURL, strings.NewReader(params.Encode()))
	if nil != err {
		logger.Error().Err(err).Msg("Failed to create token request")
		return nil, fmt.Errorf("create token request: %w", err)
	}

	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Accept", "application/json")
	req.SetBasicAuth(a.conf.ClientID, a.conf.ClientSecret)

	resp, err := a.httpClient.Do(req)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to issue token request")
		return nil, fmt.Errorf("issue token request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close response body")
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	respBytes, err := httputil.ReadOptionalResponseBody(resp)
	if nil != err {
		logger.Error().Err(err).Int("status_code", resp.StatusCode).Msg("Failed to read token response body")
		return nil, fmt.Errorf("read token response body: %w", err)
	}

	switch code := resp.StatusCode; code {
	case http.StatusOK:
	case http.StatusBadRequest, http.StatusUnauthorized:
		if httputil.IsInvalidGrantResponse(respBytes) {
			return nil, ErrUnauthorized
		}

		logger.Error().Int("status_code", code).Bytes("response_body", respBytes).Msg("Unexpected token error response")

		return nil, fmt.Errorf("token request rejected with status %d: %s", code, httputil.ErrorMessage(respBytes))
	default:
		logger.Error().Int("status_code", code).Bytes("response_body", respBytes).Msg("Unexpected response status code")

		return nil, fmt.Errorf("unexpected status code %d with body: %s", code, string(respBytes))
	}

	body, err := httputil.DecodeJSONValue(resp.Header, respBytes)
	if nil != err {
		logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode token response body")
		return nil, fmt.Errorf("decode token response body: %v", err)
	}

	return credentialsFrom(body, requestedAt, fallbackRefresh)
}

func credentialsFrom(body jsonv.Value, requestedAt time.Time, fallbackRefresh string) (*Credentials, error) {
	accessToken, ok := firstString(body, "access_token")
	if !ok || accessToken == "" {
		return nil, fmt.Errorf("%w: access_token is missing", ErrMalformedTokenResponse)
	}

	expiresIn, ok := jsonv.First(body, "expires_in")
	if !ok {
		return nil, fmt.Errorf("%w: expires_in is missing", ErrMalformedTokenResponse)
	}
	secs, ok := expiresIn.AsInt64()
	if !ok || secs <= 0 {
		return nil, fmt.Errorf("%w: expires_in is not a positive integer", ErrMalformedTokenResponse)
	}

	refreshToken, ok := firstString(body, "refresh_token")
	if !ok || refreshToken == "" {
		refreshToken = fallbackRefresh
	}

	return &Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    requestedAt.Add(time.Duration(secs) * time.Second),
	}, nil
}

func firstString(v jsonv.Value, key string) (string, bool) {
	found, ok := jsonv.First(v, key)
	if !ok {
		return "", false
	}

	return found.AsString()
}
