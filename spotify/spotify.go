package spotify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/xeptore/spotstat/config"
	"github.com/xeptore/spotstat/httputil"
	"github.com/xeptore/spotstat/jsonv"
	"github.com/xeptore/spotstat/ratelimit"
	"github.com/xeptore/spotstat/spotify/auth"
)

var (
	ErrNothingPlaying  = errors.New("nothing is playing")
	ErrFieldNotFound   = errors.New("field not found")
	ErrTooManyRequests = errors.New("too many requests")
	ErrNotFound        = errors.New("not found")
	ErrLoginRequired   = auth.ErrLoginRequired

	errTokenRefreshed = errors.New("auth token refreshed")
	errNoContent      = errors.New("no content")
	errServer         = errors.New("server error")
)

type Client struct {
	conf       config.Spotify
	httpConf   config.HTTP
	auth       *auth.Auth
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(conf config.Spotify, httpConf config.HTTP, a *auth.Auth) *Client {
	return &Client{
		conf:       conf,
		httpConf:   httpConf,
		auth:       a,
		httpClient: &http.Client{}, //nolint:exhaustruct
		limiter:    ratelimit.NewLimiter(httpConf.RequestsPerSecond, httpConf.Burst),
	}
}

type request struct {
	method string
	// path is relative to the API base URL unless it is an absolute URL, as
	// the paging links are.
	path  string
	query url.Values
	body  any
}

type retryAfterError struct {
	wait time.Duration
}

func (e *retryAfterError) Error() string {
	return "too many requests, retry after " + e.wait.String()
}

func (e *retryAfterError) Unwrap() error {
	return ErrTooManyRequests
}

// do sends r, retrying rate-limited, failed and timed out attempts. A 401
// refreshes the access token once per attempt.
func (c *Client) do(ctx context.Context, logger zerolog.Logger, r request) (jsonv.Value, error) {
	logger = logger.With().Str("method", r.method).Str("path", r.path).Logger()

	var out jsonv.Value
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(uint64(c.httpConf.MaxRetries), retry.NewFibonacci(c.httpConf.RetryBackoff.Duration)), //nolint:gosec
		func(ctx context.Context) error {
			v, err := c.send(ctx, logger, r)
			if nil != err {
				var rae *retryAfterError
				switch {
				case errors.Is(err, errTokenRefreshed):
					return retry.RetryableError(err)
				case errors.As(err, &rae):
					logger.Warn().Dur("retry_after", rae.wait).Msg("Rate limited")
					if err := sleep(ctx, rae.wait); nil != err {
						return err
					}

					return retry.RetryableError(err)
				case errors.Is(err, errServer):
					logger.Warn().Err(err).Msg("Server error, retrying")
					return retry.RetryableError(err)
				case errors.Is(err, context.DeadlineExceeded) && nil == ctx.Err():
					logger.Warn().Msg("Request timed out, retrying")
					return retry.RetryableError(context.DeadlineExceeded)
				}

				return err
			}

			out = v

			return nil
		},
	)
	if nil != err {
		if errors.Is(err, errTokenRefreshed) {
			// Give it another chance with the refreshed token even when max retries are reached.
			return c.send(ctx, logger, r)
		}

		return jsonv.Value{}, err
	}

	return out, nil
}

func (c *Client) send(ctx context.Context, logger zerolog.Logger, r request) (v jsonv.Value, err error) {
	if err := c.limiter.Wait(ctx); nil != err {
		return jsonv.Value{}, fmt.Errorf("wait for rate limiter: %w", err)
	}

	if err := c.auth.EnsureFresh(ctx, logger); nil != err {
		return jsonv.Value{}, fmt.Errorf("ensure fresh access token: %w", err)
	}
	creds := c.auth.Credentials()

	reqURL, err := c.resolve(r.path, r.query)
	if nil != err {
		return jsonv.Value{}, err
	}

	var body io.Reader
	if nil != r.body {
		b, err := json.Marshal(r.body)
		if nil != err {
			return jsonv.Value{}, fmt.Errorf("encode request body: %v", err)
		}
		body = bytes.NewReader(b)
	}

	if t := c.httpConf.Timeout.Duration; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to create request")
		return jsonv.Value{}, fmt.Errorf("create request: %v", err)
	}
	creds.OAuth2Token().SetAuthHeader(req)
	req.Header.Add("Accept", "application/json")
	if nil != body {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if nil != err {
		return jsonv.Value{}, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close response body")
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	respBytes, err := httputil.ReadOptionalResponseBody(resp)
	if nil != err {
		return jsonv.Value{}, fmt.Errorf("read response body: %w", err)
	}

	switch code := resp.StatusCode; code {
	case http.StatusOK, http.StatusCreated:
		if len(respBytes) == 0 {
			return jsonv.Null(), nil
		}

		v, err := httputil.DecodeJSONValue(resp.Header, respBytes)
		if nil != err {
			logger.Error().Err(err).Bytes("response_body", respBytes).Msg("Failed to decode response body")
			return jsonv.Value{}, fmt.Errorf("decode response body: %v", err)
		}

		return v, nil
	case http.StatusNoContent:
		return jsonv.Value{}, errNoContent
	case http.StatusUnauthorized:
		logger.Debug().Bool("expired", httputil.IsTokenExpiredResponse(respBytes)).Msg("Access token rejected")
		if err := c.auth.Refresh(ctx, logger, creds.AccessToken); nil != err {
			return jsonv.Value{}, fmt.Errorf("refresh rejected access token: %w", err)
		}

		return jsonv.Value{}, errTokenRefreshed
	case http.StatusNotFound:
		return jsonv.Value{}, fmt.Errorf("%w: %s", ErrNotFound, httputil.ErrorMessage(respBytes))
	case http.StatusTooManyRequests:
		return jsonv.Value{}, &retryAfterError{wait: ratelimit.RetryAfter(resp.Header)}
	default:
		if code >= http.StatusInternalServerError {
			return jsonv.Value{}, fmt.Errorf("%w: status %d: %s", errServer, code, httputil.ErrorMessage(respBytes))
		}

		logger.Error().Int("status_code", code).Bytes("response_body", respBytes).Msg("Unexpected response status code")

		return jsonv.Value{}, fmt.Errorf("unexpected status code %d: %s", code, httputil.ErrorMessage(respBytes))
	}
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		joined, err := url.JoinPath(c.conf.APIURL, path)
		if nil != err {
			return "", fmt.Errorf("join api url with path: %v", err)
		}
		raw = joined
	}

	u, err := url.Parse(raw)
	if nil != err {
		return "", fmt.Errorf("parse request url: %v", err)
	}

	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

func (c *Client) marketQuery() url.Values {
	q := make(url.Values, 1)
	if c.conf.Market != "" {
		q.Set("market", c.conf.Market)
	}

	return q
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
