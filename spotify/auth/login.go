package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// AuthorizationURL is the page the user opens to grant the app access.
func (a *Auth) AuthorizationURL(state string) string {
	return a.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "false"))
}

// ExtractCode pulls the authorization code out of the URL the browser was
// redirected to. A bare code (no query string) is accepted as-is.
func ExtractCode(redirected, state string) (string, error) {
	redirected = strings.TrimSpace(redirected)
	if redirected == "" {
		return "", ErrMissingCode
	}

	if !strings.Contains(redirected, "://") && !strings.ContainsAny(redirected, "?=&") {
		return redirected, nil
	}

	u, err := url.Parse(redirected)
	if nil != err {
		return "", fmt.Errorf("parse redirect url: %v", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, e)
	}

	if got := q.Get("state"); state != "" && got != state {
		return "", ErrStateMismatch
	}

	code := q.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}

	return code, nil
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); nil != err {
		return "", fmt.Errorf("generate state: %v", err)
	}

	return hex.EncodeToString(b), nil
}

// Login runs the interactive authorization-code flow: it prints the
// authorization page, asks for the URL the browser was redirected to, and
// exchanges the code it carries. It needs a terminal.
func (a *Auth) Login(ctx context.Context, logger zerolog.Logger) error {
	var (
		stdin  = os.Stdin
		stdout = os.Stdout
	)

	if !isatty.IsTerminal(stdout.Fd()) {
		return syscall.ENOTTY
	}

	state, err := newState()
	if nil != err {
		return err
	}

	printAuthorizationURL(stdout, a.AuthorizationURL(state))

	var redirected string
	prompt := &survey.Input{ //nolint:exhaustruct
		Message: "Redirect URL:",
		Help:    "Paste the full URL your browser was redirected to after granting access.",
	}
	askOpts := []survey.AskOpt{
		survey.WithValidator(survey.Required),
		survey.WithStdio(stdin, stdout, stdout),
	}
	if err := survey.AskOne(prompt, &redirected, askOpts...); nil != err {
		return fmt.Errorf("failed to ask for redirect url: %v", err)
	}

	code, err := ExtractCode(redirected, state)
	if nil != err {
		return fmt.Errorf("extract authorization code: %w", err)
	}

	if err := a.Exchange(ctx, logger, code); nil != err {
		return err
	}

	creds := a.Credentials()
	logger.Info().Time("expires_at", creds.ExpiresAt).Msg("Logged in successfully!")

	return nil
}

func printAuthorizationURL(w io.Writer, authURL string) {
	fmt.Fprintln(w, "Open the following page in your browser and grant access:")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  "+authURL)
	fmt.Fprintln(w)
}
