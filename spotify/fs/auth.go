package fs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

type AuthFile string

type AuthFileContent struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Read returns os.ErrNotExist both for a missing file and for an empty one.
func (f AuthFile) Read() (c *AuthFileContent, err error) {
	file, err := os.OpenFile(f.path(), os.O_RDONLY, 0o0600)
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}

		return nil, fmt.Errorf("open token file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close token file: %v", closeErr))
		}
	}()

	dec := json.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.DecodeWithOption(&c, json.DecodeFieldPriorityFirstWin()); nil != err {
		if errors.Is(err, io.EOF) {
			return nil, os.ErrNotExist
		}

		return nil, fmt.Errorf("decode token file contents: %v", err)
	}

	return c, nil
}

func (f AuthFile) Write(c AuthFileContent) (err error) {
	file, err := os.OpenFile(f.path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0o0600)
	if nil != err {
		return fmt.Errorf("open token file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("close token file: %v", closeErr))
		}
	}()

	if err := json.NewEncoder(file).EncodeWithOption(c); nil != err {
		return fmt.Errorf("encode token file: %v", err)
	}

	return nil
}

// Forget drops the access token and its expiry so other processes sharing
// the state directory can no longer reuse it. The refresh token is kept, as
// it is the only way back into the account without logging in again.
func (f AuthFile) Forget() error {
	c, err := f.Read()
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return err
	}

	if c.RefreshToken == "" {
		if err := os.Truncate(f.path(), 0); nil != err {
			return fmt.Errorf("truncate token file: %v", err)
		}

		return nil
	}

	return f.Write(AuthFileContent{AccessToken: "", RefreshToken: c.RefreshToken, ExpiresAt: 0})
}

func (f AuthFile) path() string {
	return string(f)
}
