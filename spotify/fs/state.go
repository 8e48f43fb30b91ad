package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	tokenFileName      = "token.json"
	trackURIFileName   = "current-track-uri"
	likedStoreFileName = "liked.db"
)

// StateDir is the directory shared by every spotstat process of a user.
type StateDir string

func StateDirFrom(d string) StateDir {
	return StateDir(d)
}

func (dir StateDir) AuthFile() AuthFile {
	return AuthFile(filepath.Join(dir.path(), tokenFileName))
}

func (dir StateDir) TrackURIFile() TrackURIFile {
	return TrackURIFile(filepath.Join(dir.path(), trackURIFileName))
}

func (dir StateDir) LikedStorePath() string {
	return filepath.Join(dir.path(), likedStoreFileName)
}

func (dir StateDir) path() string {
	return string(dir)
}

// TrackURIFile holds the URI of the most recently seen track so that `like`
// can act on what `info` or the status daemon saw last.
type TrackURIFile string

func (f TrackURIFile) Read() (string, error) {
	b, err := os.ReadFile(string(f))
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return "", os.ErrNotExist
		}

		return "", fmt.Errorf("read track uri file: %v", err)
	}

	return strings.TrimSpace(string(b)), nil
}

func (f TrackURIFile) Write(uri string) error {
	if err := os.WriteFile(string(f), []byte(uri), 0o0600); nil != err {
		return fmt.Errorf("write track uri file: %v", err)
	}

	return nil
}
