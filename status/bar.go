package status

import (
	"fmt"
	"os"
)

// Bar is the file a terminal multiplexer reads its status text from.
type Bar string

func (b Bar) Write(text string) error {
	if err := os.WriteFile(string(b), []byte(text), 0o0644); nil != err { //nolint:gosec
		return fmt.Errorf("write status bar file: %v", err)
	}

	return nil
}

func (b Bar) Read() (string, error) {
	data, err := os.ReadFile(string(b))
	if nil != err {
		return "", fmt.Errorf("read status bar file: %w", err)
	}

	return string(data), nil
}
