package logging

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup routes the global zerolog logger to a file next to the database.
// The TUI owns stdout/stderr, so nothing may ever log there. Returns a
// close func for the log file.
func Setup(level string) (func(), error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return nil, err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	logDir := filepath.Join(configDir, "hopper")
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(logDir, "hopper.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(f).Level(lvl).With().Timestamp().Logger()

	return func() { _ = f.Close() }, nil
}

// Discard silences the global logger, used by tests.
func Discard() {
	log.Logger = zerolog.Nop()
}
