package observability

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when present; a missing default file is not an error.
const DefaultEnvFile = ".env"

// LoadDotEnv loads environment variables from path without overriding
// variables already set. An explicitly requested file must exist.
func LoadDotEnv(logger *slog.Logger, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no .env file found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	logger.Debug("loaded environment", "path", path)
	return nil
}
