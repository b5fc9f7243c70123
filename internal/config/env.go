package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// parseEnv overrides tagged fields of target from the environment. Unset
// variables leave the field as it is.
func parseEnv(section string, target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("%s: parse env: %w", section, err)
	}
	return nil
}

// resolvePath joins a relative path onto configDir.
func resolvePath(configDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}
