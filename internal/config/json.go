package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cryptindex/internal/flagx"
)

// parseJSON overlays cfg with the file named by -c/-config in args. Keys
// missing from the file leave the current values untouched.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.JSONConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
