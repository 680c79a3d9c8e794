// Package config loads the indexer settings: defaults first, then an
// optional JSON file (-c / -config), then command-line flags.
package config

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cryptindex/internal/index"
)

// Config holds the settings of one build pass.
//
// Sources are merged in order: Finalized, Remotes, Directories, Archives.
// Target receives the result, as a flat manifest or, with Tree, as a
// sharded tree.
type Config struct {
	Password string `json:"password"`
	Dialect  string `json:"dialect"`

	Target     string `json:"target"`
	Tree       bool   `json:"tree"`
	Clean      bool   `json:"clean"`
	JoinSplits bool   `json:"join_splits"`

	Finalized   []string `json:"finalized"`
	Remotes     []string `json:"remotes"`
	Directories []string `json:"directories"`
	Archives    []string `json:"archives"`

	LogLevel string `json:"log_level"`

	S3Region       string `json:"s3_region"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.Dialect = "v3"
	c.Clean = true
	c.LogLevel = "info"
}

// LoadConfig applies defaults, then the JSON file named by -c/-config in
// args, then the flags in args. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that make a build pass impossible. An empty
// password is not an error; the caller prompts for it.
func (c *Config) Validate() error {
	var errs []error
	if c.Target == "" {
		errs = append(errs, errors.New("target (-o) is required"))
	}
	if _, err := index.DialectByName(c.Dialect); err != nil {
		errs = append(errs, err)
	}
	if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
		errs = append(errs, errors.New("s3 access key and secret key must be set together"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Sources returns the number of configured sources.
func (c *Config) Sources() int {
	return len(c.Finalized) + len(c.Remotes) + len(c.Directories) + len(c.Archives)
}
