package config

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/cryptindex/internal/flagx"
)

var (
	valueFlags = []string{"-p", "-d", "-o", "-f", "-r", "-l", "-z", "-v", "-g", "-u", "-s", "-e"}
	boolFlags  = []string{"-t", "-clean", "-j"}
)

// listValue collects comma-separated values. The first Set replaces what
// the JSON file provided; repeated flags append.
type listValue struct {
	dst *[]string
	set bool
}

func (l *listValue) String() string {
	if l.dst == nil {
		return ""
	}
	return strings.Join(*l.dst, ",")
}

func (l *listValue) Set(s string) error {
	if !l.set {
		*l.dst = nil
		l.set = true
	}
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			*l.dst = append(*l.dst, v)
		}
	}
	return nil
}

// parseFlags overlays cfg with command-line flags:
//
//	-p string   password (prompted for when empty)
//	-d string   manifest dialect: v1 or v3
//	-o string   target locator
//	-t          write a sharded tree instead of a flat manifest
//	-clean      remove the previous tree's shards first (default true)
//	-j          join split pieces before writing
//	-f list     finalized indexes to merge
//	-r list     remote locators (http, https, s3)
//	-l list     local directories
//	-z list     zip archives
//	-v string   log level
//	-g -u -s -e S3 region, access key, secret key, endpoint
//
// Only these flags are parsed; args are filtered with flagx.Filter first.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.Filter(args, valueFlags, boolFlags)

	fs := flag.NewFlagSet("indexer", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Password, "p", cfg.Password, "password")
	fs.StringVar(&cfg.Dialect, "d", cfg.Dialect, "manifest dialect (v1, v3)")
	fs.StringVar(&cfg.Target, "o", cfg.Target, "target locator")
	fs.BoolVar(&cfg.Tree, "t", cfg.Tree, "write a sharded tree")
	fs.BoolVar(&cfg.Clean, "clean", cfg.Clean, "remove previous tree shards")
	fs.BoolVar(&cfg.JoinSplits, "j", cfg.JoinSplits, "join split pieces")
	fs.Var(&listValue{dst: &cfg.Finalized}, "f", "finalized indexes, comma separated")
	fs.Var(&listValue{dst: &cfg.Remotes}, "r", "remote locators, comma separated")
	fs.Var(&listValue{dst: &cfg.Directories}, "l", "local directories, comma separated")
	fs.Var(&listValue{dst: &cfg.Archives}, "z", "zip archives, comma separated")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "s", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 endpoint")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
