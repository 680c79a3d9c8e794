// Package app wires configuration, storage and the indexer into one build
// pass: merge every configured source, optionally join split pieces, then
// write the result to the target as a flat manifest or a sharded tree.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/cryptindex/internal/buildinfo"
	"github.com/dmitrijs2005/cryptindex/internal/config"
	"github.com/dmitrijs2005/cryptindex/internal/cryptox"
	"github.com/dmitrijs2005/cryptindex/internal/index"
	"github.com/dmitrijs2005/cryptindex/internal/indexer"
	"github.com/dmitrijs2005/cryptindex/internal/logging"
	"github.com/dmitrijs2005/cryptindex/internal/storage"
)

// logOutput is where NewApp sends JSON log lines; tests redirect it.
var logOutput io.Writer = os.Stdout

type App struct {
	config  *config.Config
	logger  logging.Logger
	dialect index.Dialect
	opener  *storage.Opener
}

// Summary describes a finished build pass.
type Summary struct {
	Entries int
	Joined  int
	Tree    indexer.TreeStats
}

func NewApp(c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	dialect, err := index.DialectByName(c.Dialect)
	if err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger(logOutput, c.LogLevel)

	opener := &storage.Opener{
		S3: storage.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		},
	}

	return &App{config: c, logger: logger, dialect: dialect, opener: opener}, nil
}

// Run performs one build pass. Sources are merged in the order finalized,
// remotes, directories, archives, so later sources win on name clashes.
func (app *App) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	keys := cryptox.DeriveKeys(app.config.Password)
	defer keys.Wipe()

	x, err := indexer.New(keys, app.dialect,
		indexer.WithLogger(app.logger),
		indexer.WithOpener(app.opener))
	if err != nil {
		return sum, err
	}

	app.logger.Info(ctx, "starting build", "version", buildinfo.Version(),
		"dialect", app.dialect.Name(), "sources", app.config.Sources(), "target", app.config.Target)

	steps := []struct {
		locators []string
		add      func(context.Context, string) error
	}{
		{app.config.Finalized, x.AddFinalized},
		{app.config.Remotes, x.AddFromRemote},
		{app.config.Directories, x.AddFromDirectory},
		{app.config.Archives, x.AddFromArchive},
	}
	for _, step := range steps {
		for _, loc := range step.locators {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			if err := step.add(ctx, loc); err != nil {
				return sum, fmt.Errorf("merge %s: %w", loc, err)
			}
		}
	}

	if app.config.JoinSplits {
		sum.Joined = x.JoinSplits()
		app.logger.Info(ctx, "joined split files", "files", sum.Joined)
	}
	sum.Entries = x.Len()

	st, err := app.opener.OpenStore(ctx, app.config.Target)
	if err != nil {
		return sum, fmt.Errorf("open target: %w", err)
	}
	defer func() {
		if err := storage.Close(st); err != nil {
			app.logger.Warn(ctx, "failed to close target", "target", app.config.Target, "error", err)
		}
	}()

	if app.config.Tree {
		sum.Tree, err = x.WriteTree(ctx, st, app.config.Clean)
	} else {
		err = x.WriteFlat(ctx, st)
	}
	if err != nil {
		return sum, fmt.Errorf("write %s: %w", app.config.Target, err)
	}

	app.logger.Info(ctx, "build finished", "entries", sum.Entries, "joined", sum.Joined)
	return sum, nil
}
