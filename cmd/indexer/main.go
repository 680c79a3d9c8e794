package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/cryptindex/internal/app"
	"github.com/dmitrijs2005/cryptindex/internal/buildinfo"
	"github.com/dmitrijs2005/cryptindex/internal/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	if cfg.Password == "" {
		cfg.Password, err = app.PromptPassword(os.Stderr)
		if err != nil {
			log.Fatalf("%v", err)
		}
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if _, err := a.Run(ctx); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}
