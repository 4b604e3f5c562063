package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/CodeAndHammer/learngames/internal/config"
	"github.com/CodeAndHammer/learngames/internal/logger"
	models "github.com/CodeAndHammer/learngames/internal/models"
	"github.com/CodeAndHammer/learngames/internal/store"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openApp builds the services over the configured store. The CLI logs at
// warn and above only.
func openApp() (*models.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	zl, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	log := &logger.Logger{SugaredLogger: zl.Sugar()}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	closeFn := func() {
		if err := store.Close(st); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
		log.Sync()
	}
	return models.NewApp(cfg, log, st, nil), closeFn, nil
}
