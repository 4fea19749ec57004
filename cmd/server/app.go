package main

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/rl1809/whiskey-cellar/internal/adapter/storage"
	"github.com/rl1809/whiskey-cellar/internal/core/gateway"
	"github.com/rl1809/whiskey-cellar/internal/core/service"
	"github.com/rl1809/whiskey-cellar/internal/logger"
)

// app holds everything the commands share: the logger, the metrics registry
// and the opened whiskey database.
type app struct {
	logger    *zap.Logger
	logCloser io.Closer
	registry  *prometheus.Registry
	gw        *gateway.Gateway
	repo      *service.WhiskeyRepository
}

func openApp(ctx context.Context, cfg *config) (*app, error) {
	log, logCloser, err := logger.Open(cfg.Log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	kv, err := storage.Open(ctx, cfg.storage(), log)
	if err != nil {
		return nil, multierr.Append(err, logCloser.Close())
	}
	if c, ok := kv.(prometheus.Collector); ok {
		reg.MustRegister(c)
	}

	gw, err := service.OpenWhiskeyDB(ctx, kv, gateway.WithLogger(log), gateway.WithRegisterer(reg))
	if err != nil {
		return nil, multierr.Combine(err, kv.Close(), logCloser.Close())
	}

	log.Info("Storage ready",
		zap.String("driver", cfg.StorageDriver),
		zap.String("database", gw.Name()),
		zap.Int("version", gw.Version()))

	return &app{
		logger:    log,
		logCloser: logCloser,
		registry:  reg,
		gw:        gw,
		repo:      service.NewWhiskeyRepository(gw, service.NewUUIDSupplier()),
	}, nil
}

func (a *app) Close() error {
	err := a.gw.Close()
	_ = a.logger.Sync()
	return multierr.Append(err, a.logCloser.Close())
}
