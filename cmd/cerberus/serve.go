package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cerberus "github.com/LateinCecer/Cerbeurs-Registry-Public"
)

func runServe(configPath string, in io.Reader) error {
	cfg, err := cerberus.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	opts, err := cerberus.OptionsFromConfig(cfg, in)
	if err != nil {
		return err
	}
	reg, err := cerberus.Bootstrap(opts)
	if err != nil {
		_ = opts.Log.Archive.Close()
		return err
	}
	log := reg.Logger()

	var servers []*http.Server
	if cfg.Metrics.Listen != "" {
		if err := cerberus.RegisterMetricsDefault(); err != nil {
			log.Warningf("failed to register metrics: %v", err)
		}
		msrv := cerberus.NewMetricsServer(cfg.Metrics.Listen)
		go func() {
			if err := msrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Criticalf("metrics server error: %v", err)
			}
		}()
		servers = append(servers, msrv)
		log.Infof("Serving metrics on %s/metrics", cfg.Metrics.Listen)
	}
	if cfg.HTTP.Listen != "" {
		srv, err := cerberus.NewHTTPServer(cfg.HTTP.Listen, cfg.HTTP.BasePath, reg)
		if err != nil {
			_ = cerberus.Shutdown()
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}
		servers = append(servers, srv)
		log.Infof("Serving admin API on %s%s", cfg.HTTP.Listen, cfg.HTTP.BasePath)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-reg.Main().Done():
	}

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range servers {
		_ = s.Shutdown(ctx)
	}
	return cerberus.Shutdown()
}
