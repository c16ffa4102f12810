package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkade-os/feekeeper/internal/config"
	"github.com/arkade-os/feekeeper/internal/telemetry"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// Version will be set during build time
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func main() {
	app := cli.NewApp()
	app.Name = "feekeeperd"
	app.Usage = "keep lnd channel fees in line with their liquidity"
	app.Version = fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
	app.Flags = config.Flags
	app.Action = mainAction

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mainAction(c *cli.Context) error {
	cfg, err := config.LoadConfig(c)
	if err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(cfg.LogLevel))

	var otelShutdown func(context.Context) error
	if cfg.OtelCollectorEndpoint != "" {
		pushInterval := time.Duration(cfg.OtelPushInterval) * time.Second
		otelShutdown, err = telemetry.InitOtelSDK(
			context.Background(), cfg.OtelCollectorEndpoint, pushInterval,
		)
		if err != nil {
			return fmt.Errorf("failed to init otel sdk: %s", err)
		}
		log.AddHook(telemetry.NewOTelHook())
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %s", err)
	}

	log.Debugf("feekeeperd config: %s", cfg)

	svc, err := cfg.AppService()
	if err != nil {
		return fmt.Errorf("failed to create service: %s", err)
	}

	log.Info("starting service...")
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start service: %s", err)
	}
	log.Infof("feekeeperd %s started, sweeping every %ds", Version, cfg.Interval)

	log.RegisterExitHandler(func() {
		svc.Stop()
		if otelShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(ctx); err != nil {
				log.WithError(err).Warn("failed to shutdown otel sdk")
			}
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(
		sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP, os.Interrupt,
	)
	<-sigChan

	log.Info("shutting down service...")
	log.Exit(0)
	return nil
}
