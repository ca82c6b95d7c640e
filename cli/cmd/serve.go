package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/vantage/metrics"
	"github.com/pithecene-io/vantage/runtime"
	"github.com/pithecene-io/vantage/server"
)

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "Listen address",
			Value: ":8080",
		},
		&cli.IntFlag{
			Name:  "max-sessions",
			Usage: "Maximum live sessions; the least recently used is evicted",
			Value: 256,
		},
		&cli.IntFlag{
			Name:  "notify-workers",
			Usage: "Notification delivery workers",
			Value: runtime.DefaultNotifyParallel,
		},
		&cli.IntFlag{
			Name:  "notify-queue",
			Usage: "Pending notification bound",
			Value: runtime.DefaultNotifyQueue,
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "Serve Prometheus metrics at /metrics",
			Value: true,
		},
	}
	flags = append(flags, pipelineFlags()...)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve chat sessions over HTTP and websockets",
		Flags:  flags,
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signalContext()
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}
	defer func() { _ = p.Close() }()

	scfg := server.Config{
		Addr:            cfg.Server.Addr,
		MaxSessions:     cfg.Sessions.Max,
		Policy:          p.policy,
		Notifier:        p.notifier,
		Logger:          logger,
		Collector:       p.collector,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration,
	}
	if p.client != nil {
		scfg.Archive = p.client.Archive()
	}
	if cfg.Server.MetricsEnabled() {
		scfg.Exporter = metrics.NewExporter(p.collector)
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(scfg)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitCodeUsage)
	}

	p.notifier.Start(ctx)
	defer p.notifier.Close()

	return srv.Run(ctx)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
