package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/productassist/internal/health"
	"github.com/ziadkadry99/productassist/internal/logging"
	"github.com/ziadkadry99/productassist/internal/metrics"
	"github.com/ziadkadry99/productassist/internal/server"
	"github.com/ziadkadry99/productassist/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket API",
	Long: `Starts the productassist API server. The catalog index is loaded or built
in the background; question endpoints answer 503 until it is ready. A
failed index build stops the server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	logger := logging.WithComponent("serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.NewRegistry())
	}

	a, err := newApp(ctx, cfg, m, false)
	if err != nil {
		return err
	}
	coord, store, err := a.newCoordinator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	checker := health.NewChecker()
	checker.Register("catalog_index", health.Closed(a.retriever.Ready(), "index is building"))
	if a.creds != nil && cfg.AWS.RefreshInterval > 0 {
		checker.Register("credentials", health.Fresh(a.creds.RefreshedAt, 2*cfg.AWS.RefreshInterval))
	}
	if c, ok := store.(interface{ Check(context.Context) error }); ok {
		checker.Register("sessions", health.Ping(c.Check))
	}

	srv := server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowAll:       cfg.Server.AllowAllOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		TopK:           cfg.Retrieval.TopK,
	}, coord, a.retriever, checker, m)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.loadIndex(gctx, false); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		return nil
	})

	if a.creds != nil {
		g.Go(func() error {
			a.creds.Run(gctx)
			return nil
		})
	}

	if sw, ok := store.(session.Sweeper); ok {
		if interval := janitorInterval(cfg.Sessions.TTL); interval > 0 {
			g.Go(func() error {
				session.RunJanitor(gctx, sw, interval, logger)
				return nil
			})
		}
	}

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	fmt.Fprintf(os.Stderr, "productassist server %s starting on port %d\n", Version, cfg.Server.Port)
	fmt.Fprintf(os.Stderr, "  Catalog: %v\n", cfg.Catalog.Paths)
	fmt.Fprintf(os.Stderr, "  Sessions: %s\n", cfg.Sessions.Backend)

	return g.Wait()
}
