package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/pulse/internal/server"
)

var (
	serveBind string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "bind address (overrides server.bind)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if serveBind != "" {
		cfg.Server.Bind = serveBind
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	rt, err := openRuntime(cfg, logger, cfg.Engine.Persist)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.engine.StartSweepTimer(cfg.Engine.SweepInterval)

	var opts []server.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, server.WithMetrics())
	}
	srv := server.New(rt.engine, rt.db, VersionString(), opts...)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pulse serving", "addr", addr, "db", rt.dbPath,
			"taxonomy", rt.engine.Taxonomy().Source(), "policy", rt.gate.Version())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
