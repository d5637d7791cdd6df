package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/icemandesignz-code/iceman-citizen-voice/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and Prometheus metrics",
	Long: `Serve the JSON API on API_ADDR. Metrics are served on /metrics, or on
CIVICVOICE_METRICS_ADDR when it is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := env.cfg
		httpServer := app.NewHTTPServer(env.service, cfg.CORSOrigin)

		var metricsServer *http.Server
		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", env.metrics.Handler())
			metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				log.Printf("metrics listening on %s", cfg.MetricsAddr)
				if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("metrics server failed: %v", err)
				}
			}()
		} else {
			httpServer.WithMetricsHandler(env.metrics.Handler())
		}

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           httpServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Citizen Voice API listening on %s", cfg.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		var serveErr error
		select {
		case <-sigCh:
		case serveErr = <-errCh:
			log.Printf("server failed: %v", serveErr)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("metrics shutdown error: %v", err)
			}
		}
		return serveErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
