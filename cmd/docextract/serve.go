/**
 * serve command - HTTP API server
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/formlens/docextract/internal/api"
	"github.com/formlens/docextract/internal/processor"
	"github.com/formlens/docextract/internal/queue"
	"github.com/formlens/docextract/internal/storage"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from API_HOST)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from API_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	host := cfg.APIHost
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.APIPort
	if servePort > 0 {
		port = servePort
	}

	proc := processor.New(cfg)

	var opts []api.Option
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = store.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return err
		}
		opts = append(opts, api.WithStore(store))
	}
	if cfg.RedisURL != "" {
		producer, err := queue.NewProducer(cfg.RedisURL, cfg.QueueName)
		if err != nil {
			return fmt.Errorf("failed to initialize queue producer: %w", err)
		}
		defer producer.Close()
		opts = append(opts, api.WithProducer(producer))
	}

	server := api.New(cfg, proc, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(fmt.Sprintf("%s:%d", host, port))
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error stopping API server: %v", err)
	}

	if err := proc.Shutdown(); err != nil {
		log.Printf("Error shutting down processor: %v", err)
	}

	log.Printf("Shutdown complete")
	return nil
}
