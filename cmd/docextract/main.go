/**
 * DocExtract - Main Entry Point
 *
 * Single binary exposing the extraction pipeline: one-shot processing
 * commands, the HTTP API server, and the Redis queue worker.
 */

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/formlens/docextract/internal/config"
	"github.com/formlens/docextract/internal/logging"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "docextract",
	Short: "Layout-aware document entity extraction",
	Long: `DocExtract runs scanned documents through OCR and a layout-aware
token classifier to extract labeled form entities (headers, questions,
answers). Results export as JSON, CSV or XML.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: .env not found, using system environment variables")
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if level, err := logging.ParseLevel(cfg.LogLevel); err != nil {
			log.Printf("Warning: %v, keeping default log level", err)
		} else {
			logging.SetLevel(level)
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(processCmd, pdfCmd, batchCmd, exportCmd, serveCmd, workerCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeOutput prints content to stdout, or to the --output file when set.
func writeOutput(content, path string) error {
	if path == "" {
		fmt.Println(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
