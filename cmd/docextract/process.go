/**
 * One-shot processing commands: process, pdf, batch, export
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/export"
	"github.com/formlens/docextract/internal/processor"
)

var (
	processFormat     string
	processConfidence float64
	processOutput     string
)

var processCmd = &cobra.Command{
	Use:   "process <image>",
	Short: "Extract entities from a document image",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var (
	pdfFormat     string
	pdfConfidence float64
	pdfDPI        int
	pdfOutput     string
)

var pdfCmd = &cobra.Command{
	Use:   "pdf <file>",
	Short: "Extract entities from every page of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runPDF,
}

var batchOutput string

var batchCmd = &cobra.Command{
	Use:   "batch <images...>",
	Short: "Process multiple images, isolating per-file failures",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <result.json>",
	Short: "Re-serialize a saved processing result into another format",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	processCmd.Flags().StringVar(&processFormat, "format", "json", "output format (json, csv, xml)")
	processCmd.Flags().Float64Var(&processConfidence, "confidence", 0, "confidence threshold override (0 = configured default)")
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "write the result to a file instead of stdout")

	pdfCmd.Flags().StringVar(&pdfFormat, "format", "json", "output format (json, csv, xml)")
	pdfCmd.Flags().Float64Var(&pdfConfidence, "confidence", 0, "confidence threshold override (0 = configured default)")
	pdfCmd.Flags().IntVar(&pdfDPI, "dpi", 0, "page rendering resolution (0 = configured default)")
	pdfCmd.Flags().StringVarP(&pdfOutput, "output", "o", "", "write the result to a file instead of stdout")

	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write the results to a file instead of stdout")

	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, csv, xml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the result to a file instead of stdout")
}

func runProcess(cmd *cobra.Command, args []string) error {
	proc := processor.New(cfg)
	defer proc.Shutdown()

	ctx := context.Background()
	var (
		result *document.ProcessingResult
		err    error
	)
	if processConfidence > 0 {
		result, err = proc.ProcessImageWithThreshold(ctx, args[0], processConfidence)
	} else {
		result, err = proc.ProcessImage(ctx, args[0])
	}
	if err != nil {
		return err
	}

	content, err := export.Export(result, processFormat)
	if err != nil {
		return err
	}
	return writeOutput(content, processOutput)
}

func runPDF(cmd *cobra.Command, args []string) error {
	proc := processor.New(cfg)
	defer proc.Shutdown()

	ctx := context.Background()
	var (
		result *document.ProcessingResult
		err    error
	)
	if pdfConfidence > 0 {
		result, err = proc.ProcessPDFWithThreshold(ctx, args[0], pdfDPI, pdfConfidence)
	} else {
		result, err = proc.ProcessPDF(ctx, args[0], pdfDPI)
	}
	if err != nil {
		return err
	}

	content, err := export.Export(result, pdfFormat)
	if err != nil {
		return err
	}
	return writeOutput(content, pdfOutput)
}

func runBatch(cmd *cobra.Command, args []string) error {
	proc := processor.New(cfg)
	defer proc.Shutdown()

	sources := make([]any, len(args))
	for i, path := range args {
		sources[i] = path
	}

	results := proc.ProcessBatch(context.Background(), sources)
	for i, result := range results {
		result.Filename = args[i]
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return writeOutput(string(data), batchOutput)
}

func runExport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read result file: %w", err)
	}

	result, err := export.Import(data)
	if err != nil {
		return err
	}

	content, err := export.Export(result, exportFormat)
	if err != nil {
		return err
	}
	return writeOutput(content, exportOutput)
}
