package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/ocr"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/pipeline"
)

type CLI struct {
	configPath string
	engineType string
	imagesDir  string
	outputDir  string
	docType    string
	side       string

	out io.Writer
}

func NewCLI(out io.Writer) *CLI {
	return &CLI{out: out}
}

func (c *CLI) Command() *cobra.Command {
	root := &cobra.Command{
		Use:           "idscan",
		Short:         "Extract and validate Spanish identity documents from photographs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&c.engineType, "engine", "", "OCR engine type (gosseract, ollama); overrides the config")

	validate := &cobra.Command{
		Use:   "validate <image>",
		Short: "Validate one image and print the response as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.validate(cmd.Context(), args[0])
		},
	}
	validate.Flags().StringVarP(&c.docType, "type", "t", "", "document type hint (dni, nie, passport)")
	validate.Flags().StringVarP(&c.side, "side", "s", "", "side hint (front, back)")

	batch := &cobra.Command{
		Use:   "batch",
		Short: "Validate every image in a directory and write the accepted ones to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.batch(cmd.Context())
		},
	}
	batch.Flags().StringVar(&c.imagesDir, "images", "", "directory containing images (default from config)")
	batch.Flags().StringVar(&c.outputDir, "output", "", "output directory for results (default from config)")

	root.AddCommand(validate, batch)
	return root
}

// setup loads the config and starts the engine pool. The caller closes the pool.
func (c *CLI) setup() (*config.Config, *ocr.Pool, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if c.engineType != "" {
		cfg.OCR.Engine = c.engineType
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	// fail fast on an unknown engine instead of on the first image
	engine, err := ocr.NewEngine(cfg.OCR)
	if err != nil {
		return nil, nil, fmt.Errorf("creating OCR engine: %w", err)
	}
	if err := engine.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing probe engine: %w", err)
	}
	return cfg, ocr.NewPool(cfg.OCR.PoolSize, cfg.OCR.Timeout, ocr.Factory(cfg.OCR)), nil
}

func (c *CLI) validate(ctx context.Context, path string) error {
	cfg, pool, err := c.setup()
	if err != nil {
		return err
	}
	defer pool.Close()

	bytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	mimeType, _ := pipeline.MIMEType(path)

	v := pipeline.NewValidator(cfg, pool)
	resp, verr := v.Validate(ctx, pipeline.Request{
		ImageBytes:       bytes,
		MIMEType:         mimeType,
		DocumentTypeHint: c.docType,
		SideHint:         c.side,
	})
	if resp.Data != nil {
		resp.Data.Filename = filepath.Base(path)
	}

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	return verr
}

func (c *CLI) batch(ctx context.Context) error {
	cfg, pool, err := c.setup()
	if err != nil {
		return err
	}
	defer pool.Close()

	imagesDir := firstNonEmpty(c.imagesDir, cfg.Batch.ImagesDir)
	outputDir := firstNonEmpty(c.outputDir, cfg.Batch.OutputDir)
	outputFile := filepath.Join(outputDir, fmt.Sprintf("%s_extracted_ids.csv", cfg.OCR.Engine))

	results, failures := pipeline.RunBatch(ctx, pipeline.NewValidator(cfg, pool), imagesDir, outputFile)

	for _, path := range sortedKeys(failures) {
		fmt.Fprintf(c.out, "Error processing %s: %v\n", path, failures[path])
	}
	for _, path := range sortedKeys(results) {
		r := results[path]
		fmt.Fprintf(c.out, "Processed %s: %s %s (confidence %.2f)\n", path, r.DocumentType, r.DocumentNumber, r.Confidence)
	}
	fmt.Fprintf(c.out, "\nProcessing complete! Results saved to: %s\n", outputFile)
	fmt.Fprintf(c.out, "Processed %d images, %d accepted\n", len(results)+len(failures), len(results))

	if _, ok := failures["pipeline_error"]; ok {
		return fmt.Errorf("batch did not complete: %w", failures["pipeline_error"])
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
