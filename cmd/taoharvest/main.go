// Command taoharvest extracts structured product data from storefront
// pages. With a product URL argument it extracts that single product;
// without one it crawls every storefront in the configured shop list.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taoharvest/taoharvest/internal/batch"
	"github.com/taoharvest/taoharvest/internal/browser"
	"github.com/taoharvest/taoharvest/internal/config"
	"github.com/taoharvest/taoharvest/internal/discover"
	"github.com/taoharvest/taoharvest/internal/extract"
	"github.com/taoharvest/taoharvest/internal/media"
	"github.com/taoharvest/taoharvest/internal/observability"
	"github.com/taoharvest/taoharvest/internal/output"
	"github.com/taoharvest/taoharvest/internal/resolver"
	"github.com/taoharvest/taoharvest/internal/storage"
	"github.com/taoharvest/taoharvest/internal/types"
)

var (
	cfgFile    string
	outputDir  string
	verbose    bool
	resume     bool
	loginWait  time.Duration
	noImages   bool
	jsonFormat bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taoharvest [product-url]",
		Short: "Taoharvest - resilient storefront product extractor",
		Long: `Taoharvest extracts structured product data from storefront pages
over a persistent logged-in browser session.

With a product URL argument it extracts that single product.
Without one it discovers and extracts every product of the
configured storefronts, writing an append-only index, per-product
folders, and a terminal run summary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (overrides config)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "skip products already present in the run index")
	rootCmd.Flags().DurationVar(&loginWait, "login-wait", 0, "hold the browser open for manual login before crawling")
	rootCmd.Flags().BoolVar(&noImages, "no-images", false, "skip image downloads")
	rootCmd.Flags().BoolVar(&jsonFormat, "json-logs", false, "emit logs as JSON")

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := buildLogger(cfg.Logging)

	singleURL := ""
	if len(args) == 1 {
		singleURL = args[0]
	}
	if singleURL == "" && len(cfg.Shops) == 0 {
		return types.ErrNoShops
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		cancel()
	}()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	var downloader *media.Downloader
	if cfg.Extract.DownloadImages {
		downloader, err = media.NewDownloader(int(cfg.Extract.MaxImageSizeMB), metrics, logger)
		if err != nil {
			return fmt.Errorf("create downloader: %w", err)
		}
		defer downloader.Close()
	}

	writer, err := output.NewWriter(cfg.Output.Root, cfg.Output.CSVIndex, downloader, logger)
	if err != nil {
		return fmt.Errorf("create output writer: %w", err)
	}
	defer writer.Close()

	var sink storage.IndexSink
	if cfg.Index.MongoEnabled {
		mongoSink, err := storage.NewMongoSink(
			cfg.Index.MongoURI, cfg.Index.MongoDatabase, cfg.Index.MongoCollection, logger)
		if err != nil {
			// The filesystem index is authoritative; a dead mirror
			// downgrades to a warning.
			logger.Warn("mongodb mirror unavailable", "error", err)
		} else {
			sink = mongoSink
			defer mongoSink.Close()
		}
	}

	session, err := browser.NewSession(cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer session.Close()

	landing := singleURL
	if landing == "" {
		landing = cfg.Shops[0].URL
	}
	if err := session.EnsureLogin(ctx, landing); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	tracker := resolver.NewDriftTracker()
	res := resolver.New(logger, tracker)
	extractor := extract.New(res, cfg.Extract, cfg.Browser.WaitTimeout, metrics, logger)
	defer tracker.Log(logger)

	if singleURL != "" {
		return runSingle(ctx, session.Page(), extractor, writer, sink, singleURL, logger)
	}

	discoverer := discover.New(cfg.Discovery, metrics, logger)
	orch := batch.New(session.Page(), discoverer, extractor, writer, sink, metrics, logger)
	orch.Resume = resume

	start := time.Now()
	summary, err := orch.Run(ctx, cfg.Shops)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	fmt.Printf("\nRun %s complete in %s\n", summary.RunID, time.Since(start).Round(time.Second))
	fmt.Printf("   Attempted: %d\n", summary.Attempted)
	fmt.Printf("   Succeeded: %d (%d with missing fields)\n", summary.Succeeded, summary.Partial)
	fmt.Printf("   Failed:    %d\n", summary.Failed)
	fmt.Printf("   Output:    %s\n", writer.Root())
	return nil
}

// runSingle extracts one product and prints its record. A product
// failure is recorded on the index like any batch attempt; the run
// itself completed, so it is not a command error.
func runSingle(ctx context.Context, page browser.Page, extractor *extract.Extractor, writer *output.Writer, sink storage.IndexSink, productURL string, logger *slog.Logger) error {
	rec, err := extractor.Extract(ctx, page, productURL)

	row := types.BatchIndexRow{
		ProductID: types.ProductIDFromURL(productURL),
		URL:       productURL,
		Timestamp: time.Now(),
	}

	if err != nil {
		row.Status = types.StatusFailed
		row.Reason = err.Error()
		if appendErr := writer.AppendIndex(row); appendErr != nil {
			return fmt.Errorf("append index: %w", appendErr)
		}
		logger.Error("product extraction failed", "url", productURL, "error", err)
		fmt.Printf("\nExtraction failed: %v\n", err)
		return nil
	}

	path, err := writer.WriteRecord(ctx, rec, rec.Shop.Name)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	row.ProductID = rec.ID
	row.Status = types.StatusOK
	row.Path = path
	if err := writer.AppendIndex(row); err != nil {
		return fmt.Errorf("append index: %w", err)
	}
	if sink != nil {
		if err := sink.StoreRecord(rec); err != nil {
			logger.Warn("record mirror failed", "error", err)
		}
		if err := sink.Append(row); err != nil {
			logger.Warn("index mirror failed", "error", err)
		}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	fmt.Printf("\nSaved to %s\n", path)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("taoharvest %s\n", config.Version)
		},
	}
}

// buildLogger constructs the process logger from the logging config.
// Flags are folded into the config before this runs, so --verbose and
// --json-logs win over the file.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if outputDir != "" {
		cfg.Output.Root = outputDir
	}
	if loginWait > 0 {
		cfg.Browser.LoginWait = loginWait
	}
	if noImages {
		cfg.Extract.DownloadImages = false
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonFormat {
		cfg.Logging.Format = "json"
	}
}
