package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pdf-compressor-go/internal/batch"
	"pdf-compressor-go/internal/compressor"
	"pdf-compressor-go/internal/config"
	"pdf-compressor-go/internal/fsutil"
	"pdf-compressor-go/internal/ghostscript"
	"pdf-compressor-go/internal/inspect"
	"pdf-compressor-go/internal/logger"
	"pdf-compressor-go/internal/perf"
	"pdf-compressor-go/internal/progress"
	"pdf-compressor-go/internal/supervisor"
	"pdf-compressor-go/internal/sysinfo"
	"pdf-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	statsJSON string
	verbose   bool
	quiet     bool
	version   string
	buildTime string
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "pdf-compressor <path> [quality]",
	Short: "Compress scanned PDFs into compact black & white files",
	Long: `pdf-compressor shrinks scanned PDF documents by converting them to
grayscale and recompressing their images through Ghostscript.

Features:
- Single file or whole directory batches (smallest files first)
- Three quality modes: high (300dpi), balanced (200dpi), compact (150dpi)
- Size-aware timeouts with graceful process termination
- Crash-safe output: files appear at the final path only when complete
- Per-run performance report with phase and per-file timings

Single files produce <name>_optimized_bw.pdf beside the input; a directory
produces a sibling <dir>_optimized_bw/ with one output per input.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.Context(), args)
	},
	SilenceUsage: true,
}

// scanCmd lists what a run would process, without writing anything.
var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "List the PDF files a compression run would process",
	Long: `Scan a PDF file or directory and show the files a compression run
would pick up, with sizes, projected output names and, when exiftool is
installed, document metadata.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Context(), args)
	},
	SilenceUsage: true,
}

// profilesCmd prints the quality profile table.
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the available quality profiles",
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range config.AvailableProfiles() {
			marker := " "
			if p.Name == config.DefaultProfileName {
				marker = "*"
			}
			fmt.Printf("%s %-10s %3d dpi  %2d%% JPEG  %-9s %s\n",
				marker, p.Name, p.DPI, p.JPEGQuality, p.Preset, p.Description)
		}
		fmt.Println("\n* default")
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface server",
	Long: `Starts a web server with a browser interface for the compressor.
The interface streams live progress over a websocket and exposes the same
single-file and directory modes as the CLI.

Access it at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVar(&statsJSON, "stats-json", "", "write run statistics to this file as JSON")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(serveCmd)

	if version != "" {
		rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
	}
}

// runCompress executes the main compression logic for a file or directory.
func runCompress(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	inputPath := args[0]
	if len(args) > 1 {
		if !config.IsValidProfile(args[1]) {
			return fmt.Errorf("invalid quality mode: %s (valid options: %s)",
				args[1], strings.Join(config.ProfileNames(), " | "))
		}
		cfg.Quality = args[1]
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("path not found: %s", inputPath)
	}

	log := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	binary, err := ghostscript.Locate(cfg.Ghostscript.Binary)
	if err != nil {
		if errors.Is(err, ghostscript.ErrNotFound) {
			return fmt.Errorf("%w\n%s", err, ghostscript.InstallHint)
		}
		return err
	}
	if ver, verr := ghostscript.Version(ctx, binary); verr == nil {
		log.Infof("Using Ghostscript %s at %s", ver, binary)
	}

	log.WithFields(sysinfo.Snapshot(log, filepath.Dir(inputPath)).Fields()).Info("Starting compression run")

	if !quiet {
		fmt.Println("Starting PDF compression...")
		fmt.Printf("Input: %s\n", inputPath)
		fmt.Printf("Quality: %s\n", cfg.Quality)
		fmt.Printf("Log file: %s\n", cfg.Logging.FilePath)
		fmt.Println(strings.Repeat("-", 50))
	}

	tracker := perf.NewTracker()
	sup := supervisor.New(log, cfg.Process.PollInterval, cfg.Process.GraceWindow)
	remover := fsutil.NewRemover(log, cfg.Process.RemoveAttempts, cfg.Process.RemoveRetryDelay)
	comp := compressor.NewFileCompressor(log, cfg.Profile(), cfg.Timeouts, ghostscript.Builder(binary), sup, remover, tracker)
	orch := batch.NewOrchestrator(log, cfg, comp, tracker)

	var sink progress.Sink = progress.NewConsoleSink(os.Stdout)
	if quiet {
		sink = progress.Nop
	}

	var res *batch.Result
	if info.IsDir() {
		tracker.Start("Batch Compression (CLI)")
		res, err = orch.CompressDirectory(ctx, inputPath, sink)
	} else {
		tracker.Start("Single File Compression (CLI)")
		if !quiet {
			fmt.Printf("Processing: %s\n", filepath.Base(inputPath))
		}
		res, err = orch.CompressFile(ctx, inputPath, sink)
	}
	if err != nil {
		if errors.Is(err, batch.ErrNoFilesFound) {
			return fmt.Errorf("no PDF files found in %s", inputPath)
		}
		return err
	}

	if !quiet {
		printSummary(res, tracker)
	}

	if statsJSON != "" {
		if werr := writeStats(statsJSON, tracker, res); werr != nil {
			log.Warnf("Could not write stats file: %v", werr)
		}
	}

	if res.Succeeded == 0 {
		return fmt.Errorf("no files were successfully compressed")
	}
	return nil
}

// runScan prints what a compression run would process.
func runScan(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path not found: %s", path)
	}

	log := setupLogger(cfg)

	var reader inspect.MetadataReader
	if et, err := inspect.NewExifToolReader(log); err == nil {
		reader = et
		defer et.Close()
	} else {
		log.Debugf("Scanning without metadata: %v", err)
	}

	summary, err := inspect.NewScanner(log, cfg, reader).Scan(ctx, path)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Println(summary.Report())
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}

	log := setupLogger(cfg)

	binary, err := ghostscript.Locate(cfg.Ghostscript.Binary)
	if err != nil {
		if errors.Is(err, ghostscript.ErrNotFound) {
			return fmt.Errorf("%w\n%s", err, ghostscript.InstallHint)
		}
		return err
	}

	server := web.NewServer(cfg, log, binary)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Println("PDF compressor web interface started.")
	fmt.Printf("Open your browser and go to: http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop the server.")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped.")
	return nil
}

func printUsage() {
	fmt.Println("Please provide a PDF file or directory path.")
	fmt.Println("Usage: pdf-compressor <path> [quality]")
	fmt.Printf("Quality options: %s (default: %s)\n",
		strings.Join(config.ProfileNames(), " | "), config.DefaultProfileName)
	fmt.Println("\nExamples:")
	fmt.Println("  pdf-compressor document.pdf")
	fmt.Println("  pdf-compressor /path/to/pdfs/ balanced")
	fmt.Println("  pdf-compressor document.pdf high")
}

// printSummary renders the end-of-run results block.
func printSummary(res *batch.Result, tracker *perf.Tracker) {
	seconds := res.Elapsed.Seconds()

	if res.OutputDir != "" {
		fmt.Println("\nBATCH COMPRESSION RESULTS")
		fmt.Println(strings.Repeat("=", 50))
		if res.Succeeded == 0 {
			fmt.Println("No files were successfully compressed.")
			fmt.Println("Check the log file for detailed error information.")
			printFailures(res)
			return
		}
		fmt.Printf("Successfully processed: %d/%d files\n", res.Succeeded, res.Total)
		fmt.Printf("Total time: %.2f seconds\n", seconds)
		fmt.Printf("Total original size: %.2f MB\n", toMB(res.TotalInputBytes))
		fmt.Printf("Total compressed size: %.2f MB\n", toMB(res.TotalOutputBytes))
		fmt.Printf("Total space saved: %.1f%%\n", res.SavedPercent())
		if seconds > 0 {
			fmt.Printf("Overall processing speed: %.2f MB/s\n", toMB(res.TotalInputBytes)/seconds)
			fmt.Printf("Average time per file: %.2fs\n", seconds/float64(res.Succeeded))
		}
		fmt.Printf("Output directory: %s\n", res.OutputDir)
		fmt.Println("\n" + tracker.Report())
		printFailures(res)
		return
	}

	if res.Succeeded == 0 {
		fmt.Println("\nCompression failed.")
		fmt.Println("Check the log file for detailed error information.")
		printFailures(res)
		return
	}
	fmt.Println("\nCompression completed successfully!")
	fmt.Printf("Original size: %.2f MB\n", toMB(res.TotalInputBytes))
	fmt.Printf("Compressed size: %.2f MB\n", toMB(res.TotalOutputBytes))
	fmt.Printf("Space saved: %.1f%%\n", res.SavedPercent())
	if seconds > 0 {
		fmt.Printf("Processing speed: %.2f MB/s\n", toMB(res.TotalInputBytes)/seconds)
	}
	fmt.Printf("Output file: %s\n", res.OutputPath)
	fmt.Println("\n" + tracker.Report())
}

func printFailures(res *batch.Result) {
	if res.Failed() == 0 {
		return
	}
	fmt.Println("\nFailed files:")
	for _, f := range res.Failures {
		fmt.Printf("  - %s: %s\n", f.Name, f.Message)
	}
}

// writeStats exports the run's statistics as JSON.
func writeStats(path string, tracker *perf.Tracker, res *batch.Result) error {
	payload := struct {
		Run    perf.Stats    `json:"run"`
		Result *batch.Result `json:"result"`
	}{tracker.Stats(), res}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func toMB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024)
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console && !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
