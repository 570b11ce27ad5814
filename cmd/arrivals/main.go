package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"patient_arrivals/internal/analyzer"
	"patient_arrivals/internal/cache"
	"patient_arrivals/internal/config"
	"patient_arrivals/internal/dashboard"
	"patient_arrivals/internal/database"
	"patient_arrivals/internal/logger"
	"patient_arrivals/internal/service"

	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return nil
	}

	switch args[0] {
	case "analyze":
		return runAnalyze(args[1:], out)
	case "preview":
		return runPreview(args[1:], out)
	case "history":
		return runHistory(args[1:], out)
	case "serve":
		return runServe(args[1:], out)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	case "version", "-v", "--version":
		fmt.Fprintf(out, "arrivals v%s\n", version)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `
Patient Arrivals - hourly and daily arrival statistics

Usage: arrivals <command> [options]

Commands:
  analyze --input FILE [--out DIR]   Analyze a CSV or XLSX arrival log
  preview --input FILE [-n 10]       Show the first rows of an input file
  history [--limit 20]               List past analyses, newest first
  serve                              Start the dashboard API
  version                            Show version
  help                               Show this help

Common options:
  --env FILE       .env file to load (default .env)
  --config FILE    optional YAML config file

Examples:
  arrivals analyze --input arrivals.csv --out reports/
  arrivals preview --input arrivals.xlsx -n 5
  arrivals history --limit 5
`)
}

type commonFlags struct {
	envPath    string
	configPath string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.envPath, "env", ".env", "path to .env file")
	fs.StringVar(&c.configPath, "config", "", "path to YAML config file")
}

// stack holds the wired collaborators shared by the commands
type stack struct {
	cfg        *config.Config
	logger     *zap.Logger
	db         *sql.DB
	svc        *service.AnalysisService
	closeCache func() error
}

func bootstrap(ctx context.Context, flags commonFlags) (*stack, error) {
	cfg, err := config.Load(flags.envPath, flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format, "arrivals")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, history, err := database.OpenHistory(cfg.Database)
	if err != nil {
		log.Sync()
		return nil, err
	}
	log.Debug("History database ready", zap.String("type", cfg.Database.Type))

	summaryCache, closeCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		// analysis still works without the cache
		log.Warn("Result cache disabled", zap.Error(err))
		summaryCache, closeCache = cache.NopCache{}, func() error { return nil }
	}

	return &stack{
		cfg:        cfg,
		logger:     log,
		db:         db,
		svc:        service.NewAnalysisService(cfg, history, summaryCache, log),
		closeCache: closeCache,
	}, nil
}

func (s *stack) Close() {
	s.closeCache()
	s.db.Close()
	s.logger.Sync()
}

func runAnalyze(args []string, out io.Writer) error {
	var common commonFlags
	var input, outDir string

	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(out)
	common.register(fs)
	fs.StringVar(&input, "input", "", "CSV or XLSX arrival log")
	fs.StringVar(&outDir, "out", "", "output directory (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("--input is required")
	}

	ctx := context.Background()
	s, err := bootstrap(ctx, common)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := s.svc.Analyze(ctx, service.AnalyzeRequest{InputPath: input, OutputDir: outDir})
	if errors.Is(err, analyzer.ErrEmptyInput) {
		fmt.Fprintf(out, "No arrivals found in %s\n", input)
		fmt.Fprintf(out, "Empty tables written to %s\n", resp.Files.Dir)
		return err
	}
	if err != nil {
		return err
	}

	sum := resp.Result.Summary
	fmt.Fprintf(out, "Run %s\n", resp.RunID)
	if resp.Cached {
		fmt.Fprintln(out, "(result served from cache)")
	}
	fmt.Fprintf(out, "Total patients: %d\n", sum.TotalPatients)
	fmt.Fprintf(out, "Busiest hour:   %s (%d patients)\n", sum.BusiestHour, sum.BusiestHourCount)
	fmt.Fprintf(out, "Busiest day:    %s (%d patients)\n", sum.BusiestDay, sum.BusiestDayCount)
	fmt.Fprintf(out, "Average daily:  %.2f\n", sum.AverageDaily)
	fmt.Fprintf(out, "Outputs written to %s\n", resp.Files.Dir)
	return nil
}

func runPreview(args []string, out io.Writer) error {
	var common commonFlags
	var input string
	var n int

	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	fs.SetOutput(out)
	common.register(fs)
	fs.StringVar(&input, "input", "", "CSV or XLSX arrival log")
	fs.IntVar(&n, "n", 10, "number of rows to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("--input is required")
	}

	ctx := context.Background()
	s, err := bootstrap(ctx, common)
	if err != nil {
		return err
	}
	defer s.Close()

	preview, err := s.svc.Preview(ctx, input, n)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: showing %d of %d rows\n", preview.FileName, len(preview.Rows), preview.Total)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", s.cfg.Input.TimestampColumn, s.cfg.Input.PatientIDColumn)
	for _, row := range preview.Rows {
		fmt.Fprintf(tw, "%s\t%s\n", row.Timestamp, row.PatientID)
	}
	return tw.Flush()
}

func runHistory(args []string, out io.Writer) error {
	var common commonFlags
	var limit int

	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(out)
	common.register(fs)
	fs.IntVar(&limit, "limit", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	s, err := bootstrap(ctx, common)
	if err != nil {
		return err
	}
	defer s.Close()

	records, total, err := s.svc.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No analyses recorded yet")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tANALYZED AT\tFILE\tPATIENTS\tBUSIEST HOUR\tBUSIEST DAY")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.AnalysisDatetime, r.FileName, r.TotalPatients, r.BusiestHour, r.BusiestDay)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d runs\n", len(records), total)
	return nil
}

func runServe(args []string, out io.Writer) error {
	var common commonFlags

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(out)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := bootstrap(ctx, common)
	if err != nil {
		return err
	}
	defer s.Close()

	server := dashboard.NewServer(s.svc, s.cfg.Output.Dir, s.cfg.Server.Port, version, s.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
