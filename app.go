package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"patient_arrivals/internal/cache"
	"patient_arrivals/internal/chart"
	"patient_arrivals/internal/config"
	"patient_arrivals/internal/database"
	"patient_arrivals/internal/logger"
	"patient_arrivals/internal/model"
	"patient_arrivals/internal/report"
	"patient_arrivals/internal/runner"
	"patient_arrivals/internal/service"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"
)

const (
	eventAnalysisDone  = "analysis:done"
	eventAnalysisError = "analysis:error"
	previewRows        = 20
)

// App struct
type App struct {
	ctx    context.Context
	logger *zap.Logger

	settings *config.AppSettings
	cfg      *config.Config

	db         *sql.DB
	closeCache func() error
	svc        *service.AnalysisService
	runner     *runner.Runner

	mu sync.Mutex
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{logger: zap.NewNop()}
}

// startup is called when the app starts. The context is saved
// so we can call the runtime methods
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	base, err := config.Load("", "")
	if err != nil {
		base = config.Default()
	}
	if log, err := logger.NewLogger(base.Logging.Level, base.Logging.Format, "arrivals-desktop"); err == nil {
		a.logger = log
	}

	settings, err := config.LoadAppSettings()
	if err != nil {
		a.logger.Error("Failed to load settings", zap.Error(err))
		return
	}
	a.settings = settings

	if err := a.initializeServices(base); err != nil {
		a.logger.Error("Failed to initialize services", zap.Error(err))
	}
}

// shutdown stops the runner and releases the database
func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeServices()
	a.logger.Sync()
}

func (a *App) initializeServices(base *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Shutdown existing services if active
	a.closeServices()

	a.cfg = config.LoadFromSettings(base, a.settings)

	db, history, err := database.OpenHistory(a.cfg.Database)
	if err != nil {
		return err
	}
	a.db = db

	summaryCache, closeCache, err := cache.New(a.ctx, a.cfg.Cache)
	if err != nil {
		a.logger.Warn("Result cache disabled", zap.Error(err))
		summaryCache, closeCache = cache.NopCache{}, func() error { return nil }
	}
	a.closeCache = closeCache

	a.svc = service.NewAnalysisService(a.cfg, history, summaryCache, a.logger)
	a.runner = runner.NewRunner(a.svc, runner.Handlers{
		OnDone:  a.emitDone,
		OnError: a.emitError,
	}, 4, a.logger)

	return a.runner.Start(a.ctx)
}

// closeServices must be called with a.mu held
func (a *App) closeServices() {
	if a.runner != nil {
		a.runner.Stop()
		a.runner = nil
	}
	if a.closeCache != nil {
		a.closeCache()
		a.closeCache = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	a.svc = nil
}

func (a *App) emitDone(req service.AnalyzeRequest, resp *service.AnalyzeResponse) {
	runtime.EventsEmit(a.ctx, eventAnalysisDone, resp)
}

func (a *App) emitError(req service.AnalyzeRequest, resp *service.AnalyzeResponse, err error) {
	runtime.EventsEmit(a.ctx, eventAnalysisError, map[string]interface{}{
		"inputPath": req.InputPath,
		"error":     err.Error(),
		"response":  resp,
	})
}

func (a *App) currentConfig() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// ServeHTTP serves files of the current output directory under /outputs/
// for the webview. Other paths are not found.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := a.currentConfig()
	if cfg == nil || !strings.HasPrefix(r.URL.Path, "/outputs/") {
		http.NotFound(w, r)
		return
	}
	http.StripPrefix("/outputs/", http.FileServer(http.Dir(cfg.Output.Dir))).ServeHTTP(w, r)
}

func (a *App) analysisService() (*service.AnalysisService, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.svc == nil {
		return nil, errors.New("app not initialized, please check settings")
	}
	return a.svc, nil
}

// --- Bindings for Settings ---

// GetSettings returns the saved settings; lastInputPath pre-fills the file picker
func (a *App) GetSettings() *config.AppSettings {
	if a.settings == nil {
		return &config.AppSettings{}
	}
	return a.settings
}

func (a *App) UpdateSettings(storagePath, outputDir string) error {
	if a.settings == nil {
		a.settings = &config.AppSettings{}
	}
	a.settings.StoragePath = storagePath
	a.settings.OutputDir = outputDir

	if err := config.SaveAppSettings(a.settings); err != nil {
		return err
	}

	base, err := config.Load("", "")
	if err != nil {
		return err
	}
	return a.initializeServices(base)
}

// SelectInputFile opens a native file dialog for an arrival log
func (a *App) SelectInputFile() (string, error) {
	selection, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select arrival log",
		Filters: []runtime.FileFilter{
			{DisplayName: "Arrival logs (*.csv, *.xlsx)", Pattern: "*.csv;*.xlsx"},
		},
	})
	if err != nil || selection == "" {
		return selection, err
	}

	if a.settings != nil {
		a.settings.LastInputPath = selection
		if err := config.SaveAppSettings(a.settings); err != nil {
			a.logger.Warn("Failed to save settings", zap.Error(err))
		}
	}
	return selection, nil
}

// SelectOutputFolder opens a native directory dialog and returns the selected path
func (a *App) SelectOutputFolder() (string, error) {
	return runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select output folder",
	})
}

// --- Bindings for Analysis ---

func (a *App) PreviewFile(path string) (*model.FilePreview, error) {
	svc, err := a.analysisService()
	if err != nil {
		return nil, err
	}
	return svc.Preview(a.ctx, path, previewRows)
}

// Analyze queues the file for analysis. The outcome arrives as an
// analysis:done or analysis:error event.
func (a *App) Analyze(path string) error {
	a.mu.Lock()
	r := a.runner
	a.mu.Unlock()
	if r == nil {
		return errors.New("app not initialized, please check settings")
	}
	if err := r.Submit(service.AnalyzeRequest{InputPath: path}); err != nil {
		return fmt.Errorf("failed to queue analysis: %w", err)
	}
	return nil
}

func (a *App) IsAnalyzing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runner != nil && a.runner.Busy()
}

func (a *App) GetHistory(limit int) (map[string]interface{}, error) {
	svc, err := a.analysisService()
	if err != nil {
		return nil, err
	}

	records, total, err := svc.History(a.ctx, limit)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"data":  records,
		"total": total,
		"limit": limit,
	}, nil
}

// GetLastSummary reads the summary written by the most recent successful run
func (a *App) GetLastSummary() (*model.Summary, error) {
	cfg := a.currentConfig()
	if cfg == nil {
		return nil, errors.New("app not initialized, please check settings")
	}
	return report.ReadSummary(filepath.Join(cfg.Output.Dir, report.SummaryFile))
}

// GetChartPaths returns the chart files present in the output directory, keyed hourly and daily
func (a *App) GetChartPaths() map[string]string {
	paths := map[string]string{}
	cfg := a.currentConfig()
	if cfg == nil {
		return paths
	}

	for key, name := range map[string]string{"hourly": chart.HourlyFile, "daily": chart.DailyFile} {
		p := filepath.Join(cfg.Output.Dir, name)
		if _, err := os.Stat(p); err == nil {
			paths[key] = p
		}
	}
	return paths
}
