package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"patient_arrivals/internal/analyzer"
	"patient_arrivals/internal/cache"
	"patient_arrivals/internal/chart"
	"patient_arrivals/internal/config"
	"patient_arrivals/internal/loader"
	"patient_arrivals/internal/model"
	"patient_arrivals/internal/report"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const datetimeLayout = "2006-01-02 15:04:05"

// HistoryStore is the append-only log of finished analyses
type HistoryStore interface {
	Insert(rec *model.AnalysisRecord) error
	FindAll(limit int) ([]*model.AnalysisRecord, error)
	FindLatest() (*model.AnalysisRecord, error)
	CountAll() (int64, error)
}

// AnalyzeRequest names the input file and where to write the outputs.
// OutputDir falls back to the configured output directory.
type AnalyzeRequest struct {
	InputPath string `json:"inputPath"`
	OutputDir string `json:"outputDir"`
}

// OutputFiles lists the artifacts written by a run. Empty fields were not written.
type OutputFiles struct {
	Dir         string `json:"dir"`
	Summary     string `json:"summary,omitempty"`
	Hourly      string `json:"hourly"`
	Daily       string `json:"daily"`
	Workbook    string `json:"workbook,omitempty"`
	HourlyChart string `json:"hourlyChart,omitempty"`
	DailyChart  string `json:"dailyChart,omitempty"`
}

// AnalyzeResponse is the outcome of one analysis run
type AnalyzeResponse struct {
	RunID  string                `json:"runId"`
	Result *model.AnalysisResult `json:"result"`
	Files  OutputFiles           `json:"files"`
	Record *model.AnalysisRecord `json:"record,omitempty"`
	Cached bool                  `json:"cached"`
}

// AnalysisService runs the load, aggregate and report pipeline
type AnalysisService struct {
	cfg     *config.Config
	history HistoryStore
	cache   cache.SummaryCache
	logger  *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewAnalysisService(cfg *config.Config, history HistoryStore, c cache.SummaryCache, logger *zap.Logger) *AnalysisService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &AnalysisService{
		cfg:     cfg,
		history: history,
		cache:   c,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *AnalysisService) options() loader.Options {
	return loader.Options{
		Columns: model.Columns{
			Timestamp: s.cfg.Input.TimestampColumn,
			PatientID: s.cfg.Input.PatientIDColumn,
		},
		Sheet: s.cfg.Input.Sheet,
	}
}

// Analyze runs the full pipeline for one input file.
//
// On an input with no events the hourly and daily tables are still written,
// the returned response is non-nil and the error is an *analyzer.EmptyInputError.
// No summary file and no history row are written in that case.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	if req.InputPath == "" {
		return nil, errors.New("input path is required")
	}
	outDir := req.OutputDir
	if outDir == "" {
		outDir = s.cfg.Output.Dir
	}

	runID := s.newID()
	log := s.logger.With(zap.String("run_id", runID), zap.String("input", req.InputPath))
	start := s.now()

	opts := s.options()
	events, content, err := s.readEvents(ctx, req.InputPath, opts)
	if err != nil {
		log.Warn("Input rejected", zap.Error(err))
		return nil, err
	}

	resp := &AnalyzeResponse{RunID: runID}
	key := cache.Key(content, opts.Columns.Timestamp, opts.Columns.PatientID, opts.Sheet)

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("Cache lookup failed", zap.Error(err))
	}

	var analyzeErr error
	if cached != nil {
		resp.Result = cached
		resp.Cached = true
		log.Debug("Cache hit", zap.String("key", key))
	} else {
		agg, err := analyzer.New(events)
		if err != nil {
			return nil, err
		}
		resp.Result, analyzeErr = analyzer.Analyze(agg)
		if analyzeErr != nil && !errors.Is(analyzeErr, analyzer.ErrEmptyInput) {
			return nil, analyzeErr
		}
		if analyzeErr == nil {
			if err := s.cache.Set(ctx, key, resp.Result); err != nil {
				log.Warn("Cache store failed", zap.Error(err))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var summary *model.Summary
	if analyzeErr == nil {
		summary = &resp.Result.Summary
	}
	resp.Files, err = s.writeOutputs(outDir, resp.Result, summary)
	if err != nil {
		log.Error("Failed to write outputs", zap.Error(err))
		return nil, err
	}

	if analyzeErr != nil {
		log.Info("Input has no arrivals", zap.String("output_dir", outDir))
		return resp, analyzeErr
	}

	rec := &model.AnalysisRecord{
		RunID:            runID,
		FileName:         filepath.Base(req.InputPath),
		AnalysisDatetime: s.now().Format(datetimeLayout),
		TotalPatients:    resp.Result.Summary.TotalPatients,
		BusiestHour:      resp.Result.Summary.BusiestHour,
		BusiestDay:       resp.Result.Summary.BusiestDay,
	}
	if err := s.history.Insert(rec); err != nil {
		log.Error("Failed to record analysis", zap.Error(err))
		return nil, fmt.Errorf("failed to record analysis: %w", err)
	}
	resp.Record = rec

	log.Info("Analysis completed",
		zap.Int("events", len(events)),
		zap.Int("total_patients", rec.TotalPatients),
		zap.String("busiest_hour", rec.BusiestHour),
		zap.String("busiest_day", rec.BusiestDay),
		zap.Bool("cached", resp.Cached),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
	return resp, nil
}

func (s *AnalysisService) readEvents(ctx context.Context, path string, opts loader.Options) ([]model.ArrivalEvent, []byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read input: %w", err)
	}
	table, err := loader.Load(ctx, path, opts)
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Validate(table, opts.Columns); err != nil {
		return nil, nil, err
	}
	events, err := loader.ParseEvents(table, opts.Columns)
	if err != nil {
		return nil, nil, err
	}
	return events, content, nil
}

func (s *AnalysisService) writeOutputs(dir string, result *model.AnalysisResult, summary *model.Summary) (OutputFiles, error) {
	files := OutputFiles{
		Dir:    dir,
		Hourly: filepath.Join(dir, report.HourlyFile),
		Daily:  filepath.Join(dir, report.DailyFile),
	}

	if err := report.WriteHourlyCSV(files.Hourly, result.Hourly); err != nil {
		return files, err
	}
	if err := report.WriteDailyCSV(files.Daily, result.Daily); err != nil {
		return files, err
	}

	if s.cfg.Output.Workbook {
		files.Workbook = filepath.Join(dir, report.WorkbookFile)
		if err := report.WriteWorkbook(files.Workbook, result.Hourly, result.Daily, summary); err != nil {
			return files, err
		}
	}

	if s.cfg.Output.Charts {
		files.HourlyChart = filepath.Join(dir, chart.HourlyFile)
		files.DailyChart = filepath.Join(dir, chart.DailyFile)
		if err := chart.PlotHourly(result.Hourly, files.HourlyChart); err != nil {
			return files, err
		}
		if err := chart.PlotDaily(result.Daily, files.DailyChart); err != nil {
			return files, err
		}
	}

	if summary != nil {
		files.Summary = filepath.Join(dir, report.SummaryFile)
		if err := report.WriteSummary(files.Summary, *summary); err != nil {
			return files, err
		}
	}
	return files, nil
}

// Preview reads an input file and returns its first n rows
func (s *AnalysisService) Preview(ctx context.Context, path string, n int) (*model.FilePreview, error) {
	opts := s.options()
	table, err := loader.Load(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	preview, err := loader.Preview(table, opts.Columns, n)
	if err != nil {
		return nil, err
	}
	preview.FileName = filepath.Base(path)
	return preview, nil
}

// History returns up to limit past runs, newest first, and the total number of runs
func (s *AnalysisService) History(ctx context.Context, limit int) ([]*model.AnalysisRecord, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	records, err := s.history.FindAll(limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.history.CountAll()
	if err != nil {
		return nil, 0, err
	}
	if records == nil {
		records = []*model.AnalysisRecord{}
	}
	return records, total, nil
}

// Latest returns the most recent run, or nil when none has been recorded
func (s *AnalysisService) Latest(ctx context.Context) (*model.AnalysisRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.history.FindLatest()
}
