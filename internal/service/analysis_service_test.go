package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"patient_arrivals/internal/analyzer"
	"patient_arrivals/internal/cache"
	"patient_arrivals/internal/config"
	"patient_arrivals/internal/loader"
	"patient_arrivals/internal/model"
	"patient_arrivals/internal/report"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const scenarioCSV = `timestamp,patient_id
2024-01-01 10:05:00,A
2024-01-01 10:40:00,B
2024-01-01 10:50:00,A
2024-01-02 09:00:00,C
`

type memoryHistory struct {
	records   []*model.AnalysisRecord
	insertErr error
}

func (m *memoryHistory) Insert(rec *model.AnalysisRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	rec.ID = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryHistory) FindAll(limit int) ([]*model.AnalysisRecord, error) {
	var out []*model.AnalysisRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *memoryHistory) FindLatest() (*model.AnalysisRecord, error) {
	if len(m.records) == 0 {
		return nil, nil
	}
	return m.records[len(m.records)-1], nil
}

func (m *memoryHistory) CountAll() (int64, error) {
	return int64(len(m.records)), nil
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestService(t *testing.T, history HistoryStore, c cache.SummaryCache) *AnalysisService {
	t.Helper()
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Charts = false

	svc := NewAnalysisService(cfg, history, c, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC) }
	svc.newID = func() string { return "run-1" }
	return svc
}

func TestAnalyze_Scenario(t *testing.T) {
	history := &memoryHistory{}
	svc := newTestService(t, history, nil)
	input := writeInput(t, "arrivals.csv", scenarioCSV)

	resp, err := svc.Analyze(context.Background(), AnalyzeRequest{InputPath: input})

	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.RunID)
	assert.False(t, resp.Cached)

	want := model.Summary{
		TotalPatients:    3,
		BusiestHour:      "2024-01-01 10:00:00",
		BusiestHourCount: 2,
		BusiestDay:       "2024-01-01",
		BusiestDayCount:  2,
		AverageDaily:     1.5,
	}
	assert.Equal(t, want, resp.Result.Summary)

	written, err := report.ReadSummary(resp.Files.Summary)
	require.NoError(t, err)
	assert.Equal(t, want, *written)

	hourly, err := os.ReadFile(resp.Files.Hourly)
	require.NoError(t, err)
	assert.Equal(t, "timestamp,count\n2024-01-01 10:00:00,2\n2024-01-02 09:00:00,1\n", string(hourly))

	daily, err := os.ReadFile(resp.Files.Daily)
	require.NoError(t, err)
	assert.Equal(t, "date,count\n2024-01-01,2\n2024-01-02,1\n", string(daily))

	assert.FileExists(t, resp.Files.Workbook)
	assert.Empty(t, resp.Files.HourlyChart)

	require.Len(t, history.records, 1)
	rec := history.records[0]
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "arrivals.csv", rec.FileName)
	assert.Equal(t, "2024-02-01 09:30:00", rec.AnalysisDatetime)
	assert.Equal(t, 3, rec.TotalPatients)
	assert.Equal(t, "2024-01-01 10:00:00", rec.BusiestHour)
	assert.Equal(t, "2024-01-01", rec.BusiestDay)
}

func TestAnalyze_OutputDirOverrideAndCharts(t *testing.T) {
	svc := newTestService(t, &memoryHistory{}, nil)
	svc.cfg.Output.Charts = true
	outDir := filepath.Join(t.TempDir(), "run")

	resp, err := svc.Analyze(context.Background(), AnalyzeRequest{
		InputPath: writeInput(t, "arrivals.csv", scenarioCSV),
		OutputDir: outDir,
	})

	require.NoError(t, err)
	assert.Equal(t, outDir, resp.Files.Dir)
	assert.FileExists(t, filepath.Join(outDir, report.SummaryFile))
	assert.FileExists(t, resp.Files.HourlyChart)
	assert.FileExists(t, resp.Files.DailyChart)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	history := &memoryHistory{}
	svc := newTestService(t, history, nil)

	resp, err := svc.Analyze(context.Background(), AnalyzeRequest{
		InputPath: writeInput(t, "empty.csv", "timestamp,patient_id\n"),
	})

	var emptyErr *analyzer.EmptyInputError
	require.True(t, errors.As(err, &emptyErr))
	assert.ErrorIs(t, err, analyzer.ErrEmptyInput)

	require.NotNil(t, resp)
	assert.Empty(t, resp.Result.Hourly)
	assert.Empty(t, resp.Result.Daily)
	assert.Equal(t, 0, resp.Result.Summary.TotalPatients)
	assert.Empty(t, resp.Files.Summary)
	assert.Nil(t, resp.Record)

	data, readErr := os.ReadFile(resp.Files.Hourly)
	require.NoError(t, readErr)
	assert.Equal(t, "timestamp,count\n", string(data))
	assert.NoFileExists(t, filepath.Join(resp.Files.Dir, report.SummaryFile))
	assert.Empty(t, history.records)
}

func TestAnalyze_MissingColumn(t *testing.T) {
	svc := newTestService(t, &memoryHistory{}, nil)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		InputPath: writeInput(t, "arrivals.csv", "time,patient\n2024-01-01 10:00:00,A\n"),
	})

	assert.ErrorIs(t, err, loader.ErrMissingColumn)
}

func TestAnalyze_BadRow(t *testing.T) {
	svc := newTestService(t, &memoryHistory{}, nil)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		InputPath: writeInput(t, "arrivals.csv", "timestamp,patient_id\n2024-01-01 10:00:00,A\nnot a time,B\n"),
	})

	assert.ErrorContains(t, err, "row 2")
}

func TestAnalyze_RequiresInput(t *testing.T) {
	svc := newTestService(t, &memoryHistory{}, nil)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{})

	assert.Error(t, err)
}

func TestAnalyze_HistoryFailure(t *testing.T) {
	svc := newTestService(t, &memoryHistory{insertErr: errors.New("locked")}, nil)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		InputPath: writeInput(t, "arrivals.csv", scenarioCSV),
	})

	assert.ErrorContains(t, err, "failed to record analysis: locked")
}

func TestAnalyze_CanceledContext(t *testing.T) {
	svc := newTestService(t, &memoryHistory{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, AnalyzeRequest{InputPath: writeInput(t, "arrivals.csv", scenarioCSV)})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_CacheHit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	history := &memoryHistory{}
	svc := newTestService(t, history, cache.NewRedisCache(client, time.Hour))
	input := writeInput(t, "arrivals.csv", scenarioCSV)

	first, err := svc.Analyze(context.Background(), AnalyzeRequest{InputPath: input})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Len(t, mr.Keys(), 1)

	second, err := svc.Analyze(context.Background(), AnalyzeRequest{InputPath: input})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result.Summary, second.Result.Summary)

	// each run is recorded, cached or not
	assert.Len(t, history.records, 2)
}

func writeTwoSheetWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"timestamp", "patient_id"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-01-01 10:00:00", "A"}))

	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]interface{}{"timestamp", "patient_id"}))
	for i, id := range []string{"X", "Y", "Z"} {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Other", cell, &[]interface{}{"2024-03-05 09:15:00", id}))
	}

	path := filepath.Join(t.TempDir(), "arrivals.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestAnalyze_CacheKeyedBySheet(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	history := &memoryHistory{}
	svc := newTestService(t, history, cache.NewRedisCache(client, time.Hour))
	input := writeTwoSheetWorkbook(t)
	ctx := context.Background()

	svc.cfg.Input.Sheet = "Sheet1"
	first, err := svc.Analyze(ctx, AnalyzeRequest{InputPath: input})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Result.Summary.TotalPatients)

	svc.cfg.Input.Sheet = "Other"
	second, err := svc.Analyze(ctx, AnalyzeRequest{InputPath: input})
	require.NoError(t, err)

	assert.False(t, second.Cached)
	assert.Equal(t, 3, second.Result.Summary.TotalPatients)
	assert.Equal(t, "2024-03-05", second.Result.Summary.BusiestDay)
	assert.Len(t, mr.Keys(), 2)

	written, err := report.ReadSummary(second.Files.Summary)
	require.NoError(t, err)
	assert.Equal(t, 3, written.TotalPatients)
	require.Len(t, history.records, 2)
	assert.Equal(t, 3, history.records[1].TotalPatients)
}

func TestAnalyze_EmptyInputNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := newTestService(t, &memoryHistory{}, cache.NewRedisCache(client, time.Hour))

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		InputPath: writeInput(t, "empty.csv", "timestamp,patient_id\n"),
	})

	assert.ErrorIs(t, err, analyzer.ErrEmptyInput)
	assert.Empty(t, mr.Keys())
}

func TestPreview(t *testing.T) {
	svc := newTestService(t, &memoryHistory{}, nil)

	preview, err := svc.Preview(context.Background(), writeInput(t, "arrivals.csv", scenarioCSV), 2)

	require.NoError(t, err)
	assert.Equal(t, "arrivals.csv", preview.FileName)
	assert.Equal(t, 4, preview.Total)
	require.Len(t, preview.Rows, 2)
	assert.Equal(t, model.PreviewRow{Timestamp: "2024-01-01 10:05:00", PatientID: "A"}, preview.Rows[0])
}

func TestHistoryAndLatest(t *testing.T) {
	history := &memoryHistory{}
	svc := newTestService(t, history, nil)
	ctx := context.Background()

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	records, total, err := svc.History(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Equal(t, int64(0), total)

	input := writeInput(t, "arrivals.csv", scenarioCSV)
	ids := []string{"run-a", "run-b"}
	for _, id := range ids {
		id := id
		svc.newID = func() string { return id }
		_, err := svc.Analyze(ctx, AnalyzeRequest{InputPath: input})
		require.NoError(t, err)
	}

	records, total, err = svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 1)
	assert.Equal(t, "run-b", records[0].RunID)

	latest, err = svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-b", latest.RunID)
}
