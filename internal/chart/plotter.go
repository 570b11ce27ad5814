package chart

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"patient_arrivals/internal/analyzer"
	"patient_arrivals/internal/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const (
	HourlyFile = "hourly.png"
	DailyFile  = "daily.png"
)

var (
	width  = 10 * vg.Inch
	height = 4 * vg.Inch
)

// PlotHourly renders the hourly table as a line plot with markers
func PlotHourly(rows []model.BucketCount, path string) error {
	p := plot.New()
	p.Title.Text = "Patients per Hour"
	p.X.Label.Text = "Hour"
	p.Y.Label.Text = "Patients"
	p.Y.Min = 0

	if len(rows) > 0 {
		loc := rows[0].BucketStart.Location()
		p.X.Tick.Marker = plot.TimeTicks{
			Format: "01-02 15:04",
			Time: func(t float64) time.Time {
				return time.Unix(int64(t), 0).In(loc)
			},
		}

		xys := make(plotter.XYs, len(rows))
		for i, r := range rows {
			xys[i].X = float64(r.BucketStart.Unix())
			xys[i].Y = float64(r.Count)
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("failed to build hourly line: %w", err)
		}
		line.LineStyle.Width = vg.Points(1)
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points, plotter.NewGrid())
	}

	return save(p, path)
}

// PlotDaily renders the daily table as a bar chart labelled by date
func PlotDaily(rows []model.BucketCount, path string) error {
	p := plot.New()
	p.Title.Text = "Patients per Day"
	p.X.Label.Text = "Day"
	p.Y.Label.Text = "Patients"
	p.Y.Min = 0

	if len(rows) > 0 {
		values := make(plotter.Values, len(rows))
		labels := make([]string, len(rows))
		for i, r := range rows {
			values[i] = float64(r.Count)
			labels[i] = analyzer.FormatDate(r.BucketStart)
		}

		bars, err := plotter.NewBarChart(values, vg.Points(20))
		if err != nil {
			return fmt.Errorf("failed to build daily bars: %w", err)
		}
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.NominalX(labels...)
		p.X.Tick.Label.Rotation = math.Pi / 4
		p.X.Tick.Label.XAlign = text.XRight
	}

	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create chart dir: %w", err)
		}
	}
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save chart %s: %w", filepath.Base(path), err)
	}
	return nil
}
