package analyzer

import (
	"time"

	"patient_arrivals/internal/model"
)

// BuildSummary assembles the summary record from already computed values.
// Instants and dates are rendered with FormatHour and FormatDate.
func BuildSummary(totalPatients int, busiestHour time.Time, busiestHourCount int, busiestDay time.Time, busiestDayCount int, averageDaily float64) model.Summary {
	return model.Summary{
		TotalPatients:    totalPatients,
		BusiestHour:      FormatHour(busiestHour),
		BusiestHourCount: busiestHourCount,
		BusiestDay:       FormatDate(busiestDay),
		BusiestDayCount:  busiestDayCount,
		AverageDaily:     averageDaily,
	}
}

// Analyze runs every query of the aggregator and packages the result.
// The tables are always filled; the summary fails with an EmptyInputError
// when there is nothing to select from.
func Analyze(a *Aggregator) (*model.AnalysisResult, error) {
	result := &model.AnalysisResult{
		Hourly: a.HourlyCounts(),
		Daily:  a.DailyCounts(),
	}

	bh, bhc, err := a.BusiestHour()
	if err != nil {
		return result, err
	}
	bd, bdc, err := a.BusiestDay()
	if err != nil {
		return result, err
	}
	avg, err := a.AverageDaily()
	if err != nil {
		return result, err
	}

	result.Summary = BuildSummary(a.TotalPatients(), bh, bhc, bd, bdc, avg)
	return result, nil
}
