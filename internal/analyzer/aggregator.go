package analyzer

import (
	"sort"
	"strings"
	"time"

	"patient_arrivals/internal/model"

	"github.com/samber/lo"
)

// Aggregator computes bucketed arrival statistics over a fixed event set.
// It holds a private copy of the events, so it is safe to use from any goroutine
// and never observes later changes to the caller's slice.
type Aggregator struct {
	events []model.ArrivalEvent
}

// dayKey identifies a calendar date independent of the zone the timestamp carries
type dayKey struct {
	year  int
	month time.Month
	day   int
}

// New validates the events and returns an aggregator over a copy of them.
// An empty set is valid; a missing patient id or a zero timestamp is not.
// Timestamps are held in fixed-offset zones, see NormalizeZone.
func New(events []model.ArrivalEvent) (*Aggregator, error) {
	owned := make([]model.ArrivalEvent, len(events))
	for i, e := range events {
		if e.Timestamp.IsZero() {
			return nil, &InvalidInputError{Row: i, Reason: "timestamp is missing"}
		}
		if strings.TrimSpace(e.PatientID) == "" {
			return nil, &InvalidInputError{Row: i, Reason: "patient id is missing"}
		}
		owned[i] = model.ArrivalEvent{Timestamp: NormalizeZone(e.Timestamp), PatientID: e.PatientID}
	}
	return &Aggregator{events: owned}, nil
}

// Len returns the number of event rows held
func (a *Aggregator) Len() int {
	return len(a.events)
}

// HourlyCounts returns distinct patients per clock hour, ascending by hour
func (a *Aggregator) HourlyCounts() []model.BucketCount {
	return countDistinct(a.events,
		func(t time.Time) int64 { return FloorToHour(t).Unix() },
		FloorToHour,
	)
}

// DailyCounts returns distinct patients per calendar date, ascending by date.
// Bucket starts are midnight UTC of the date the event carried in its own zone.
func (a *Aggregator) DailyCounts() []model.BucketCount {
	return countDistinct(a.events,
		func(t time.Time) dayKey { return dayKey{t.Year(), t.Month(), t.Day()} },
		func(t time.Time) time.Time { return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC) },
	)
}

// BusiestHour returns the hour with the most distinct patients.
// Ties go to the earliest hour.
func (a *Aggregator) BusiestHour() (time.Time, int, error) {
	row, err := busiest(a.HourlyCounts(), "busiest hour")
	if err != nil {
		return time.Time{}, 0, err
	}
	return row.BucketStart, row.Count, nil
}

// BusiestDay returns the date with the most distinct patients.
// Ties go to the earliest date.
func (a *Aggregator) BusiestDay() (time.Time, int, error) {
	row, err := busiest(a.DailyCounts(), "busiest day")
	if err != nil {
		return time.Time{}, 0, err
	}
	return row.BucketStart, row.Count, nil
}

// TotalPatients returns the number of distinct patient ids across all events
func (a *Aggregator) TotalPatients() int {
	ids := lo.Map(a.events, func(e model.ArrivalEvent, _ int) string { return e.PatientID })
	return len(lo.Uniq(ids))
}

// AverageDaily returns the mean of the daily distinct-patient counts
func (a *Aggregator) AverageDaily() (float64, error) {
	daily := a.DailyCounts()
	if len(daily) == 0 {
		return 0, &EmptyInputError{Query: "average daily"}
	}
	sum := lo.SumBy(daily, func(b model.BucketCount) int { return b.Count })
	return float64(sum) / float64(len(daily)), nil
}

// countDistinct groups events by bucket key and counts unique patient ids per bucket.
// Buckets without events are not emitted.
func countDistinct[K comparable](events []model.ArrivalEvent, key func(time.Time) K, start func(time.Time) time.Time) []model.BucketCount {
	ids := make(map[K]map[string]struct{})
	starts := make(map[K]time.Time)

	for _, e := range events {
		k := key(e.Timestamp)
		set, ok := ids[k]
		if !ok {
			set = make(map[string]struct{})
			ids[k] = set
			starts[k] = start(e.Timestamp)
		}
		set[e.PatientID] = struct{}{}
	}

	rows := make([]model.BucketCount, 0, len(ids))
	for k, set := range ids {
		rows = append(rows, model.BucketCount{BucketStart: starts[k], Count: len(set)})
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].BucketStart.Before(rows[j].BucketStart)
	})
	return rows
}

// busiest picks the highest count from an ascending table, keeping the first row on ties
func busiest(rows []model.BucketCount, query string) (model.BucketCount, error) {
	if len(rows) == 0 {
		return model.BucketCount{}, &EmptyInputError{Query: query}
	}
	return lo.MaxBy(rows, func(a, b model.BucketCount) bool {
		return a.Count > b.Count
	}), nil
}
