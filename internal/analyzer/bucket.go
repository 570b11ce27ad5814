package analyzer

import "time"

const (
	hourLayout = "2006-01-02 15:04:05"
	zoneLayout = "2006-01-02 15:04:05-07:00"
	dateLayout = "2006-01-02"
)

// NormalizeZone returns the same instant in a fixed-offset zone: UTC when the
// offset is zero, an unnamed fixed zone otherwise. Hour flooring in a DST zone
// such as time.Local is ambiguous around transitions; a fixed offset is not.
func NormalizeZone(t time.Time) time.Time {
	_, offset := t.Zone()
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

// FloorToHour returns the start of the clock hour containing t, in t's own location.
// time.Truncate is not used because it floors on absolute time and drifts for
// zones whose offset is not a whole number of hours.
func FloorToHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// FloorToDay returns midnight of t's calendar date, in t's own location.
func FloorToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FormatHour renders a bucket instant in the canonical form shared by every output.
// UTC (naive) instants carry no offset suffix.
func FormatHour(t time.Time) string {
	if t.Location() == time.UTC {
		return t.Format(hourLayout)
	}
	return t.Format(zoneLayout)
}

// FormatDate renders the calendar date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
