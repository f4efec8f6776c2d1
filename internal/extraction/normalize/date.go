// internal/extraction/normalize/date.go
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"policy-extraction-workers/internal/models"
)

const ISODate = "2006-01-02"

// DateCorrectedNote is appended to observations when the validity period is repaired.
const DateCorrectedNote = "Fechas corregidas automáticamente."

// ScheduleDateLayout is the only layout accepted inside payment schedules.
const ScheduleDateLayout = "02/01/2006"

// exactLayouts are tried in order: dd/MM/yyyy, MM/dd/yyyy, yyyy-MM-dd, dd-MM-yyyy,
// d/M/yyyy, d-M-yyyy, yyyy/MM/dd.
var exactLayouts = []string{
	"02/01/2006",
	"01/02/2006",
	"2006-01-02",
	"02-01-2006",
	"2/1/2006",
	"2-1-2006",
	"2006/01/02",
}

var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02.01.2006",
	"2.1.2006",
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

var longSpanishDate = regexp.MustCompile(`(?i)^(\d{1,2})\s+(?:de\s+)?([a-z]+)\.?\s+(?:de\s+|del\s+)?(\d{4})$`)

var spanishMonths = map[string]time.Month{
	"ENERO": time.January, "ENE": time.January,
	"FEBRERO": time.February, "FEB": time.February,
	"MARZO": time.March, "MAR": time.March,
	"ABRIL": time.April, "ABR": time.April,
	"MAYO": time.May, "MAY": time.May,
	"JUNIO": time.June, "JUN": time.June,
	"JULIO": time.July, "JUL": time.July,
	"AGOSTO": time.August, "AGO": time.August,
	"SETIEMBRE": time.September, "SEPTIEMBRE": time.September, "SET": time.September, "SEP": time.September,
	"OCTUBRE": time.October, "OCT": time.October,
	"NOVIEMBRE": time.November, "NOV": time.November,
	"DICIEMBRE": time.December, "DIC": time.December,
}

// ParseDate returns the date as yyyy-MM-dd and true when raw is recognised.
// Unrecognised input comes back trimmed with false so it stays visible for review;
// blank input returns "" and false.
func ParseDate(raw string) (string, bool) {
	t, ok := ParseTime(raw)
	if !ok {
		return strings.TrimSpace(raw), false
	}
	return t.Format(ISODate), true
}

// ParseTime is ParseDate without formatting.
func ParseTime(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range exactLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return parseFree(s)
}

func parseFree(s string) (time.Time, bool) {
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}

	m := longSpanishDate.FindStringSubmatch(Fold(s))
	if m == nil {
		return time.Time{}, false
	}
	month, ok := spanishMonths[strings.ToUpper(m[2])]
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// ParseScheduleDate accepts only dd/MM/yyyy.
func ParseScheduleDate(raw string) (string, bool) {
	t, err := time.Parse(ScheduleDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return t.Format(ISODate), true
}

// addYear moves t one calendar year ahead, clamping 29 February to 28 February
// instead of rolling into March.
func addYear(t time.Time) time.Time {
	next := t.AddDate(1, 0, 0)
	if next.Day() != t.Day() {
		next = next.AddDate(0, 0, -next.Day())
	}
	return next
}

// RepairDateRange enforces startDate < endDate on a record under construction:
// a missing start becomes today, a missing end becomes start + 1 year, and an
// inverted or empty range is extended to start + 1 year with a note.
func RepairDateRange(rec *models.PolicyRecord, today time.Time) {
	if strings.TrimSpace(rec.StartDate) == "" {
		rec.StartDate = today.Format(ISODate)
	}

	start, startOK := parseISO(rec.StartDate)
	if strings.TrimSpace(rec.EndDate) == "" {
		if startOK {
			rec.EndDate = addYear(start).Format(ISODate)
		}
		return
	}

	end, endOK := parseISO(rec.EndDate)
	if startOK && endOK && !start.Before(end) {
		rec.EndDate = addYear(start).Format(ISODate)
		rec.AddObservation(DateCorrectedNote)
	}
}

func parseISO(s string) (time.Time, bool) {
	t, err := time.Parse(ISODate, s)
	return t, err == nil
}
