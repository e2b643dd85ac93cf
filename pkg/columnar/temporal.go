package columnar

import "time"

const (
	// MicrosPerSecond is the number of microseconds in a second.
	MicrosPerSecond int64 = 1_000_000
	// MicrosPerDay is the number of microseconds in a day.
	MicrosPerDay int64 = 86_400 * MicrosPerSecond

	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.999999Z"
)

// timestampLayouts are tried in order. time.Parse accepts a fractional
// second after the seconds field even when the layout omits one.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	dateLayout,
}

// DateFromYMD returns days since the epoch for a civil date.
func DateFromYMD(year int, month time.Month, day int) int32 {
	return int32(floorDiv(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix(), 86_400))
}

// DateToTime returns midnight UTC of the given day.
func DateToTime(days int32) time.Time {
	return time.Unix(int64(days)*86_400, 0).UTC()
}

// TimestampToTime converts epoch microseconds to a UTC time.
func TimestampToTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// TimeToTimestamp converts a time to epoch microseconds.
func TimeToTimestamp(t time.Time) int64 {
	return t.UnixMicro()
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (int32, bool) {
	if len(s) != len(dateLayout) || s[4] != '-' || s[7] != '-' {
		return 0, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, false
	}
	return int32(floorDiv(t.Unix(), 86_400)), true
}

// ParseTimestamp parses an ISO 8601 datetime with a 'T' or space separator,
// optional fraction and optional zone. A bare date parses as midnight UTC.
func ParseTimestamp(s string) (int64, bool) {
	if len(s) < len(dateLayout) || s[4] != '-' {
		return 0, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMicro(), true
		}
	}
	return 0, false
}

// FormatDate renders days since the epoch as YYYY-MM-DD.
func FormatDate(days int32) string {
	return DateToTime(days).Format(dateLayout)
}

// FormatTimestamp renders epoch microseconds as YYYY-MM-DDTHH:MM:SS[.ffffff]Z
// with trailing fractional zeros removed.
func FormatTimestamp(us int64) string {
	return TimestampToTime(us).Format(timestampLayout)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorDiv is floor division for negative epoch offsets.
func FloorDiv(a, b int64) int64 { return floorDiv(a, b) }
