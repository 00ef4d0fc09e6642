package extract

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Layouts tried after cast's own list. These are the forms certificate
// tooling tends to print validity dates in.
var fallbackLayouts = []string{
	"060102150405Z",            // ASN.1 UTCTime
	"20060102150405Z",          // ASN.1 GeneralizedTime
	"Jan _2 15:04:05 2006 MST", // openssl x509 -dates
	"Jan _2 15:04:05.000 2006 MST",
	"Mon Jan _2 2006 15:04:05 GMT-0700",
	"2006-01-02 15:04:05 -0700 MST",
}

// ToEpochSeconds converts a date-like string into seconds since the epoch.
// It never fails: ok is false and the result 0 when the input is empty or
// cannot be read as a date.
func ToEpochSeconds(dateLike string) (ts int64, ok bool) {
	value := strings.TrimSpace(dateLike)
	if value == "" {
		return 0, false
	}

	if t, err := cast.ToTimeE(value); err == nil {
		return t.Unix(), true
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Unix(), true
		}
	}

	return 0, false
}

// DaysRemaining returns floor((validToTS - nowTS) / 86400)
func DaysRemaining(validToTS, nowTS int64) int64 {
	diff := validToTS - nowTS
	days := diff / 86400
	if diff%86400 != 0 && diff < 0 {
		days--
	}
	return days
}
