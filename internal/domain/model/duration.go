package model

import (
	"strconv"
	"strings"
	"time"
)

const durationParts = 3 // HH:MM:SS

// ParseConsumptionDuration parses an elapsed consumption time in HH:MM:SS
// form. A malformed string is treated as near-instant consumption rather
// than an error, so a bad clock string can never abort a calculation.
func ParseConsumptionDuration(s string) time.Duration {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != durationParts {
		return 0
	}

	var vals [durationParts]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0
		}
		vals[i] = n
	}

	return time.Duration(vals[0])*time.Hour +
		time.Duration(vals[1])*time.Minute +
		time.Duration(vals[2])*time.Second
}

// FormatConsumptionDuration renders a duration back into HH:MM:SS.
func FormatConsumptionDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return padTwo(h) + ":" + padTwo(m) + ":" + padTwo(s)
}

func padTwo(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
