package model

import (
	"strings"
	"time"
)

// TimestampLayout is the incident timestamp format. Values sort lexically in time order.
const TimestampLayout = "2006-01-02_15-04-05"

// SourceInfo is the human-readable metadata of a video source.
type SourceInfo struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Incident is a persisted, alert-worthy detection. It is never mutated after creation.
type Incident struct {
	ID         string  `json:"id"`
	Timestamp  string  `json:"timestamp"`
	SourceID   string  `json:"camera"`
	SourceName string  `json:"camera_name"`
	Location   string  `json:"location"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Image      string  `json:"image"`
}

// Time parses the incident timestamp in local time.
func (i Incident) Time() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, i.Timestamp, time.Local)
}

// FormatTimestamp renders t at second resolution in the incident layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// HumanTime renders the timestamp as "2006-01-02 15:04:05" for messages.
func (i Incident) HumanTime() string {
	date, clock, ok := strings.Cut(i.Timestamp, "_")
	if !ok {
		return i.Timestamp
	}
	return date + " " + strings.ReplaceAll(clock, "-", ":")
}
