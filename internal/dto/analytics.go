package dto

// Granularity selects the timestamp prefix used for time bucketing.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// PrefixLength is the number of timestamp characters that identify a bucket.
func (g Granularity) PrefixLength() (int, bool) {
	switch g {
	case GranularityDay:
		return 10, true
	case GranularityMonth:
		return 7, true
	}
	return 0, false
}

// Field is a categorical incident attribute usable for distribution counts.
type Field string

const (
	FieldLabel      Field = "label"
	FieldLocation   Field = "location"
	FieldSourceName Field = "camera_name"
)

// Valid reports whether f is a known distribution field.
func (f Field) Valid() bool {
	switch f {
	case FieldLabel, FieldLocation, FieldSourceName:
		return true
	}
	return false
}

// PeriodCount is one time bucket of the incident timeline.
type PeriodCount struct {
	Period string `json:"period"`
	Count  int    `json:"count"`
}

// CategoryCount is one value of a categorical distribution.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
