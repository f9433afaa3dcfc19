package domain

import "time"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO timestamps, reading
// zone-less values as UTC. Empty or unparseable input yields nil.
func ParseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}

	return nil
}
