package domain

import (
	"strings"
	"time"
)

// User is a registry record for one extension user, keyed by email.
type User struct {
	ID                    string  `json:"id"`
	Email                 string  `json:"email"`
	Name                  *string `json:"name"`
	Status                Status  `json:"status"`
	TrialStartedAt        *string `json:"trialStartedAt"`
	SubscriptionStartedAt *string `json:"subscriptionStartedAt"`
	CreatedAt             string  `json:"createdAt"`
}

// Snapshot is a twice-daily distinct-user count, keyed by its 12h period.
type Snapshot struct {
	PeriodKey  string `json:"periodKey"`
	TotalUsers int64  `json:"totalUsers"`
	CapturedAt string `json:"capturedAt"`
}

// Layouts accepted for caller-supplied timestamps, most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp validates an ISO-8601 timestamp and returns its
// canonical form. The stored representation is UTC-naive, matching the
// rest of the registry.
func NormalizeTimestamp(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &ValidationError{Field: field, Message: "Invalid ISO datetime for '" + field + "'"}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC().Format("2006-01-02T15:04:05"), nil
		}
	}
	return "", &ValidationError{Field: field, Message: "Invalid ISO datetime for '" + field + "'"}
}
