package domain

import (
	"sort"
	"strings"
)

// Status is a subscription lifecycle state. The set of valid values is
// closed; every stored user carries exactly one of them.
type Status string

const (
	StatusActiveTrial  Status = "active_trial"
	StatusEndedTrial   Status = "ended_trial"
	StatusPaidMonthly  Status = "paid_monthly"
	StatusPaidAnnually Status = "paid_annually"
	StatusFreeUser     Status = "free_user"
)

// DefaultStatus is assigned when no status is supplied or mappable.
const DefaultStatus = StatusFreeUser

var statusValues = map[Status]struct{}{
	StatusActiveTrial:  {},
	StatusEndedTrial:   {},
	StatusPaidMonthly:  {},
	StatusPaidAnnually: {},
	StatusFreeUser:     {},
}

// AllowedStatuses returns the closed vocabulary sorted for stable API output.
func AllowedStatuses() []string {
	out := make([]string, 0, len(statusValues))
	for s := range statusValues {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// ParseStatus normalizes a raw status string into the closed vocabulary.
// An empty raw value resolves to fallback, or DefaultStatus when no
// fallback is given. A non-empty value that does not normalize into the
// vocabulary resolves to fallback when one is supplied, and yields a
// ValidationError otherwise.
func ParseStatus(raw string, fallback Status) (Status, error) {
	if strings.TrimSpace(raw) == "" {
		if fallback != "" {
			return fallback, nil
		}
		return DefaultStatus, nil
	}
	normalized := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_"))
	if _, ok := statusValues[normalized]; !ok {
		if fallback != "" {
			return fallback, nil
		}
		return "", &ValidationError{
			Field:   "status",
			Message: "Invalid status '" + raw + "'. Allowed: " + strings.Join(AllowedStatuses(), ", "),
		}
	}
	return normalized, nil
}

// MapProviderStatus maps a billing provider's status/plan vocabulary into
// ours. Provider payloads are untrusted, so this is best effort and total:
// anything unmappable degrades to DefaultStatus instead of failing.
func MapProviderStatus(raw, planLabel string) Status {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	plan := strings.ToLower(strings.TrimSpace(planLabel))

	switch normalized {
	case "trial", "trialing", "active_trial":
		return StatusActiveTrial
	case "trial_ended", "canceled", "cancelled", "ended_trial":
		return StatusEndedTrial
	}
	if strings.Contains(plan, "month") || normalized == "paid_monthly" || normalized == "monthly" {
		return StatusPaidMonthly
	}
	if strings.Contains(plan, "year") || strings.Contains(plan, "annual") || normalized == "paid_annually" || normalized == "yearly" {
		return StatusPaidAnnually
	}
	if _, ok := statusValues[Status(normalized)]; ok {
		return Status(normalized)
	}
	return DefaultStatus
}
