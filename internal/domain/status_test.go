package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
)

func TestParseStatusNormalizes(t *testing.T) {
	status, err := domain.ParseStatus("  Active Trial ", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveTrial, status)

	status, err = domain.ParseStatus("PAID_MONTHLY", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaidMonthly, status)
}

func TestParseStatusEmptyUsesFallbackOrDefault(t *testing.T) {
	status, err := domain.ParseStatus("", domain.StatusEndedTrial)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEndedTrial, status)

	status, err = domain.ParseStatus("   ", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultStatus, status)
}

func TestParseStatusUnknownFailsWithoutFallback(t *testing.T) {
	_, err := domain.ParseStatus("platinum", "")
	require.Error(t, err)

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "status", validationErr.Field)
	assert.Contains(t, validationErr.Message, "platinum")
}

func TestParseStatusUnknownKeepsFallback(t *testing.T) {
	status, err := domain.ParseStatus("platinum", domain.StatusPaidAnnually)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaidAnnually, status)
}

func TestMapProviderStatus(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		plan   string
		expect domain.Status
	}{
		{"trialing maps to active trial", "trialing", "", domain.StatusActiveTrial},
		{"trial maps to active trial", "trial", "", domain.StatusActiveTrial},
		{"canceled maps to ended trial", "canceled", "", domain.StatusEndedTrial},
		{"british cancelled too", "cancelled", "", domain.StatusEndedTrial},
		{"monthly plan label", "", "Pro Monthly", domain.StatusPaidMonthly},
		{"yearly plan label wins over empty status", "", "Pro Yearly", domain.StatusPaidAnnually},
		{"annual plan label", "", "Annual Deluxe", domain.StatusPaidAnnually},
		{"raw monthly status", "monthly", "", domain.StatusPaidMonthly},
		{"raw yearly status", "yearly", "", domain.StatusPaidAnnually},
		{"vocabulary passthrough", "free_user", "", domain.StatusFreeUser},
		{"unknown degrades to default", "weird_unknown", "", domain.StatusFreeUser},
		{"spaces and case normalized", " Trial Ended ", "", domain.StatusEndedTrial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, domain.MapProviderStatus(tc.raw, tc.plan))
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	got, err := domain.NormalizeTimestamp("2024-01-01T00:00:00", "trialStartedAt")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:00:00", got)

	got, err = domain.NormalizeTimestamp("2024-06-15T08:30:00Z", "trialStartedAt")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15T08:30:00", got)

	got, err = domain.NormalizeTimestamp("2024-06-15", "subscriptionStartedAt")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15T00:00:00", got)

	_, err = domain.NormalizeTimestamp("not-a-date", "trialStartedAt")
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "trialStartedAt")
}
