package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/repository"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/service"
)

func newSyncFixture(t *testing.T, handler http.HandlerFunc) (*service.SyncService, *memoryUserRepo) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	repo := newMemoryUserRepo()
	cfg := config.Config{
		SyncURL:     srv.URL,
		SyncAPIKey:  "test-key",
		SyncTimeout: 2 * time.Second,
	}
	users := service.NewUserService(repo, cfg, zap.NewNop())
	return service.NewSyncService(users, cfg, zap.NewNop()), repo
}

func TestRunAppliesBareListAndMapsStatuses(t *testing.T) {
	syncSvc, repo := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`[
			{"email": "a@b.com", "status": "trialing"},
			{"email": "c@d.com", "plan": "Pro Yearly"}
		]`))
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Errors)

	a, err := repo.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveTrial, a.Status)

	c, err := repo.FindByEmail(context.Background(), "c@d.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaidAnnually, c.Status)
}

func TestRunSkipsRecordWithoutEmail(t *testing.T) {
	syncSvc, repo := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"email": "a@b.com", "status": "trialing"},
			{"name": "No Email"},
			{"email": "c@d.com", "status": "canceled"}
		]`))
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "[1] missing email", result.Errors[0])

	_, err := repo.FindByEmail(context.Background(), "a@b.com")
	assert.NoError(t, err)
	_, err = repo.FindByEmail(context.Background(), "c@d.com")
	assert.NoError(t, err)
}

func TestRunAcceptsWrappedPayload(t *testing.T) {
	syncSvc, _ := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users": [{"email": "a@b.com"}]}`))
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)
}

func TestRunCountsUpdatesSeparately(t *testing.T) {
	syncSvc, repo := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"email": "a@b.com", "status": "paid_monthly"}]`))
	})

	_, _, err := repo.Upsert(context.Background(), repository.UpsertParams{Email: "a@b.com"})
	require.NoError(t, err)

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)

	user, err := repo.FindByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaidMonthly, user.Status)
}

func TestRunFetchFailureAbortsWholesale(t *testing.T) {
	syncSvc, _ := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "status 500")
}

func TestRunUnexpectedShapeIsFetchError(t *testing.T) {
	syncSvc, _ := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 3}`))
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected provider response shape")
}

func TestRunNullPayloadIsFetchError(t *testing.T) {
	syncSvc, _ := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected provider response shape")
}

func TestRunEmptyListIsSuccess(t *testing.T) {
	syncSvc, _ := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, result.Errors)
}

func TestRunMissingConfigIsFetchError(t *testing.T) {
	repo := newMemoryUserRepo()
	cfg := config.Config{SyncTimeout: time.Second}
	users := service.NewUserService(repo, cfg, zap.NewNop())
	syncSvc := service.NewSyncService(users, cfg, zap.NewNop())

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 0, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "EXTPAY_SYNC_URL")
}

func TestRunDualSpellingCamelCaseWins(t *testing.T) {
	syncSvc, repo := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"email": "snake@b.com", "trial_started_at": "2024-02-01T00:00:00"},
			{"email": "both@b.com", "trialStartedAt": "2024-03-01T00:00:00", "trial_started_at": "2024-04-01T00:00:00"}
		]`))
	})

	result := syncSvc.Run(context.Background())
	require.Empty(t, result.Errors)

	snake, err := repo.FindByEmail(context.Background(), "snake@b.com")
	require.NoError(t, err)
	require.NotNil(t, snake.TrialStartedAt)
	assert.Equal(t, "2024-02-01T00:00:00", *snake.TrialStartedAt)

	both, err := repo.FindByEmail(context.Background(), "both@b.com")
	require.NoError(t, err)
	require.NotNil(t, both.TrialStartedAt)
	assert.Equal(t, "2024-03-01T00:00:00", *both.TrialStartedAt)
}

func TestRunBadTimestampIsRecordError(t *testing.T) {
	syncSvc, repo := newSyncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"email": "bad@b.com", "trialStartedAt": "soon"},
			{"email": "good@b.com"}
		]`))
	})

	result := syncSvc.Run(context.Background())
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "[0]")

	_, err := repo.FindByEmail(context.Background(), "good@b.com")
	assert.NoError(t, err)
}
