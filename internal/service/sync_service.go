package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
)

// SyncResult is the outcome of one reconciliation run.
type SyncResult struct {
	Created int
	Updated int
	Errors  []string
}

// SyncService reconciles the registry against the billing provider's view
// of its users. A run fails wholesale only when the fetch itself fails;
// one bad record never loses the rest of the batch.
type SyncService struct {
	users  *UserService
	cfg    config.Config
	client *http.Client
	logger *zap.Logger
}

func NewSyncService(users *UserService, cfg config.Config, logger *zap.Logger) *SyncService {
	return &SyncService{
		users:  users,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.SyncTimeout},
		logger: logger,
	}
}

// Run pulls the provider's user batch and upserts each record.
func (s *SyncService) Run(ctx context.Context) SyncResult {
	var result SyncResult

	batch, err := s.fetchBatch(ctx)
	if err != nil {
		s.logger.Error("provider sync failed to fetch payload", zap.Error(err))
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	for idx, raw := range batch {
		created, err := s.applyRecord(ctx, raw)
		if err != nil {
			s.logger.Warn("provider sync failed for entry",
				zap.Int("index", idx),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("[%d] %s", idx, err.Error()))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.Info("provider sync finished",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// fetchBatch retrieves the raw record list. The provider responds with
// either a bare array or an object wrapping it under "users"; any other
// shape is a fetch-level failure.
func (s *SyncService) fetchBatch(ctx context.Context) ([]json.RawMessage, error) {
	if s.cfg.SyncURL == "" || s.cfg.SyncAPIKey == "" {
		return nil, errors.New("provider sync URL or API key missing; set EXTPAY_SYNC_URL and EXTPAY_API_KEY")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.SyncURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.SyncAPIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch provider payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider responded with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider payload: %w", err)
	}

	// A JSON null also unmarshals cleanly into a nil slice; only a real
	// list counts.
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil && list != nil {
		return list, nil
	}

	var wrapped struct {
		Users []json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Users != nil {
		return wrapped.Users, nil
	}

	return nil, errors.New("unexpected provider response shape; expected a list of users")
}

// providerRecord is the canonical form of one provider entry. Everything
// downstream of decodeRecord sees only this shape.
type providerRecord struct {
	Email                 string
	Name                  *string
	TrialStartedAt        *string
	SubscriptionStartedAt *string
	PlanLabel             string
	RawStatus             string
}

// decodeRecord maps one raw provider entry into the canonical record.
// Field spellings vary between camelCase and snake_case across provider
// versions; the first non-null value wins, camelCase taking precedence.
func decodeRecord(raw json.RawMessage) (providerRecord, error) {
	var entry struct {
		Email                      *string `json:"email"`
		Name                       *string `json:"name"`
		TrialStartedAt             *string `json:"trialStartedAt"`
		TrialStartedAtSnake        *string `json:"trial_started_at"`
		SubscriptionStartedAt      *string `json:"subscriptionStartedAt"`
		SubscriptionStartedAtSnake *string `json:"subscription_started_at"`
		PlanNickname               *string `json:"planNickname"`
		Plan                       *string `json:"plan"`
		Status                     *string `json:"status"`
		PlanStatus                 *string `json:"planStatus"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return providerRecord{}, fmt.Errorf("malformed record: %w", err)
	}

	email := stringOrNil(entry.Email)
	if email == nil {
		return providerRecord{}, errors.New("missing email")
	}

	record := providerRecord{
		Email:                 *email,
		Name:                  stringOrNil(entry.Name),
		TrialStartedAt:        firstNonNil(entry.TrialStartedAt, entry.TrialStartedAtSnake),
		SubscriptionStartedAt: firstNonNil(entry.SubscriptionStartedAt, entry.SubscriptionStartedAtSnake),
	}
	if plan := firstNonNil(entry.PlanNickname, entry.Plan); plan != nil {
		record.PlanLabel = *plan
	}
	if status := firstNonNil(entry.Status, entry.PlanStatus); status != nil {
		record.RawStatus = *status
	}
	return record, nil
}

// applyRecord decodes and upserts a single entry, reporting whether the
// upsert created a new user.
func (s *SyncService) applyRecord(ctx context.Context, raw json.RawMessage) (bool, error) {
	record, err := decodeRecord(raw)
	if err != nil {
		return false, err
	}

	status := string(domain.MapProviderStatus(record.RawStatus, record.PlanLabel))
	user, created, err := s.users.Upsert(ctx, UpsertInput{
		Email:                 record.Email,
		Name:                  record.Name,
		Status:                &status,
		TrialStartedAt:        record.TrialStartedAt,
		SubscriptionStartedAt: record.SubscriptionStartedAt,
	})
	if err != nil {
		return false, err
	}

	s.logger.Debug("provider sync applied user",
		zap.String("email", user.Email),
		zap.Bool("created", created),
	)
	return created, nil
}

func stringOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func firstNonNil(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
