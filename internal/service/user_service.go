package service

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/config"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/domain"
	"github.com/davincilab-soft/kity-chatgpt-navigator/internal/repository"
)

// UpsertInput is one create-or-merge request from any caller (direct API
// or provider sync). Nil fields are "not supplied".
type UpsertInput struct {
	Email                 string
	Name                  *string
	Status                *string
	TrialStartedAt        *string
	SubscriptionStartedAt *string
}

// UserService fronts the user registry.
type UserService struct {
	users  repository.UserRepository
	tokens map[string]string
	logger *zap.Logger
	tracer trace.Tracer
}

// NewUserService creates the service. The token map is the static
// bearer-token association from configuration.
func NewUserService(users repository.UserRepository, cfg config.Config, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: cfg.APITokens,
		logger: logger,
		tracer: otel.Tracer("kity-api/service"),
	}
}

// Upsert creates or merges the record for input.Email and reports whether
// it was newly created.
func (s *UserService) Upsert(ctx context.Context, input UpsertInput) (domain.User, bool, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Upsert")
	defer span.End()

	email := strings.TrimSpace(input.Email)
	if email == "" {
		return domain.User{}, false, &domain.ValidationError{Field: "email", Message: "Email is required"}
	}

	// Blank strings mean "not supplied", same as absent fields.
	user, created, err := s.users.Upsert(ctx, repository.UpsertParams{
		Email:                 email,
		Name:                  stringOrNil(input.Name),
		Status:                stringOrNil(input.Status),
		TrialStartedAt:        stringOrNil(input.TrialStartedAt),
		SubscriptionStartedAt: stringOrNil(input.SubscriptionStartedAt),
	})
	if err != nil {
		span.RecordError(err)
		return domain.User{}, false, err
	}

	s.logger.Debug("user upserted",
		zap.String("email", user.Email),
		zap.String("status", string(user.Status)),
		zap.Bool("created", created),
	)
	return user, created, nil
}

// List returns all users, newest first.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.List")
	defer span.End()

	users, err := s.users.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return users, nil
}

// FindByToken resolves a bearer token to its user record via the static
// token association. Unknown tokens and tokens pointing at absent users
// both yield repository.ErrNotFound.
func (s *UserService) FindByToken(ctx context.Context, token string) (domain.User, error) {
	email, ok := s.tokens[token]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve token user: %w", err)
	}
	return user, nil
}
