package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/mercadolocal/internal/authz"
	"github.com/utafrali/mercadolocal/internal/domain"
	"github.com/utafrali/mercadolocal/internal/event"
	"github.com/utafrali/mercadolocal/internal/identity"
	"github.com/utafrali/mercadolocal/internal/repository"
	apperrors "github.com/utafrali/mercadolocal/pkg/errors"
)

// AccountManager is implemented by *identity.Client.
type AccountManager interface {
	CreateAccount(ctx context.Context, in identity.NewAccount) (*identity.Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// UserService implements user administration.
type UserService struct {
	profiles repository.ProfileRepository
	accounts AccountManager
	guard    Authorizer
	notify   *Notifier
	logger   *slog.Logger
}

// NewUserService creates a new user service. accounts may be nil when no
// auth admin API is configured; account creation and deletion then fail
// as unavailable.
func NewUserService(
	profiles repository.ProfileRepository,
	accounts AccountManager,
	guard Authorizer,
	notify *Notifier,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		profiles: profiles,
		accounts: accounts,
		guard:    guard,
		notify:   notify,
		logger:   logger,
	}
}

// CreateUserInput holds the parameters for creating a user.
type CreateUserInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

// ResolveRole returns the role of userID for the Auth middleware. Banned
// users are reported as forbidden.
func (s *UserService) ResolveRole(ctx context.Context, userID string) (string, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	if p.IsBanned {
		return "", apperrors.Forbidden("account suspended")
	}
	return p.Role, nil
}

// ListUsers returns profiles for the admin panel.
func (s *UserService) ListUsers(ctx context.Context, actor authz.Actor, filter domain.ProfileFilter) ([]domain.Profile, int, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectUser, "", authz.ActionModerate); err != nil {
		return nil, 0, err
	}
	if filter.Role != nil && !domain.IsValidRole(*filter.Role) {
		return nil, 0, apperrors.InvalidField("role", "unknown role")
	}
	filter.Page, filter.PerPage = normalizePage(filter.Page, filter.PerPage)

	users, total, err := s.profiles.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// ChangeRole sets the role of a user. Admins cannot change their own role.
func (s *UserService) ChangeRole(ctx context.Context, actor authz.Actor, id, role string) error {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectUser, id, authz.ActionUpdate); err != nil {
		return err
	}
	if !domain.IsValidRole(role) {
		return apperrors.InvalidField("role", "unknown role")
	}
	if id == actor.UserID {
		return apperrors.InvalidInput("you cannot change your own role")
	}
	if err := s.profiles.UpdateRole(ctx, id, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	s.logger.InfoContext(ctx, "user role changed",
		slog.String("target_user_id", id),
		slog.String("new_role", role),
	)
	return nil
}

// SetBanned bans or reinstates a user.
func (s *UserService) SetBanned(ctx context.Context, actor authz.Actor, id string, banned bool) error {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectUser, id, authz.ActionModerate); err != nil {
		return err
	}
	if id == actor.UserID {
		return apperrors.InvalidInput("you cannot ban yourself")
	}
	if err := s.profiles.SetBanned(ctx, id, banned); err != nil {
		return fmt.Errorf("set banned: %w", err)
	}

	s.logger.InfoContext(ctx, "user ban updated",
		slog.String("target_user_id", id),
		slog.Bool("banned", banned),
	)
	return nil
}

// CreateUser registers a login account and its profile. A failed profile
// write removes the account again.
func (s *UserService) CreateUser(ctx context.Context, actor authz.Actor, input *CreateUserInput) (*domain.Profile, error) {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectUser, "", authz.ActionCreate); err != nil {
		return nil, err
	}
	if s.accounts == nil {
		return nil, apperrors.Unavailable(identity.ServiceName, fmt.Errorf("auth admin API is not configured"))
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.InvalidField("email", "is required")
	}
	role := input.Role
	if role == "" {
		role = domain.RoleBuyer
	}
	if !domain.IsValidRole(role) {
		return nil, apperrors.InvalidField("role", "unknown role")
	}

	acct, err := s.accounts.CreateAccount(ctx, identity.NewAccount{
		Email:    email,
		Password: input.Password,
		FullName: strings.TrimSpace(input.FullName),
		Role:     role,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	profile := &domain.Profile{
		ID:        acct.ID,
		Email:     email,
		FullName:  strings.TrimSpace(input.FullName),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if delErr := s.accounts.DeleteAccount(ctx, acct.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back account after profile error",
				slog.String("account_id", acct.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.String("target_user_id", profile.ID),
		slog.String("role", role),
	)
	return profile, nil
}

// DeleteUser removes the profile, then the login account. The profile
// cascade removes the user's store and products.
func (s *UserService) DeleteUser(ctx context.Context, actor authz.Actor, id string) error {
	if err := s.guard.Authorize(ctx, actor, authz.ObjectUser, id, authz.ActionDelete); err != nil {
		return err
	}
	if s.accounts == nil {
		return apperrors.Unavailable(identity.ServiceName, fmt.Errorf("auth admin API is not configured"))
	}
	if id == actor.UserID {
		return apperrors.InvalidInput("you cannot delete yourself")
	}

	if err := s.profiles.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	// The store and its listings went with the profile.
	s.notify.Changed(ctx, event.Change{Type: event.VendorUpdated, EntityType: "user", EntityID: id})
	s.logger.InfoContext(ctx, "user deleted",
		slog.String("target_user_id", id),
	)
	return nil
}
