// Package service contains the business logic layer: validation, profile
// rules, and orchestration between the entity store, the ranking engine,
// and the collaborators. Handlers parse HTTP and delegate here; nothing in
// this package knows about status codes or routing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/auth"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/notify"
	"github.com/dsampson94/community-recruit/internal/repository"
)

const (
	MaxUsernameLength = 40
	MaxBioLength      = 2000
	DefaultListLimit  = 20
	MaxListLimit      = 100

	// maxPatchRetries bounds how often Update re-reads and re-applies a
	// patch after losing the store's optimistic version check.
	maxPatchRetries = 3
)

// BoardInvalidator is notified after every write that can change a user's
// metrics, so the leaderboard knows its cached order is stale.
type BoardInvalidator interface {
	Invalidate()
}

// UserService handles profile business logic.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	notifier  notify.Notifier
	board     BoardInvalidator
	logger    *slog.Logger
}

// NewUserService creates a UserService with its dependencies.
func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	notifier notify.Notifier,
	board BoardInvalidator,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		passwords: passwords,
		notifier:  notifier,
		board:     board,
		logger:    logger,
	}
}

// CreateUserInput carries everything a registration may supply. Counters
// default to zero and reference sequences to empty; every derived field is
// assigned explicitly rather than through hidden schema defaults.
type CreateUserInput struct {
	Username         string
	Email            string
	Password         string
	FullName         string
	Bio              string
	Location         string
	GitContributions int
	HoursWorked      float64
	Skills           []string
	Projects         []string
	EventsAttended   []string
}

// Create registers a new user. The password is hashed before it reaches the
// store; the stored credential is opaque from here on.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "email is malformed")
	}
	if input.Password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	if err := validateCounters(input.GitContributions, input.HoursWorked); err != nil {
		return nil, err
	}
	if len(input.Bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
	}
	for field, ids := range map[string][]string{
		"skills":         input.Skills,
		"projects":       input.Projects,
		"eventsAttended": input.EventsAttended,
	} {
		if err := validateNoDuplicates(field, ids); err != nil {
			return nil, err
		}
	}

	hashed, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Username:         username,
		Email:            email,
		Password:         hashed,
		FullName:         strings.TrimSpace(input.FullName),
		Bio:              input.Bio,
		Location:         strings.TrimSpace(input.Location),
		GitContributions: input.GitContributions,
		HoursWorked:      input.HoursWorked,
		Skills:           orEmpty(input.Skills),
		Projects:         orEmpty(input.Projects),
		EventsAttended:   orEmpty(input.EventsAttended),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		slog.String("id", user.ID),
		slog.String("username", user.Username),
	)
	s.afterWrite(user, notify.EventUserCreated)
	return user, nil
}

// UpdateUserPatch is a partial update; nil fields stay untouched.
type UpdateUserPatch struct {
	Username         *string  `json:"username"`
	Email            *string  `json:"email"`
	Password         *string  `json:"password"`
	FullName         *string  `json:"fullName"`
	Bio              *string  `json:"bio"`
	Location         *string  `json:"location"`
	GitContributions *int     `json:"gitContributions"`
	HoursWorked      *float64 `json:"hoursWorked"`
}

// Update applies a partial update to the user's scalar fields. Reference
// sequences change only through AddReference/RemoveReference.
//
// The read-patch-write cycle runs under the store's optimistic version
// check: a concurrent writer fails this write, and the retry re-reads the
// record so the competing write's fields carry into the merged result
// instead of being clobbered.
func (s *UserService) Update(ctx context.Context, id string, patch UpdateUserPatch) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	var user *model.User
	for attempt := 0; ; attempt++ {
		var err error
		user, err = s.users.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.applyPatch(user, patch); err != nil {
			return nil, err
		}

		err = s.users.UpdateUser(ctx, user)
		if err == nil {
			break
		}
		if !errors.Is(err, apperror.ErrConcurrentUpdate) || attempt >= maxPatchRetries {
			return nil, err
		}
	}

	s.logger.Info("user updated", slog.String("id", user.ID))
	s.afterWrite(user, notify.EventUserUpdated)
	return user, nil
}

// applyPatch validates the patch and writes its non-nil fields onto user.
func (s *UserService) applyPatch(user *model.User, patch UpdateUserPatch) error {
	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return apperror.ValidationFailed("username", "username must not be empty")
		}
		if len(username) > MaxUsernameLength {
			return apperror.ValidationFailed("username",
				fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
		}
		user.Username = username
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			return apperror.ValidationFailed("email", "email is malformed")
		}
		user.Email = email
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return apperror.ValidationFailed("password", "password must not be empty")
		}
		hashed, err := s.passwords.Hash(*patch.Password)
		if err != nil {
			return apperror.ValidationFailed("password", err.Error())
		}
		user.Password = hashed
	}
	if patch.FullName != nil {
		user.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Bio != nil {
		if len(*patch.Bio) > MaxBioLength {
			return apperror.ValidationFailed("bio",
				fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
		}
		user.Bio = *patch.Bio
	}
	if patch.Location != nil {
		user.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.GitContributions != nil {
		user.GitContributions = *patch.GitContributions
	}
	if patch.HoursWorked != nil {
		user.HoursWorked = *patch.HoursWorked
	}
	if err := validateCounters(user.GitContributions, user.HoursWorked); err != nil {
		return err
	}
	return nil
}

// GetByID retrieves a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

// List retrieves users with pagination, limit clamped to a sane range.
func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.ListUsers(ctx, repository.ListOptions{Limit: limit, Offset: offset})
}

// Delete removes the user; outbound references go with the record.
func (s *UserService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}

	// Fetch first: the notification needs the email, and a missing user
	// surfaces as NotFound before anything mutates.
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}

	s.logger.Info("user deleted", slog.String("id", id))
	s.afterWrite(user, notify.EventUserDeleted)
	return nil
}

// AddReference attaches an entity to one of the user's three sequences.
func (s *UserService) AddReference(ctx context.Context, userID string, kind model.RefKind, entityID string) (*model.User, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown reference kind %q", kind))
	}
	if strings.TrimSpace(entityID) == "" {
		return nil, apperror.ValidationFailed("entityId", "entity ID is required")
	}

	if err := s.users.AddReference(ctx, userID, kind, entityID); err != nil {
		return nil, err
	}
	s.board.Invalidate()

	return s.users.GetUserByID(ctx, userID)
}

// RemoveReference detaches an entity from one of the user's sequences.
func (s *UserService) RemoveReference(ctx context.Context, userID string, kind model.RefKind, entityID string) (*model.User, error) {
	if !kind.Valid() {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("unknown reference kind %q", kind))
	}

	if err := s.users.RemoveReference(ctx, userID, kind, entityID); err != nil {
		return nil, err
	}
	s.board.Invalidate()

	return s.users.GetUserByID(ctx, userID)
}

// afterWrite runs the post-commit side effects: the board is marked stale
// and the notifier fires in the background. Notification failure never
// reaches the caller of the write.
func (s *UserService) afterWrite(user *model.User, event notify.Event) {
	s.board.Invalidate()
	go s.notifier.Notify(context.Background(), user.ID, user.Email, event)
}

func validateCounters(commits int, hours float64) error {
	if commits < 0 {
		return apperror.ValidationFailed("gitContributions", "gitContributions must not be negative")
	}
	if hours < 0 {
		return apperror.ValidationFailed("hoursWorked", "hoursWorked must not be negative")
	}
	return nil
}

func validateNoDuplicates(field string, ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return apperror.ValidationFailed(field, fmt.Sprintf("duplicate reference %q in %s", id, field))
		}
		seen[id] = true
	}
	return nil
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
