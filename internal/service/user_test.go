package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/auth"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/notify"
)

func validCreateInput() CreateUserInput {
	return CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	}
}

func TestUserCreate(t *testing.T) {
	svc, _, board := newTestUserService(t)

	user, err := svc.Create(context.Background(), CreateUserInput{
		Username:         "  alice  ",
		Email:            "alice@example.com",
		Password:         "password123",
		FullName:         "Alice Example",
		GitContributions: 10,
		HoursWorked:      5,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not assign an ID")
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want trimmed %q", user.Username, "alice")
	}
	if user.Password == "password123" {
		t.Error("Create() stored the plaintext password")
	}
	if user.Skills == nil || user.Projects == nil || user.EventsAttended == nil {
		t.Error("Create() should default reference sequences to empty, not nil")
	}
	if board.invalidations() == 0 {
		t.Error("Create() did not invalidate the leaderboard")
	}
}

func TestUserCreate_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CreateUserInput)
		wantField string
	}{
		{"empty username", func(in *CreateUserInput) { in.Username = "  " }, "username"},
		{"long username", func(in *CreateUserInput) { in.Username = strings.Repeat("a", MaxUsernameLength+1) }, "username"},
		{"empty email", func(in *CreateUserInput) { in.Email = "" }, "email"},
		{"malformed email", func(in *CreateUserInput) { in.Email = "not-an-email" }, "email"},
		{"empty password", func(in *CreateUserInput) { in.Password = "" }, "password"},
		{"negative commits", func(in *CreateUserInput) { in.GitContributions = -1 }, "gitContributions"},
		{"negative hours", func(in *CreateUserInput) { in.HoursWorked = -0.5 }, "hoursWorked"},
		{"long bio", func(in *CreateUserInput) { in.Bio = strings.Repeat("x", MaxBioLength+1) }, "bio"},
		{"duplicate skill refs", func(in *CreateUserInput) { in.Skills = []string{"s1", "s1"} }, "skills"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestUserService(t)

			input := validCreateInput()
			tt.mutate(&input)

			_, err := svc.Create(context.Background(), input)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Create() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			if len(repo.users) != 0 {
				t.Error("rejected input must not reach the store")
			}
		})
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	if _, err := svc.Create(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := validCreateInput()
	dup.Email = "other@example.com"
	if _, err := svc.Create(context.Background(), dup); !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
}

func TestUserCreate_FiresNotification(t *testing.T) {
	repo := newMockUserRepo()
	notifier := newRecordingNotifier()
	svc := NewUserService(repo, auth.NewPasswordServiceForTest(4), notifier, &mockBoard{}, testLogger())

	if _, err := svc.Create(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	select {
	case event := <-notifier.events:
		if event != notify.EventUserCreated {
			t.Errorf("event = %q, want %q", event, notify.EventUserCreated)
		}
	case <-time.After(time.Second):
		t.Fatal("no notification within 1s of a successful create")
	}
}

func TestUserUpdate_PartialPatch(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	user, err := svc.Create(context.Background(), CreateUserInput{
		Username:         "alice",
		Email:            "alice@example.com",
		Password:         "password123",
		Bio:              "original bio",
		GitContributions: 10,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	hours := 7.5
	updated, err := svc.Update(context.Background(), user.ID, UpdateUserPatch{HoursWorked: &hours})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.HoursWorked != 7.5 {
		t.Errorf("HoursWorked = %v, want 7.5", updated.HoursWorked)
	}
	// Untouched fields survive a partial patch.
	if updated.Bio != "original bio" || updated.GitContributions != 10 {
		t.Errorf("patch clobbered unrelated fields: %+v", updated)
	}
}

func TestUserUpdate_RejectsInvalidPatch(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	user, _ := svc.Create(context.Background(), validCreateInput())

	empty := ""
	if _, err := svc.Update(context.Background(), user.ID, UpdateUserPatch{Username: &empty}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update(empty username) error = %v, want ErrValidation", err)
	}

	negative := -3
	if _, err := svc.Update(context.Background(), user.ID, UpdateUserPatch{GitContributions: &negative}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update(negative commits) error = %v, want ErrValidation", err)
	}
}

// holdFirstReadRepo parks the first GetUserByID after it returns, so a test
// can interleave a competing write while the caller holds a stale copy.
type holdFirstReadRepo struct {
	*mockUserRepo
	mu       sync.Mutex
	held     bool
	readDone chan struct{}
	release  chan struct{}
}

func (r *holdFirstReadRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := r.mockUserRepo.GetUserByID(ctx, id)

	r.mu.Lock()
	first := !r.held
	r.held = true
	r.mu.Unlock()

	if first {
		close(r.readDone)
		<-r.release
	}
	return user, err
}

func TestUserUpdate_InterleavedPatchesKeepBothFields(t *testing.T) {
	repo := &holdFirstReadRepo{
		mockUserRepo: newMockUserRepo(),
		readDone:     make(chan struct{}),
		release:      make(chan struct{}),
	}
	svc := NewUserService(repo, auth.NewPasswordServiceForTest(4), notify.Noop{}, &mockBoard{}, testLogger())

	user, err := svc.Create(context.Background(), validCreateInput())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// The bio patch reads the record and parks on its stale copy.
	bio := "i write go"
	done := make(chan error, 1)
	go func() {
		_, err := svc.Update(context.Background(), user.ID, UpdateUserPatch{Bio: &bio})
		done <- err
	}()
	<-repo.readDone

	// A competing location patch completes in the meantime.
	location := "cape town"
	if _, err := svc.Update(context.Background(), user.ID, UpdateUserPatch{Location: &location}); err != nil {
		t.Fatalf("location update error = %v", err)
	}

	close(repo.release)
	if err := <-done; err != nil {
		t.Fatalf("bio update error = %v", err)
	}

	// Both writes returned success, so both fields must survive: the bio
	// patch lost the version check and re-read before applying.
	final, err := svc.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if final.Bio != "i write go" || final.Location != "cape town" {
		t.Errorf("lost update: bio = %q, location = %q", final.Bio, final.Location)
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	bio := "hello"
	if _, err := svc.Update(context.Background(), "missing", UpdateUserPatch{Bio: &bio}); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestUserDelete(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	user, _ := svc.Create(context.Background(), validCreateInput())

	if err := svc.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(repo.users) != 0 {
		t.Error("Delete() left the user in the store")
	}

	if err := svc.Delete(context.Background(), user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestAddReference(t *testing.T) {
	svc, _, board := newTestUserService(t)
	user, _ := svc.Create(context.Background(), validCreateInput())
	before := board.invalidations()

	updated, err := svc.AddReference(context.Background(), user.ID, model.RefSkill, "skill-1")
	if err != nil {
		t.Fatalf("AddReference() error = %v", err)
	}
	if len(updated.Skills) != 1 || updated.Skills[0] != "skill-1" {
		t.Errorf("Skills = %v, want [skill-1]", updated.Skills)
	}
	if board.invalidations() <= before {
		t.Error("AddReference() did not invalidate the leaderboard")
	}
}

func TestAddReference_UnknownKind(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	user, _ := svc.Create(context.Background(), validCreateInput())

	if _, err := svc.AddReference(context.Background(), user.ID, model.RefKind("badge"), "b-1"); !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("AddReference() error = %v, want ErrValidation", err)
	}
}

func TestRemoveReference(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	user, _ := svc.Create(context.Background(), CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
		Projects: []string{"p-1", "p-2"},
	})

	updated, err := svc.RemoveReference(context.Background(), user.ID, model.RefProject, "p-1")
	if err != nil {
		t.Fatalf("RemoveReference() error = %v", err)
	}
	if len(updated.Projects) != 1 || updated.Projects[0] != "p-2" {
		t.Errorf("Projects = %v, want [p-2]", updated.Projects)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	svc, repo, _ := newTestUserService(t)
	if _, err := svc.Create(context.Background(), validCreateInput()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	users, err := svc.List(context.Background(), -5, -10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != len(repo.users) {
		t.Errorf("List() returned %d users, want %d", len(users), len(repo.users))
	}
}
