package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dsampson94/community-recruit/internal/apperror"
	"github.com/dsampson94/community-recruit/internal/auth"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/notify"
	"github.com/dsampson94/community-recruit/internal/repository"
)

// mockUserRepo is an in-memory UserRepository. It mirrors the store's
// contract (uniqueness, NotFound, idempotent reference adds) closely enough
// for service tests without touching SQLite.
type mockUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	snapshotErr   error
	snapshotCalls int
	savedRanks    map[string]int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	clone := *u
	clone.Skills = append([]string{}, u.Skills...)
	clone.Projects = append([]string{}, u.Projects...)
	clone.EventsAttended = append([]string{}, u.EventsAttended...)
	return &clone
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username {
			return apperror.Conflict("username", user.Username)
		}
		if existing.Email == user.Email {
			return apperror.Conflict("email", user.Email)
		}
	}

	m.nextID++
	user.ID = fmt.Sprintf("user-%03d", m.nextID)
	// Spaced timestamps keep creation order unambiguous for ranking tests.
	user.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.nextID) * time.Minute)
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return cloneUser(user), nil
}

func (m *mockUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockUserRepo) ListUsers(_ context.Context, opts repository.ListOptions) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := []model.User{}
	for _, user := range m.users {
		users = append(users, *cloneUser(user))
	}
	return users, nil
}

func (m *mockUserRepo) UpdateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	for id, existing := range m.users {
		if id == user.ID {
			continue
		}
		if existing.Username == user.Username {
			return apperror.Conflict("username", user.Username)
		}
		if existing.Email == user.Email {
			return apperror.Conflict("email", user.Email)
		}
	}
	// Same optimistic version discipline as the SQLite store.
	if user.Version != stored.Version {
		return apperror.ConcurrentModification("user", user.ID)
	}

	updated := cloneUser(user)
	updated.Skills = stored.Skills
	updated.Projects = stored.Projects
	updated.EventsAttended = stored.EventsAttended
	updated.Version = stored.Version + 1
	updated.UpdatedAt = time.Now()
	m.users[user.ID] = updated
	user.Version = updated.Version
	return nil
}

func (m *mockUserRepo) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) AddReference(_ context.Context, userID string, kind model.RefKind, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	for _, id := range user.Refs(kind) {
		if id == entityID {
			return nil
		}
	}
	switch kind {
	case model.RefSkill:
		user.Skills = append(user.Skills, entityID)
	case model.RefProject:
		user.Projects = append(user.Projects, entityID)
	case model.RefEvent:
		user.EventsAttended = append(user.EventsAttended, entityID)
	}
	return nil
}

func (m *mockUserRepo) RemoveReference(_ context.Context, userID string, kind model.RefKind, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	refs := user.Refs(kind)
	for i, id := range refs {
		if id == entityID {
			refs = append(refs[:i], refs[i+1:]...)
			break
		}
	}
	switch kind {
	case model.RefSkill:
		user.Skills = refs
	case model.RefProject:
		user.Projects = refs
	case model.RefEvent:
		user.EventsAttended = refs
	}
	return nil
}

func (m *mockUserRepo) MetricsSnapshot(_ context.Context) ([]repository.SnapshotRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshotCalls++
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}

	rows := []repository.SnapshotRow{}
	for _, user := range m.users {
		rows = append(rows, repository.SnapshotRow{
			UserID:           user.ID,
			Username:         user.Username,
			CreatedAt:        user.CreatedAt,
			GitContributions: user.GitContributions,
			HoursWorked:      user.HoursWorked,
			Breadth:          user.Breadth(),
		})
	}
	return rows, nil
}

func (m *mockUserRepo) SaveRanks(_ context.Context, ranks map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.savedRanks = ranks
	for _, user := range m.users {
		user.LeaderboardRank = ranks[user.ID]
	}
	return nil
}

// mockBoard records Invalidate calls from the user service.
type mockBoard struct {
	mu    sync.Mutex
	calls int
}

func (b *mockBoard) Invalidate() {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
}

func (b *mockBoard) invalidations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// recordingNotifier captures events on a channel so tests can wait for the
// background send.
type recordingNotifier struct {
	events chan notify.Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(chan notify.Event, 8)}
}

func (n *recordingNotifier) Notify(_ context.Context, _, _ string, event notify.Event) {
	n.events <- event
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUserService(t *testing.T) (*UserService, *mockUserRepo, *mockBoard) {
	t.Helper()
	repo := newMockUserRepo()
	board := &mockBoard{}
	svc := NewUserService(repo, auth.NewPasswordServiceForTest(4), notify.Noop{}, board, testLogger())
	return svc, repo, board
}
