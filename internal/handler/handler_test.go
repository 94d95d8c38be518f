package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dsampson94/community-recruit/internal/auth"
	"github.com/dsampson94/community-recruit/internal/model"
	"github.com/dsampson94/community-recruit/internal/notify"
	"github.com/dsampson94/community-recruit/internal/repository/sqlite"
	"github.com/dsampson94/community-recruit/internal/score"
	"github.com/dsampson94/community-recruit/internal/service"
)

// testEnv wires handlers over a real in-memory store so handler tests cover
// the full request path: routing values, services, SQLite, and the error
// mapping back to status codes.
type testEnv struct {
	users       *UserHandler
	entities    *EntityHandler
	leaderboard *LeaderboardHandler

	userSvc   *service.UserService
	entitySvc *service.EntityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	boardSvc := service.NewLeaderboardService(db, score.DefaultWeights, logger)
	userSvc := service.NewUserService(db, auth.NewPasswordServiceForTest(4), notify.Noop{}, boardSvc, logger)
	entitySvc := service.NewEntityService(db, logger)

	return &testEnv{
		users:       NewUserHandler(userSvc, logger),
		entities:    NewEntityHandler(entitySvc, logger),
		leaderboard: NewLeaderboardHandler(boardSvc, logger),
		userSvc:     userSvc,
		entitySvc:   entitySvc,
	}
}

func (env *testEnv) createUser(t *testing.T, input service.CreateUserInput) *model.User {
	t.Helper()
	user, err := env.userSvc.Create(context.Background(), input)
	require.NoError(t, err)
	return user
}

func (env *testEnv) createEntity(t *testing.T, kind model.RefKind, name string) *model.Entity {
	t.Helper()
	entity, err := env.entitySvc.Create(context.Background(), kind, name)
	require.NoError(t, err)
	return entity
}

// newRequest builds a request with JSON body and the given path values. An
// empty actingUserID leaves the request anonymous.
func newRequest(t *testing.T, method, target string, body any, actingUserID string, pathValues map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	if actingUserID != "" {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), actingUserID))
	}
	if len(pathValues) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range pathValues {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}
