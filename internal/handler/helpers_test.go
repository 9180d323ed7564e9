package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/templui/sharebox/internal/ctxkeys"
	"github.com/templui/sharebox/internal/db/dbtest"
	"github.com/templui/sharebox/internal/kvstore"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
	"github.com/templui/sharebox/internal/service"
)

const testPassword = "correct-horse-battery"

type testServer struct {
	root    string
	admin   *model.User
	users   *service.UserService
	groups  *service.GroupService
	files   *service.FileService
	uploads *service.UploadService

	fileHandler     *fileHandler
	groupHandler    *groupHandler
	userHandler     *userHandler
	activityHandler *activityHandler
	authHandler     *authHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database := dbtest.Open(t)
	root := filepath.Join(t.TempDir(), "shared")
	staging := filepath.Join(t.TempDir(), "staging")

	kv, err := kvstore.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	userRepo := repository.NewUserRepository(database)
	groupRepo := repository.NewGroupRepository(database)
	fileRepo := repository.NewFileRepository(database)
	defaults := []string{model.GroupAdministrators, model.GroupUsers, model.GroupGuests}

	email := service.NewEmailService("", "noreply@example.com", "Sharebox", true)
	activity := service.NewActivityService(repository.NewActivityRepository(database))
	access := service.NewAccessService(fileRepo, root)
	files := service.NewFileService(database, fileRepo, groupRepo, userRepo, access, activity, nil, root, defaults)
	uploads := service.NewUploadService(files, staging, 1<<10, 10, time.Hour)
	groups := service.NewGroupService(database, groupRepo, userRepo, activity)
	users := service.NewUserService(database, userRepo, groupRepo, fileRepo, activity, email, kv)
	auth := service.NewAuthService(userRepo, activity, email, kv,
		"handler-secret-0123456789", time.Hour, time.Minute, 3, time.Hour, false)

	admin, err := service.NewBootstrapService(database, userRepo, groupRepo, files).
		Run(context.Background(), "admin", testPassword)
	require.NoError(t, err)

	return &testServer{
		root:            root,
		admin:           admin,
		users:           users,
		groups:          groups,
		files:           files,
		uploads:         uploads,
		fileHandler:     NewFileHandler(files, uploads, 1<<10),
		groupHandler:    NewGroupHandler(groups),
		userHandler:     NewUserHandler(users),
		activityHandler: NewActivityHandler(activity),
		authHandler:     NewAuthHandler(auth),
	}
}

func (s *testServer) createUser(t *testing.T, username string, groups ...string) *model.User {
	t.Helper()
	user, err := s.users.Create(context.Background(), s.admin, service.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Groups:   groups,
	})
	require.NoError(t, err)
	return user
}

// do runs h with user in the context and returns the recorded response.
func do(h http.HandlerFunc, user *model.User, r *http.Request) *httptest.ResponseRecorder {
	if user != nil {
		r = r.WithContext(ctxkeys.WithUser(r.Context(), user))
	}
	w := httptest.NewRecorder()
	h(w, r)
	return w
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, target, buf)
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}
