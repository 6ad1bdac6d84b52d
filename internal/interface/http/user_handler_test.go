package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/delivio/user-service/internal/application"
	"github.com/delivio/user-service/internal/domain/entity"
	"github.com/delivio/user-service/internal/domain/repository"
	"github.com/delivio/user-service/internal/interface/middleware"
	"github.com/delivio/user-service/pkg/helpers"
	"github.com/delivio/user-service/pkg/validation"
)

// ---- mock collaborators ----

type mockRepo struct {
	findByIDFn       func(id int64) (*entity.User, error)
	findByUsernameFn func(username string) (*entity.User, error)
	findByEmailFn    func(email string) (*entity.User, error)
	createFn         func(u *entity.User) error
	updatePasswordFn func(id int64, hash string) error
	updateProfileFn  func(id int64, name, phone, location string) (*entity.User, error)
}

func (m *mockRepo) FindByID(_ context.Context, id int64) (*entity.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(username)
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(email)
	}
	return nil, repository.ErrNotFound
}

func (m *mockRepo) Create(_ context.Context, u *entity.User) error {
	if m.createFn != nil {
		return m.createFn(u)
	}
	u.ID = 1
	u.JoinedAt = time.Now()
	return nil
}

func (m *mockRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(id, hash)
	}
	return nil
}

func (m *mockRepo) UpdateProfile(_ context.Context, id int64, name, phone, location string) (*entity.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(id, name, phone, location)
	}
	return nil, repository.ErrNotFound
}

type mockCache struct {
	entries map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{entries: make(map[string][]byte)} }

func (m *mockCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	b, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *mockCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = b
	return nil
}

type mockPublisher struct {
	queues []string
}

func (m *mockPublisher) PublishJSON(_ context.Context, queue string, _ any) error {
	m.queues = append(m.queues, queue)
	return nil
}

// ---- helpers ----

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func fakeAuthUser(id int64, username string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxUserKey, &middleware.CurrentUser{ID: id, Username: username})
		c.Next()
	}
}

func newTestRouter(repo repository.UserRepository, authUser gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validation.Init()
	svc := userapp.NewService(repo, newMockCache(), &mockPublisher{}, quietLogger(), nil, "", 300*time.Second, "courier-provisioning")
	h := NewUserHandler(svc, quietLogger())

	r := gin.New()
	v1 := r.Group("/user-service/api/v1")
	v1.POST("/create-user/", h.CreateUser)
	v1.GET("/get-user/:id/", h.GetUser)
	v1.GET("/get-user-by-username-password/:username/:password", h.GetUserByUsernamePassword)
	v1.GET("/get-user-by-username/:username", h.GetUserByUsername)

	auth := v1.Group("/")
	if authUser != nil {
		auth.Use(authUser)
	}
	auth.PATCH("/update-password/", h.UpdatePassword)
	auth.PATCH("/update-profile/", h.UpdateProfile)
	return r
}

func doRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"username": "alice", "password": "password1", "name": "Alice",
		"email": "a@x.com", "phone_number": "555", "location": "NY",
	}
}

func aliceRow(t *testing.T, password string) *entity.User {
	t.Helper()
	hash, err := helpers.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &entity.User{
		ID: 42, Username: "alice", Email: "a@x.com", Password: hash,
		PhoneNumber: "555", Name: "Alice", Location: "NY",
		Role: entity.RoleStandard, JoinedAt: time.Now(),
	}
}

// ---- tests ----

func TestCreateUserEchoesRequest(t *testing.T) {
	router := newTestRouter(&mockRepo{}, nil)

	w := doRequest(router, http.MethodPost, "/user-service/api/v1/create-user/", validCreateBody())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	// the contract echoes the raw request, password included
	if resp["password"] != "password1" {
		t.Fatalf("expected echoed raw password, got %v", resp["password"])
	}
	if resp["username"] != "alice" {
		t.Fatalf("unexpected echo: %v", resp)
	}
}

func TestCreateUserDuplicateEmailIs403(t *testing.T) {
	repo := &mockRepo{findByEmailFn: func(string) (*entity.User, error) {
		return &entity.User{ID: 1, Email: "a@x.com"}, nil
	}}
	router := newTestRouter(repo, nil)

	w := doRequest(router, http.MethodPost, "/user-service/api/v1/create-user/", validCreateBody())
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "user already exists") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestCreateUserInvalidPayloadIs400(t *testing.T) {
	router := newTestRouter(&mockRepo{}, nil)

	body := validCreateBody()
	delete(body, "email")
	w := doRequest(router, http.MethodPost, "/user-service/api/v1/create-user/", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetUserRedactsPassword(t *testing.T) {
	row := aliceRow(t, "pw1")
	repo := &mockRepo{findByIDFn: func(id int64) (*entity.User, error) {
		if id != 42 {
			return nil, repository.ErrNotFound
		}
		return row, nil
	}}
	router := newTestRouter(repo, nil)

	w := doRequest(router, http.MethodGet, "/user-service/api/v1/get-user/42/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if v, ok := resp["password"]; !ok || v != nil {
		t.Fatalf("expected password:null, got %v (present=%v)", v, ok)
	}
	if resp["username"] != "alice" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestGetUserNotFoundIs404(t *testing.T) {
	router := newTestRouter(&mockRepo{}, nil)

	w := doRequest(router, http.MethodGet, "/user-service/api/v1/get-user/7/", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetUserBadIDIs400(t *testing.T) {
	router := newTestRouter(&mockRepo{}, nil)

	w := doRequest(router, http.MethodGet, "/user-service/api/v1/get-user/abc/", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetUserByUsernamePasswordFlow(t *testing.T) {
	row := aliceRow(t, "pw1")
	repo := &mockRepo{findByUsernameFn: func(username string) (*entity.User, error) {
		if username != "alice" {
			return nil, repository.ErrNotFound
		}
		return row, nil
	}}
	router := newTestRouter(repo, nil)

	w := doRequest(router, http.MethodGet, "/user-service/api/v1/get-user-by-username-password/alice/pw1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"password":null`) {
		t.Fatalf("expected redacted view, got %s", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/user-service/api/v1/get-user-by-username-password/alice/wrong", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/user-service/api/v1/get-user-by-username-password/bob/pw1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUpdatePassword(t *testing.T) {
	row := aliceRow(t, "old-pass")
	repo := &mockRepo{findByIDFn: func(int64) (*entity.User, error) { return row, nil }}
	router := newTestRouter(repo, fakeAuthUser(42, "alice"))

	w := doRequest(router, http.MethodPatch, "/user-service/api/v1/update-password/", map[string]string{
		"old_password": "old-pass", "new_password": "new-pass-1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "password updated successfully") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	w = doRequest(router, http.MethodPatch, "/user-service/api/v1/update-password/", map[string]string{
		"old_password": "wrong", "new_password": "new-pass-1",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestUpdatePasswordWithoutAuthIs401(t *testing.T) {
	router := newTestRouter(&mockRepo{}, nil)

	w := doRequest(router, http.MethodPatch, "/user-service/api/v1/update-password/", map[string]string{
		"old_password": "a-password", "new_password": "b-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	repo := &mockRepo{updateProfileFn: func(id int64, name, phone, location string) (*entity.User, error) {
		if id != 42 {
			return nil, repository.ErrNotFound
		}
		u := &entity.User{ID: id, Username: "alice", Name: name, PhoneNumber: phone, Location: location}
		return u, nil
	}}
	router := newTestRouter(repo, fakeAuthUser(42, "alice"))

	w := doRequest(router, http.MethodPatch, "/user-service/api/v1/update-profile/", map[string]string{
		"name": "Alice B", "phone_number": "556", "location": "LA",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp["name"] != "Alice B" || resp["phone_number"] != "556" || resp["location"] != "LA" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestUpdateProfileUserGoneIs404(t *testing.T) {
	router := newTestRouter(&mockRepo{}, fakeAuthUser(42, "alice"))

	w := doRequest(router, http.MethodPatch, "/user-service/api/v1/update-profile/", map[string]string{
		"name": "Alice B", "phone_number": "556", "location": "LA",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
