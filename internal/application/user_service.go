package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/delivio/user-service/internal/domain/entity"
	"github.com/delivio/user-service/internal/domain/repository"
	"github.com/delivio/user-service/pkg/helpers"
)

var (
	ErrUserExists       = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrPasswordMismatch = errors.New("passwords didn't match")
)

// Cache is the TTL'd JSON key-value gateway used on the read paths.
// A get error must be treated as a miss by callers.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Publisher delivers a JSON payload to a named durable queue.
type Publisher interface {
	PublishJSON(ctx context.Context, queue string, body any) error
}

const publishTimeout = 5 * time.Second

// UserView is the redacted projection exposed by the read paths. Password is
// serialized as an explicit null so cached values, queue messages, and HTTP
// responses stay byte-compatible.
type UserView struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Name        string  `json:"name"`
	PhoneNumber string  `json:"phone_number"`
	Password    *string `json:"password"`
}

type CreateUserInput struct {
	Username    string
	Password    string
	Name        string
	Email       string
	PhoneNumber string
	Role        string
	Location    string
}

type UpdateProfileInput struct {
	Name        string
	PhoneNumber string
	Location    string
}

// Profile is the response shape of the profile update path.
type Profile struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Location    string `json:"location"`
}

// CourierProvisionJob is the payload queued for the courier worker when a
// user registers with the courier role.
type CourierProvisionJob struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Service orchestrates the user use cases over the repository, the cache
// gateway, and the notification publisher. Every collaborator is injected at
// construction; none is optional except Elasticsearch.
type Service struct {
	Repo         repository.UserRepository
	Cache        Cache
	Publisher    Publisher
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	CacheTTL     time.Duration
	CourierQueue string
}

func NewService(repo repository.UserRepository, cache Cache, pub Publisher, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, cacheTTL time.Duration, courierQueue string) *Service {
	return &Service{
		Repo:         repo,
		Cache:        cache,
		Publisher:    pub,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		CacheTTL:     cacheTTL,
		CourierQueue: courierQueue,
	}
}

// Cache keys double as the queue names consumed downstream; both are part of
// the wire contract.
func keyUserByID(id int64) string {
	return fmt.Sprintf("get-user-%d", id)
}

func keyUserByUsername(username string) string {
	return "get-user-by-username-" + username
}

func redact(u *entity.User) *UserView {
	return &UserView{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		PhoneNumber: u.PhoneNumber,
	}
}

// publish sends body to the named queue, best-effort. Notifications are
// telemetry for downstream consumers, never part of the primary transaction,
// so failures are logged and swallowed and the timeout is independent of the
// caller's deadline.
func (s *Service) publish(ctx context.Context, queue string, body any) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.Publisher.PublishJSON(ctx, queue, body); err != nil {
		s.Logger.WithError(err).WithField("queue", queue).Warn("publish failed")
	}
}

// CreateUser registers a new user. The email existence pre-check races with
// concurrent creates; the unique constraint in the schema backs it up and
// surfaces as ErrUserExists as well.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) error {
	if _, err := s.Repo.FindByEmail(ctx, in.Email); err == nil {
		s.Logger.WithField("username", in.Username).Info("user already exists")
		return ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return err
	}

	u := &entity.User{
		Username:    in.Username,
		Email:       in.Email,
		Password:    hash,
		PhoneNumber: in.PhoneNumber,
		Name:        in.Name,
		Location:    in.Location,
		Role:        in.Role,
	}
	if u.Role == "" {
		u.Role = entity.RoleStandard
	}

	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrUserExists
		}
		return err
	}

	if u.Role == entity.RoleCourier {
		s.Logger.WithField("username", u.Username).Info("queueing courier profile provisioning")
		s.publish(ctx, s.CourierQueue, CourierProvisionJob{UserID: u.ID, Username: u.Username})
	}

	_ = s.indexUser(ctx, u)
	return nil
}

// GetUserByID resolves a user through the cache-aside path keyed by
// "get-user-{id}". Every successful resolution, hit or miss, is published to
// the queue of the same name.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*UserView, error) {
	return s.getCached(ctx, keyUserByID(id), func() (*entity.User, error) {
		return s.Repo.FindByID(ctx, id)
	})
}

// GetUserByUsername mirrors GetUserByID, keyed by
// "get-user-by-username-{username}".
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*UserView, error) {
	return s.getCached(ctx, keyUserByUsername(username), func() (*entity.User, error) {
		return s.Repo.FindByUsername(ctx, username)
	})
}

func (s *Service) getCached(ctx context.Context, key string, fetch func() (*entity.User, error)) (*UserView, error) {
	var cached UserView
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		// degrade to a repository read
		s.Logger.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	if hit {
		s.publish(ctx, key, &cached)
		return &cached, nil
	}

	u, err := fetch()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	view := redact(u)
	if err := s.Cache.SetJSON(ctx, key, view, s.CacheTTL); err != nil {
		s.Logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	s.publish(ctx, key, view)
	return view, nil
}

// GetUserByUsernamePassword verifies credentials against the stored hash.
// The cache is always bypassed here; the hash must be read fresh.
func (s *Service) GetUserByUsernamePassword(ctx context.Context, username, password string) (*UserView, error) {
	u, err := s.Repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if !helpers.CompareHashAndPassword(u.Password, password) {
		s.Logger.WithField("username", username).Info("user password error")
		return nil, ErrPasswordMismatch
	}

	view := redact(u)
	s.publish(ctx, keyUserByUsername(u.Username), view)
	return view, nil
}

// UpdatePassword rotates the stored hash after verifying the old password.
// No cache invalidation and no publish: the cached view never contains the
// hash, and password changes are not broadcast.
func (s *Service) UpdatePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	u, err := s.Repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if !helpers.CompareHashAndPassword(u.Password, oldPassword) {
		s.Logger.WithField("user_id", userID).Info("passwords didn't match")
		return ErrPasswordMismatch
	}

	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.Logger.WithField("user_id", userID).Info("password updated")
	return nil
}

// UpdateProfile overwrites the mutable profile fields of the current user.
// Cached read views go stale until their TTL expires; see the design notes.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileInput) (*Profile, error) {
	u, err := s.Repo.UpdateProfile(ctx, userID, in.Name, in.PhoneNumber, in.Location)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	_ = s.indexUser(ctx, u)
	return &Profile{Name: u.Name, PhoneNumber: u.PhoneNumber, Location: u.Location}, nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"email":        u.Email,
		"name":         u.Name,
		"phone_number": u.PhoneNumber,
		"location":     u.Location,
		"role":         u.Role,
		"joined_at":    u.JoinedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: strconv.FormatInt(u.ID, 10), Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a multi_match search on username, name, and email.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^2", "name", "email"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
