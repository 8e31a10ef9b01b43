package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/auth"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/metrics"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
	"github.com/DEEKSHA240406/stress-management-sub001/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	maxUsernameLength = 254
	maxNameLength     = 100

	// dummyPassword is hashed once at startup so failed lookups can run a
	// comparison of the same cost as a real one.
	dummyPassword = "dummy-password-for-timing"
)

// AuthServiceProvider defines the interface for the credential authenticator.
type AuthServiceProvider interface {
	Register(ctx context.Context, username, password string, opts ...RegisterOption) (models.User, error)
	Login(ctx context.Context, username, password string) (Session, error)
	Verify(ctx context.Context, token string) (string, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SeedTestUsers(ctx context.Context) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// EventRecorder records audit events.
type EventRecorder interface {
	CreateEvent(eventType, level, message, userID string) error
}

// AuthService registers users, logs them in and verifies their tokens.
type AuthService struct {
	users     store.UserStore
	hasher    auth.PasswordHasher
	tokens    *auth.TokenManager
	policy    auth.PasswordPolicy
	events    EventRecorder
	metrics   *metrics.Metrics
	now       func() time.Time
	dummyHash string
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithEventRecorder records register and login events on r.
func WithEventRecorder(r EventRecorder) AuthOption {
	return func(s *AuthService) { s.events = r }
}

// WithMetrics reports operation outcomes to m.
func WithMetrics(m *metrics.Metrics) AuthOption {
	return func(s *AuthService) { s.metrics = m }
}

// WithTimeSource overrides the clock used for record timestamps.
func WithTimeSource(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(users store.UserStore, hasher auth.PasswordHasher, tokens *auth.TokenManager, policy auth.PasswordPolicy, opts ...AuthOption) (*AuthService, error) {
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s := &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		policy:    policy,
		now:       time.Now,
		dummyHash: dummyHash,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type registerOptions struct {
	name string
	role string
}

// RegisterOption sets optional fields on a new user.
type RegisterOption func(*registerOptions)

// WithName sets the display name.
func WithName(name string) RegisterOption {
	return func(o *registerOptions) { o.name = name }
}

// WithRole sets the role. Public registration never passes it.
func WithRole(role string) RegisterOption {
	return func(o *registerOptions) { o.role = role }
}

// NormalizeUsername trims surrounding whitespace and lower-cases username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", auth.ErrInvalidInput)
	}
	if len([]rune(username)) > maxUsernameLength {
		return fmt.Errorf("%w: username must be at most %d characters", auth.ErrInvalidInput, maxUsernameLength)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: username must not contain whitespace", auth.ErrInvalidInput)
	}
	return nil
}

// Register creates a new user. The returned record carries no password hash.
func (s *AuthService) Register(ctx context.Context, username, password string, opts ...RegisterOption) (models.User, error) {
	start := time.Now()
	user, err := s.register(ctx, username, password, opts...)
	s.metrics.RecordAuth(metrics.OpRegister, outcomeOf(err), time.Since(start))
	if err != nil {
		return models.User{}, err
	}

	s.metrics.IncUsers()
	s.recordEvent(models.EventRegister, "info", fmt.Sprintf("User %s registered", user.Username), user.ID)
	return user, nil
}

func (s *AuthService) register(ctx context.Context, username, password string, opts ...RegisterOption) (models.User, error) {
	o := registerOptions{role: models.RoleStudent}
	for _, opt := range opts {
		opt(&o)
	}

	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return models.User{}, err
	}
	if err := s.policy.Validate(password); err != nil {
		return models.User{}, err
	}
	name := strings.TrimSpace(o.name)
	if len([]rune(name)) > maxNameLength {
		return models.User{}, fmt.Errorf("%w: name must be at most %d characters", auth.ErrInvalidInput, maxNameLength)
	}
	if o.role != models.RoleStudent && o.role != models.RoleAdmin {
		return models.User{}, fmt.Errorf("%w: unknown role %q", auth.ErrInvalidInput, o.role)
	}

	// InsertIfAbsent below is the authoritative uniqueness check.
	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return models.User{}, auth.ErrDuplicateUser
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, err
	}

	now := s.now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Username:     username,
		Name:         name,
		Role:         o.role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.InsertIfAbsent(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, auth.ErrDuplicateUser
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user.Sanitized(), nil
}

// Login checks the credentials and issues a session token. Unknown users and
// wrong passwords both yield auth.ErrAuthentication.
func (s *AuthService) Login(ctx context.Context, username, password string) (Session, error) {
	start := time.Now()
	session, err := s.login(ctx, username, password)
	s.metrics.RecordAuth(metrics.OpLogin, outcomeOf(err), time.Since(start))

	switch {
	case err == nil:
		s.recordEvent(models.EventLoginSuccess, "info",
			fmt.Sprintf("User %s logged in", session.User.Username), session.User.ID)
	case errors.Is(err, auth.ErrAuthentication):
		s.recordEvent(models.EventLoginFail, "warn",
			fmt.Sprintf("Failed login for %s", NormalizeUsername(username)), "")
	}
	return session, err
}

func (s *AuthService) login(ctx context.Context, username, password string) (Session, error) {
	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return Session{}, fmt.Errorf("%w: username and password are required", auth.ErrInvalidInput)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		s.burnComparison(password)
		return Session{}, auth.ErrAuthentication
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if len(password) > auth.MaxPasswordBytes {
		s.burnComparison(password)
		return Session{}, auth.ErrAuthentication
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, auth.ErrAuthentication
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expiresAt, User: user.Sanitized()}, nil
}

// burnComparison spends the time of a real password check.
func (s *AuthService) burnComparison(password string) {
	if len(password) > auth.MaxPasswordBytes {
		password = password[:auth.MaxPasswordBytes]
	}
	_, _ = s.hasher.Verify(password, s.dummyHash)
}

// Verify validates token and returns the user id it was issued for.
func (s *AuthService) Verify(_ context.Context, token string) (string, error) {
	start := time.Now()
	claims, err := s.tokens.Parse(token)
	s.metrics.RecordAuth(metrics.OpVerify, outcomeOf(err), time.Since(start))
	if err != nil {
		return "", err
	}
	return claims.UserID(), nil
}

// GetUser returns the user with id, without its password hash.
func (s *AuthService) GetUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user.Sanitized(), nil
}

// ListUsers returns every user without password hashes.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, nil
}

type seedUser struct {
	username string
	password string
	name     string
	role     string
}

var testUsers = []seedUser{
	{"student@test.com", "Password123", "Test Student", models.RoleStudent},
	{"admin@test.com", "Admin12345", "Test Admin", models.RoleAdmin},
}

// SeedTestUsers registers the development accounts, skipping ones that exist.
func (s *AuthService) SeedTestUsers(ctx context.Context) error {
	for _, u := range testUsers {
		_, err := s.Register(ctx, u.username, u.password, WithName(u.name), WithRole(u.role))
		if errors.Is(err, auth.ErrDuplicateUser) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", u.username, err)
		}
		log.Info().Str("username", u.username).Str("role", u.role).Msg("Seeded test user")
	}
	return nil
}

func (s *AuthService) recordEvent(eventType, level, message, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.CreateEvent(eventType, level, message, userID); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("Failed to record auth event")
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, auth.ErrInvalidInput):
		return metrics.OutcomeInvalid
	case errors.Is(err, auth.ErrDuplicateUser):
		return metrics.OutcomeDuplicate
	case errors.Is(err, auth.ErrAuthentication), errors.Is(err, auth.ErrInvalidToken):
		return metrics.OutcomeDenied
	case errors.Is(err, auth.ErrExpiredToken):
		return metrics.OutcomeExpired
	default:
		return metrics.OutcomeError
	}
}
