package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// minProfilePasswordLen mirrors the sign-up minimum: shorter values in a profile update are ignored.
const minProfilePasswordLen = 6

// SignUpInput is the registration form.
type SignUpInput struct {
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=6"`
	DisplayName string `validate:"required"`
}

// SessionClaims is the payload of a session token.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService owns accounts, sessions and the chats that receive a user's notifications.
type AuthService struct {
	users    *repository.UserRepository
	secret   []byte
	ttl      time.Duration
	validate *validator.Validate
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewAuthService(users *repository.UserRepository, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthService{
		users:    users,
		secret:   []byte(secret),
		ttl:      ttl,
		validate: validator.New(),
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

// SignUp creates an account. The caller still has to sign in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if err := s.validate.Struct(in); err != nil {
		return nil, signUpError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to hash password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		DisplayName:  in.DisplayName,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	logger.InfoContext(ctx, "User signed up", "user_id", user.ID)
	return &user, nil
}

// SignIn checks credentials and issues a session token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrMissingFields
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.WarnContext(ctx, "Login failed - invalid password", "user_id", user.ID)
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// CurrentUser resolves a session token to its user.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotSignedIn
		}
		return nil, err
	}
	return user, nil
}

// SignOut revokes the token and detaches the chat from the user's devices.
func (s *AuthService) SignOut(ctx context.Context, token string, chatID int64) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}

	expires := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	s.mu.Lock()
	s.revoked[claims.ID] = expires
	s.pruneLocked()
	s.mu.Unlock()

	return s.users.RemoveDevice(ctx, claims.UserID, chatID)
}

// RegisterDevice makes chatID receive the user's notifications.
func (s *AuthService) RegisterDevice(ctx context.Context, user *model.User, chatID int64) error {
	return s.users.AddDevice(ctx, user.ID, chatID)
}

// UpdateProfile renames the user and, when newPassword is long enough, replaces the password.
func (s *AuthService) UpdateProfile(ctx context.Context, user *model.User, displayName, newPassword string) error {
	if user == nil {
		return ErrNotSignedIn
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == user.DisplayName {
		displayName = ""
	}

	var hash string
	if len(newPassword) >= minProfilePasswordLen {
		raw, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		hash = string(raw)
	}

	if err := s.users.UpdateProfile(ctx, user.ID, displayName, hash); err != nil {
		return err
	}
	if displayName != "" {
		user.DisplayName = displayName
	}
	if hash != "" {
		user.PasswordHash = hash
	}
	return nil
}

func (s *AuthService) issue(user *model.User) (string, error) {
	now := s.now()
	claims := SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

func (s *AuthService) parse(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrNotSignedIn
	}
	parsed, err := jwt.ParseWithClaims(token, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrNotSignedIn
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrNotSignedIn
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrNotSignedIn
	}
	return claims, nil
}

func (s *AuthService) pruneLocked() {
	now := s.now()
	for id, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, id)
		}
	}
}

func signUpError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		switch {
		case fe.Tag() == "required":
			return ErrMissingFields
		case fe.Field() == "Password":
			return ErrPasswordTooShort
		case fe.Field() == "Email":
			return fmt.Errorf("invalid email address %q", fe.Value())
		}
	}
	return err
}
