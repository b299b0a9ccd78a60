package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"task-planner/internal/repository"
)

func newAuthFixture(t *testing.T) (*AuthService, *repository.UserRepository) {
	t.Helper()
	users := repository.NewUserRepository(newTestDB(t))
	return NewAuthService(users, "test-secret", time.Hour), users
}

func TestSignUpValidation(t *testing.T) {
	auth, _ := newAuthFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		in      SignUpInput
		wantErr error
	}{
		{"missing display name", SignUpInput{Email: "a@b.co", Password: "secret1"}, ErrMissingFields},
		{"missing email", SignUpInput{Password: "secret1", DisplayName: "A"}, ErrMissingFields},
		{"short password", SignUpInput{Email: "a@b.co", Password: "123", DisplayName: "A"}, ErrPasswordTooShort},
	}
	for _, tt := range tests {
		_, err := auth.SignUp(ctx, tt.in)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.wantErr)
		}
	}

	if _, err := auth.SignUp(ctx, SignUpInput{Email: "not-an-email", Password: "secret1", DisplayName: "A"}); err == nil {
		t.Error("invalid email accepted")
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	auth, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := auth.SignUp(ctx, SignUpInput{Email: "  Ann@Example.com ", Password: "secret1", DisplayName: "Ann"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if user.Email != "ann@example.com" {
		t.Errorf("email = %q, want normalised", user.Email)
	}
	if _, err := auth.SignUp(ctx, SignUpInput{Email: "ann@example.com", Password: "other12", DisplayName: "B"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate sign up err = %v", err)
	}

	if _, _, err := auth.SignIn(ctx, "ann@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, _, err := auth.SignIn(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v", err)
	}
	if _, _, err := auth.SignIn(ctx, "", ""); !errors.Is(err, ErrMissingFields) {
		t.Errorf("empty fields err = %v", err)
	}

	token, signedIn, err := auth.SignIn(ctx, "ANN@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if signedIn.ID != user.ID {
		t.Fatalf("signed in as %s, want %s", signedIn.ID, user.ID)
	}
	current, err := auth.CurrentUser(ctx, token)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if current.ID != user.ID {
		t.Errorf("current user = %s", current.ID)
	}
}

func TestSessionExpiresAndRevokes(t *testing.T) {
	auth, users := newAuthFixture(t)
	ctx := context.Background()

	if _, err := auth.SignUp(ctx, SignUpInput{Email: "s@example.com", Password: "secret1", DisplayName: "S"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	token, user, err := auth.SignIn(ctx, "s@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := auth.RegisterDevice(ctx, user, 42); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}

	if _, err := auth.CurrentUser(ctx, "garbage"); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("garbage token err = %v", err)
	}

	base := time.Now()
	auth.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := auth.CurrentUser(ctx, token); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("expired token err = %v", err)
	}
	auth.now = time.Now

	if err := auth.SignOut(ctx, token, 42); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := auth.CurrentUser(ctx, token); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("revoked token err = %v", err)
	}
	devices, err := users.ListDevices(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("devices after sign out = %d", len(devices))
	}
}

func TestUpdateProfile(t *testing.T) {
	auth, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := auth.SignUp(ctx, SignUpInput{Email: "p@example.com", Password: "secret1", DisplayName: "Old"})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	// too short to count as a new password
	if err := auth.UpdateProfile(ctx, user, "New", "123"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.DisplayName != "New" {
		t.Errorf("display name = %q", user.DisplayName)
	}
	if _, _, err := auth.SignIn(ctx, "p@example.com", "secret1"); err != nil {
		t.Fatalf("old password rejected: %v", err)
	}

	if err := auth.UpdateProfile(ctx, user, "", "brand-new"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if _, _, err := auth.SignIn(ctx, "p@example.com", "brand-new"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if user.DisplayName != "New" {
		t.Errorf("empty display name overwrote the old one: %q", user.DisplayName)
	}

	if err := auth.UpdateProfile(ctx, nil, "x", ""); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("nil user err = %v", err)
	}
}
