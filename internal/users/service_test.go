package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, clock func() time.Time) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:users_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("failed to migrate account schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock,
		HashCost:   bcrypt.MinCost,
		NewTokenID: func() string { return "reset-token-1" },
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func fixedClock(seconds int64) func() time.Time {
	return func() time.Time {
		return time.Unix(seconds, 0)
	}
}

func TestSignUpThenLogin(t *testing.T) {
	service := newTestService(t, fixedClock(1700000000))
	ctx := context.Background()

	created, err := service.SignUp(ctx, SignUpRequest{Email: " Viewer@Example.com ", Password: "secret1", DisplayName: "Viewer"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if created.UserID == "" || created.Email != "viewer@example.com" {
		t.Fatalf("unexpected session: %#v", created)
	}

	loggedIn, err := service.Login(ctx, "viewer@example.com", "secret1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loggedIn.UserID != created.UserID || loggedIn.DisplayName != "Viewer" {
		t.Fatalf("unexpected login session: %#v", loggedIn)
	}
}

func TestSignUpRejectsInvalidInput(t *testing.T) {
	service := newTestService(t, fixedClock(1700000000))
	ctx := context.Background()
	if _, err := service.SignUp(ctx, SignUpRequest{Email: "taken@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("seed signup failed: %v", err)
	}

	testCases := []struct {
		name     string
		request  SignUpRequest
		expected error
	}{
		{name: "invalid email", request: SignUpRequest{Email: "not-an-email", Password: "secret1"}, expected: ErrInvalidEmail},
		{name: "weak password", request: SignUpRequest{Email: "new@example.com", Password: "123"}, expected: ErrWeakPassword},
		{name: "duplicate email", request: SignUpRequest{Email: "TAKEN@example.com", Password: "secret1"}, expected: ErrEmailAlreadyRegistered},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := service.SignUp(ctx, testCase.request)
			if !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	service := newTestService(t, fixedClock(1700000000))
	ctx := context.Background()
	if _, err := service.SignUp(ctx, SignUpRequest{Email: "viewer@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if _, err := service.Login(ctx, "viewer@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := service.Login(ctx, "missing@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	now := int64(1700000000)
	clock := func() time.Time { return time.Unix(now, 0) }
	service := newTestService(t, clock)
	ctx := context.Background()
	if _, err := service.SignUp(ctx, SignUpRequest{Email: "viewer@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	token, err := service.RequestPasswordReset(ctx, "viewer@example.com")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	if token != "reset-token-1" {
		t.Fatalf("unexpected reset token %q", token)
	}

	if err := service.ResetPassword(ctx, "wrong-token", "newsecret"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
	if err := service.ResetPassword(ctx, token, "newsecret"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := service.Login(ctx, "viewer@example.com", "newsecret"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
	if err := service.ResetPassword(ctx, token, "another1"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected reset token to be single use, got %v", err)
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	now := int64(1700000000)
	clock := func() time.Time { return time.Unix(now, 0) }
	service := newTestService(t, clock)
	ctx := context.Background()
	if _, err := service.SignUp(ctx, SignUpRequest{Email: "viewer@example.com", Password: "secret1"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	token, err := service.RequestPasswordReset(ctx, "viewer@example.com")
	if err != nil {
		t.Fatalf("reset request failed: %v", err)
	}

	now += int64((2 * time.Hour).Seconds())
	if err := service.ResetPassword(ctx, token, "newsecret"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestPasswordResetForUnknownEmailIsSilent(t *testing.T) {
	service := newTestService(t, fixedClock(1700000000))

	token, err := service.RequestPasswordReset(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected no token for unknown email, got %q", token)
	}
}

func TestUpdateProfile(t *testing.T) {
	service := newTestService(t, fixedClock(1700000000))
	ctx := context.Background()
	created, err := service.SignUp(ctx, SignUpRequest{Email: "viewer@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	displayName := "Night Owl"
	photoURL := "https://cdn.example.com/profile_photos/a.png"
	updated, err := service.UpdateProfile(ctx, created.UserID, ProfileUpdate{DisplayName: &displayName, PhotoURL: &photoURL})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.DisplayName != displayName || updated.PhotoURL != photoURL {
		t.Fatalf("unexpected updated session: %#v", updated)
	}

	if _, err := service.UpdateProfile(ctx, "missing", ProfileUpdate{DisplayName: &displayName}); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionHolder(t *testing.T) {
	holder := NewSessionHolder(nil)
	if holder.CurrentSession().Authenticated() {
		t.Fatalf("expected empty holder to be unauthenticated")
	}
	holder.Set(&Session{UserID: "user-1"})
	session := holder.CurrentSession()
	if !session.Authenticated() {
		t.Fatalf("expected session after set")
	}
	session.UserID = "mutated"
	if holder.CurrentSession().UserID != "user-1" {
		t.Fatalf("expected holder to hand out copies")
	}
	if holder.CurrentSession().NameOrAnonymous() != "Anonymous" {
		t.Fatalf("expected anonymous fallback")
	}
	holder.Clear()
	if holder.CurrentSession() != nil {
		t.Fatalf("expected nil session after clear")
	}
}
