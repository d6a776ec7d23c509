package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cinetrack/backend/internal/users"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "cinetrack_session"
	testSessionIssuer        = "cinetrack-auth"
	testSessionAudience      = "cinetrack-api"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "user@example.com"
)

func newTestPair(t *testing.T, now func() time.Time) (*TokenIssuer, *SessionValidator) {
	t.Helper()
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		Audience:      testSessionAudience,
		TokenTTL:      30 * time.Minute,
		Clock:         now,
	})
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		Issuer:        testSessionIssuer,
		Audience:      testSessionAudience,
		CookieName:    testSessionCookieName,
		Clock:         now,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return issuer, validator
}

func TestIssuedTokenRoundTripsSession(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	issuer, validator := newTestPair(t, func() time.Time { return clockNow })

	session := users.Session{
		UserID:      testSessionUserID,
		DisplayName: "Viewer",
		Email:       testSessionUserEmail,
		PhotoURL:    "https://cdn.example.com/p.png",
	}
	token, expiresIn, err := issuer.IssueSessionToken(context.Background(), session)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry %d", expiresIn)
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.Session() != session {
		t.Fatalf("unexpected session from claims: %#v", claims.Session())
	}
}

func TestIssueSessionTokenRequiresUser(t *testing.T) {
	issuer, _ := newTestPair(t, time.Now)

	if _, _, err := issuer.IssueSessionToken(context.Background(), users.Session{}); err == nil {
		t.Fatalf("expected missing subject error")
	}
}

func TestSessionValidatorRejectsExpiredToken(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	issuer, _ := newTestPair(t, func() time.Time { return clockNow })
	_, validator := newTestPair(t, func() time.Time { return clockNow.Add(2 * time.Hour) })

	token, _, err := issuer.IssueSessionToken(context.Background(), users.Session{UserID: testSessionUserID})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestSessionValidatorRejectsForeignIssuer(t *testing.T) {
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	_, validator := newTestPair(t, func() time.Time { return clockNow })

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID: testSessionUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   testSessionUserID,
			Audience:  []string{testSessionAudience},
			IssuedAt:  jwt.NewNumericDate(clockNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(clockNow.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestSessionValidatorValidateRequestSources(t *testing.T) {
	issuer, validator := newTestPair(t, time.Now)
	token, _, err := issuer.IssueSessionToken(context.Background(), users.Session{UserID: testSessionUserID, Email: testSessionUserEmail})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	bearer := httptest.NewRequest(http.MethodGet, "/bookmarks", http.NoBody)
	bearer.Header.Set("Authorization", "Bearer "+token)

	cookie := httptest.NewRequest(http.MethodGet, "/bookmarks", http.NoBody)
	cookie.AddCookie(&http.Cookie{Name: testSessionCookieName, Value: token})

	missing := httptest.NewRequest(http.MethodGet, "/bookmarks", http.NoBody)

	testCases := []struct {
		name    string
		request *http.Request
		wantErr error
	}{
		{name: "bearer header", request: bearer},
		{name: "cookie", request: cookie},
		{name: "missing", request: missing, wantErr: ErrMissingSessionToken},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			claims, err := validator.ValidateRequest(testCase.request)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("validation failed: %v", err)
			}
			if claims.UserID != testSessionUserID {
				t.Fatalf("unexpected user id: %s", claims.UserID)
			}
		})
	}
}
