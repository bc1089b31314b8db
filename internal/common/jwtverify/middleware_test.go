package jwtverify_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixfeed/pixfeed/backend/internal/common/jwtverify"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signTestToken(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func viewerClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "user-123",
		"usr": "runner",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestParseToken_Valid(t *testing.T) {
	token := signTestToken(t, jwt.SigningMethodHS256, viewerClaims(), testSecret)

	claims, err := jwtverify.ParseToken(token, []byte(testSecret))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.UserID != "user-123" || claims.Username != "runner" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token := signTestToken(t, jwt.SigningMethodHS256, viewerClaims(), "another-secret-another-secret-xx")

	if _, err := jwtverify.ParseToken(token, []byte(testSecret)); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseToken_MissingIdentityClaims(t *testing.T) {
	claims := viewerClaims()
	delete(claims, "usr")
	token := signTestToken(t, jwt.SigningMethodHS256, claims, testSecret)

	if _, err := jwtverify.ParseToken(token, []byte(testSecret)); err == nil {
		t.Fatal("expected error for token without usr claim")
	}
}

func TestParseToken_Expired(t *testing.T) {
	claims := viewerClaims()
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	token := signTestToken(t, jwt.SigningMethodHS256, claims, testSecret)

	if _, err := jwtverify.ParseToken(token, []byte(testSecret)); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestMiddleware_PassesClaimsToHandler(t *testing.T) {
	log, err := logger.New("", "test", "ERROR")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	var got jwtverify.Claims
	handler := jwtverify.Middleware(testSecret, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := jwtverify.FromContext(r.Context())
		if !ok {
			t.Error("expected claims in request context")
		}
		got = claims
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, jwt.SigningMethodHS256, viewerClaims(), testSecret))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got.UserID != "user-123" {
		t.Errorf("expected viewer user-123, got %+v", got)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	log, err := logger.New("", "test", "ERROR")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	handler := jwtverify.Middleware(testSecret, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without authorization")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
