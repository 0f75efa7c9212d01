package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestHashPasswordAndCheckPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("correct-horse", hash) {
		t.Fatal("expected matching password to check out")
	}
	if CheckPassword("wrong-password", hash) {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestGenerateTokenRoundTripsThroughAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	user := &User{ID: 7, Username: "alice"}
	token, expiresAt, err := GenerateToken(user, "test-secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}

	var gotUserID uint
	var gotUsername string
	r := gin.New()
	r.GET("/protected", AuthMiddleware("test-secret"), func(c *gin.Context) {
		gotUserID = c.GetUint("user_id")
		gotUsername = c.GetString("username")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotUserID != user.ID || gotUsername != user.Username {
		t.Fatalf("claims = (%d, %q), want (%d, %q)", gotUserID, gotUsername, user.ID, user.Username)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/protected", AuthMiddleware("test-secret"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	token, _, err := GenerateToken(&User{ID: 1, Username: "bob"}, "secret-a")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	r := gin.New()
	r.GET("/protected", AuthMiddleware("secret-b"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
