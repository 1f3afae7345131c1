package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	config "github.com/karunya/aid-bridge-go/config"
	models "github.com/karunya/aid-bridge-go/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authRouter() (*gin.Engine, *models.Actor) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWTSecret: testSecret}
	var seen models.Actor
	r := gin.New()
	r.GET("/whoami", AuthMiddleware(cfg), func(c *gin.Context) {
		seen = ActorFrom(c)
		c.JSON(http.StatusOK, seen)
	})
	return r, &seen
}

func TestAuthMiddleware_ResolvesActor(t *testing.T) {
	r, seen := authRouter()

	token := signToken(t, Claims{
		Role:           "volunteer",
		ApprovalStatus: "approved",
		LocationKey:    " Guntur ",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "vol-a",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	want := models.Actor{UID: "vol-a", Role: models.RoleVolunteer, ApprovalStatus: "approved", LocationKey: "guntur"}
	if *seen != want {
		t.Fatalf("actor = %+v, want %+v", *seen, want)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	r, _ := authRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	r, _ := authRouter()

	token := signToken(t, Claims{
		Role: "donor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "don-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	r, _ := authRouter()

	token := signToken(t, Claims{
		Role: "donor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "don-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, "some-other-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestActorFrom_NoMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if a := ActorFrom(c); a.UID != "" {
		t.Fatalf("actor = %+v, want zero", a)
	}
}
