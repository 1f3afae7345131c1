package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	config "github.com/karunya/aid-bridge-go/config"
	models "github.com/karunya/aid-bridge-go/models"
)

const actorKey = "actor"

// Claims are the token claims the identity service issues. Token issuance
// lives outside this service; we only verify.
type Claims struct {
	Role           string `json:"role"`
	ApprovalStatus string `json:"approval_status,omitempty"`
	LocationKey    string `json:"location_key,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the Bearer token and stores the resolved Actor
// in the gin context for controllers to pass into the engine.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": "invalid or expired token"})
			return
		}

		c.Set(actorKey, models.Actor{
			UID:            claims.Subject,
			Role:           models.Role(claims.Role),
			ApprovalStatus: claims.ApprovalStatus,
			LocationKey:    models.NormalizeLocationKey(claims.LocationKey),
		})
		c.Next()
	}
}

// ActorFrom returns the Actor resolved by AuthMiddleware. The zero Actor
// means the middleware did not run; the engine treats it as
// unauthenticated.
func ActorFrom(c *gin.Context) models.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(models.Actor); ok {
			return a
		}
	}
	return models.Actor{}
}
