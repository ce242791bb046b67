package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "marketplace-service/common/errors"
	"marketplace-service/models"
	"marketplace-service/services"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"

	// TokenHeader is accepted as an alternative to the Authorization header.
	TokenHeader = "x-auth-token"
)

type TokenVerifier interface {
	VerifyToken(tokenStr string) (*services.Claims, error)
}

// AuthMiddleware rejects requests without a valid access token before any
// handler runs. The token comes from "Authorization: Bearer <token>" or the
// x-auth-token header.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.GetHeader(TokenHeader))
		}
		if token == "" {
			c.Error(apperrors.Unauthorized("missing credential token"))
			c.Abort()
			return
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			c.Error(apperrors.Unauthorized("invalid credential token"))
			c.Abort()
			return
		}

		c.Set(UserContextKey, claims.Subject)
		c.Set(RoleContextKey, claims.UserType)
		c.Next()
	}
}

// RequireSellerOwner runs after AuthMiddleware on routes that change a
// seller's catalog or banners. The caller must hold a seller token whose
// subject is the seller named by the param path parameter.
func RequireSellerOwner(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetRole(c)
		if err != nil || role != string(models.UserTypeSeller) {
			c.Error(apperrors.Forbidden("seller account required"))
			c.Abort()
			return
		}
		userID, err := GetUserID(c)
		if err != nil || userID != c.Param(param) {
			c.Error(apperrors.Forbidden("access denied"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}

func GetRole(c *gin.Context) (string, error) {
	if val, ok := c.Get(RoleContextKey); ok {
		if role, ok := val.(string); ok {
			return role, nil
		}
	}
	return "", errors.New("role not found in context")
}
