package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/plotbook-crm/internal/crm_api/service"
	"github.com/plotbook-crm/internal/domain/shared"
	"github.com/plotbook-crm/internal/domain/staff"
)

// ClaimsKey stores the verified token claims in the gin context
const ClaimsKey = "auth_claims"

// TokenParser verifies bearer tokens
type TokenParser interface {
	ParseToken(token string) (*service.Claims, error)
}

// Authenticate rejects requests without a valid bearer token. The verified
// staff member becomes the actor of every write made by the request.
func Authenticate(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}

		claims, err := tokens.ParseToken(strings.TrimSpace(token))
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}

		c.Set(ClaimsKey, claims)
		ctx := shared.WithActor(c.Request.Context(), shared.Actor{
			ID:            claims.StaffID,
			Name:          claims.Name,
			Role:          string(claims.Role),
			CorrelationID: GetCorrelationID(c),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole allows the request only when the authenticated staff member
// holds one of roles. It must run after Authenticate.
func RequireRole(roles ...staff.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "FORBIDDEN", "Your role does not permit this action")
	}
}

// GetClaims returns the verified claims of the request, or nil
func GetClaims(c *gin.Context) *service.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*service.Claims); ok {
			return claims
		}
	}
	return nil
}

func abort(c *gin.Context, status int, code, message string) {
	response := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		response["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, response)
}
