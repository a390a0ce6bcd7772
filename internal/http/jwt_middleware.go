package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"diaspora-api/internal/service"
)

const claimsContextKey = "diaspora.claims"

// JWTAuthMiddleware exige un access token Bearer valido. Los rechazos usan el
// envelope con statusCode 401; un servicio sin configurar es un error interno.
func JWTAuthMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			_ = c.Error(errJWTNotConfigured)
			c.Abort()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing token")
			return
		}

		claims, err := jwtSvc.ParseAccessToken(token)
		switch {
		case errors.Is(err, service.ErrJWTExpired):
			unauthorized(c, "token expired")
			return
		case err != nil:
			unauthorized(c, "invalid token")
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFromContext devuelve los claims que dejo JWTAuthMiddleware.
func ClaimsFromContext(c *gin.Context) (service.Claims, bool) {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := v.(service.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		newEnvelope(http.StatusUnauthorized, "unauthorized", nil, gin.H{"error": reason}, ""))
}
