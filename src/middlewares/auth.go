package middlewares

import (
	"log"
	"os"
	"strings"

	"pms/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// AuthMiddleware validates the bearer token and stashes the caller's
// identity and role on the context. Identity is issued by the external
// auth service; no user table is consulted here.
func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(401)
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		ctx.AbortWithStatus(401)
		return
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		if err == jwt.ErrSignatureInvalid || err == jwt.ErrTokenMalformed {
			ctx.AbortWithStatus(401)
			return
		}
		ctx.AbortWithError(401, err)
		return
	}
	if !tkn.Valid {
		ctx.AbortWithStatus(401)
		return
	}

	ctx.Set("sub", claims.Subject)
	ctx.Set("username", claims.Username)
	ctx.Set("role", claims.Role)
}

// RequireRole rejects callers whose token role is not in the allow list.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role, ok := ctx.Get("role")
		if !ok {
			ctx.AbortWithStatus(403)
			return
		}
		for _, allowed := range roles {
			if role == string(allowed) {
				return
			}
		}
		ctx.AbortWithStatus(403)
	}
}

// SecureHeaders sets the usual hardening headers on every response.
func SecureHeaders(ctx *gin.Context) {
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Header("X-Frame-Options", "DENY")
	ctx.Header("Referrer-Policy", "no-referrer")
	ctx.Next()
}

// DetectorAuthMiddleware lets camera gateways authenticate with a shared
// key instead of a JWT. An empty DETECTOR_API_KEY disables the check so
// local setups work without provisioning.
func DetectorAuthMiddleware(ctx *gin.Context) {
	expected := os.Getenv("DETECTOR_API_KEY")
	if expected == "" {
		return
	}
	if ctx.Request.Header.Get("X-API-Key") != expected {
		ctx.AbortWithStatus(401)
	}
}
