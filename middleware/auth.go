package middleware

import (
	"net/http"
	"strings"

	"storyreel/apperror"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const userIDKey = "userId"

// TokenVerifier resolves a bearer token to the user it was issued for.
type TokenVerifier interface {
	Verify(token string) (primitive.ObjectID, error)
}

// JWTAuthMiddleware rejects requests without a valid bearer token.
func JWTAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		token, present, err := bearerToken(c)
		if !present {
			abortWithError(c, apperror.Unauthorized("Unauthorized - no token provided"))
			return
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !authenticate(c, verifier, token) {
			return
		}
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the requester when a token is sent. A
// missing token is anonymous; a present but invalid one is rejected.
func OptionalAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present, err := bearerToken(c)
		if !present {
			c.Next()
			return
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !authenticate(c, verifier, token) {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, verifier TokenVerifier, token string) bool {
	userID, err := verifier.Verify(token)
	if err != nil {
		abortWithError(c, err)
		return false
	}
	c.Set(userIDKey, userID)
	return true
}

func bearerToken(c *gin.Context) (string, bool, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false, nil
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true, apperror.Unauthorized("Unauthorized - invalid authorization header")
	}
	return parts[1], true, nil
}

// UserID returns the authenticated requester, if any.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperror.Status(err), gin.H{
		"success": false,
		"message": apperror.Message(err),
	})
}
