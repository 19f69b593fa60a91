package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	apierrors "github.com/klicktape/backend/internal/errors"
)

// GenerateToken signs a 24-hour HS256 token for the given user
func GenerateToken(secret []byte, userID, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// RequireAuth validates the Authorization bearer token and stores the
// authenticated user id under "user_id" in the Gin context.
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			apiErr := apierrors.Unauthorized("missing authorization header")
			c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			apiErr := apierrors.Unauthorized("authorization header must be a bearer token")
			c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			apiErr := apierrors.Unauthorized("invalid or expired token")
			c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			apiErr := apierrors.Unauthorized("invalid token claims")
			c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			apiErr := apierrors.Unauthorized("token is missing a user id")
			c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
