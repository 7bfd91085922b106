// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/HSouheill/referral_backend/logger"
	"github.com/HSouheill/referral_backend/models"
)

const (
	UserTypeCreator = "creator"
	UserTypeMember  = "member"
)

// JwtCustomClaims are the claims issued by the community platform's auth
// service.
type JwtCustomClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
	jwt.StandardClaims
}

// Valid checks expiry and not-before; a zero ExpiresAt never expires.
func (c JwtCustomClaims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return errors.New("token is expired")
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return errors.New("token used before valid")
	}
	if c.UserID == "" {
		return errors.New("token has no user id")
	}
	return nil
}

// JWTMiddleware validates the bearer token and stores its claims on the
// context under userId, userType and email. The token query parameter is
// accepted too, since browsers cannot set headers on websocket upgrades.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	if secret == "" {
		logger.Warn("JWT_SECRET is not set, authenticated routes will reject every request")
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return echo.NewHTTPError(http.StatusUnauthorized, "JWT configuration error")
			}
		}
	}

	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:  []byte(secret),
		Claims:      &JwtCustomClaims{},
		TokenLookup: "header:Authorization,query:token",
		SuccessHandler: func(c echo.Context) {
			claims := c.Get("user").(*jwt.Token).Claims.(*JwtCustomClaims)
			c.Set("userId", claims.UserID)
			c.Set("userType", claims.UserType)
			c.Set("email", claims.Email)
		},
		ErrorHandler: func(err error) error {
			logger.Debug("JWT middleware error: %v", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Please provide valid credentials")
		},
	})
}

// RequireUserType lets through only the listed user types.
func RequireUserType(allowedTypes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userType := ExtractUserType(c)
			if userType == "" {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Authentication failed: user type not found",
				})
			}
			for _, allowed := range allowedTypes {
				if userType == allowed {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, models.Response{
				Status:  http.StatusForbidden,
				Message: "Access denied for your user type",
			})
		}
	}
}

// GenerateJWT signs a token for userID. A zero ttl issues a token without
// expiry.
func GenerateJWT(secret, userID, email, userType string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is required")
	}
	now := time.Now()
	claims := &JwtCustomClaims{
		UserID:   userID,
		Email:    email,
		UserType: userType,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: now.Unix(),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// GetUserFromToken returns the validated claims, or nil.
func GetUserFromToken(c echo.Context) *JwtCustomClaims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil
	}
	claims, ok := token.Claims.(*JwtCustomClaims)
	if !ok {
		return nil
	}
	return claims
}

// ExtractUserID returns the authenticated user's id.
func ExtractUserID(c echo.Context) (string, error) {
	if userID, ok := c.Get("userId").(string); ok && userID != "" {
		return userID, nil
	}
	if claims := GetUserFromToken(c); claims != nil && claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", errors.New("invalid user ID in token")
}

func ExtractUserType(c echo.Context) string {
	if userType, ok := c.Get("userType").(string); ok && userType != "" {
		return userType
	}
	if claims := GetUserFromToken(c); claims != nil {
		return claims.UserType
	}
	return ""
}
