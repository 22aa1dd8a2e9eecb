package middleware

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/feral-file/agent-ledger/internal/domain"
	"github.com/feral-file/agent-ledger/internal/logger"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey = string

const (
	AUTH_TYPE_KEY  contextKey = "auth_type"
	CALLER_KEY     contextKey = "caller"
	JWT_CLAIMS_KEY contextKey = "jwt_claims"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string // RSA public key in PEM format
	APIKeys      []string
}

// AuthResult holds the result of authentication
type AuthResult struct {
	Success  bool
	AuthType string // "jwt" or "apikey"
	Claims   *jwt.RegisteredClaims
	Caller   domain.Address
	Error    error
}

// Authenticate validates the Authorization header and returns the result.
// Bearer tokens bind the caller address from the JWT subject; API keys carry
// no caller identity and only pass key-guarded routes.
func Authenticate(authHeader string, cfg AuthConfig) AuthResult {
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	result := AuthResult{
		Success: false,
	}

	if authHeader == "" {
		result.Error = errors.New("missing Authorization header")
		return result
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		result.Error = errors.New("invalid Authorization header format")
		return result
	}

	authType := strings.ToLower(parts[0])
	credentials := parts[1]

	switch authType {
	case "bearer":
		claims, err := validateJWT(credentials, cfg.JWTPublicKey)
		if err != nil {
			result.Error = err
			return result
		}
		if claims.Subject == "" {
			result.Error = errors.New("token carries no subject")
			return result
		}
		result.Success = true
		result.AuthType = "jwt"
		result.Claims = claims
		result.Caller = domain.Address(claims.Subject)

	case "apikey":
		if err := validateAPIKey(credentials, apiKeyMap); err != nil {
			result.Error = err
			return result
		}
		result.Success = true
		result.AuthType = "apikey"

	default:
		result.Error = fmt.Errorf("unsupported authorization type: %s", authType)
		return result
	}

	return result
}

// Auth returns a gin middleware for caller authentication. Only JWT bearer
// tokens pass: ledger writes need a caller address and API keys carry none.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		result := Authenticate(authHeader, cfg)

		if !result.Success || result.AuthType != "jwt" {
			if result.Error == nil {
				result.Error = errors.New("caller identity required")
			}
			logger.Warn("Authentication failed",
				zap.Error(result.Error),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Authentication failed",
					"details": result.Error.Error(),
				},
			})
			return
		}

		c.Set(AUTH_TYPE_KEY, result.AuthType)
		c.Set(JWT_CLAIMS_KEY, result.Claims)
		c.Set(CALLER_KEY, result.Caller)

		c.Next()
	}
}

// APIKeyAuth returns a gin middleware that only accepts API key credentials.
// It guards operator routes such as fee withdrawal and deposits.
func APIKeyAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		result := Authenticate(authHeader, cfg)

		if !result.Success || result.AuthType != "apikey" {
			if result.Error == nil {
				result.Error = errors.New("API key required")
			}
			logger.Warn("API key authentication failed",
				zap.Error(result.Error),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Authentication failed",
					"details": result.Error.Error(),
				},
			})
			return
		}

		c.Set(AUTH_TYPE_KEY, result.AuthType)
		c.Next()
	}
}

// Caller returns the authenticated caller address bound by Auth
func Caller(c *gin.Context) (domain.Address, bool) {
	v, ok := c.Get(CALLER_KEY)
	if !ok {
		return "", false
	}
	caller, ok := v.(domain.Address)
	return caller, ok && caller.Valid()
}

// validateJWT validates a JWT token with RSA signature and returns claims
func validateJWT(tokenString string, publicKeyPEM string) (*jwt.RegisteredClaims, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("JWT public key not configured")
	}

	publicKey, err := parseRSAPublicKey(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	now := time.Now()
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now) {
		return nil, errors.New("token has expired")
	}
	if claims.NotBefore != nil && claims.NotBefore.After(now) {
		return nil, errors.New("token not yet valid")
	}

	return claims, nil
}

// parseRSAPublicKey parses an RSA public key from PEM format
func parseRSAPublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, errors.New("failed to parse PEM block containing public key")
	}

	// Try parsing as PKIX (most common format)
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		// Try parsing as PKCS1 format
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not an RSA key")
	}

	return rsaKey, nil
}

// validateAPIKey validates an API key
func validateAPIKey(apiKey string, validKeys map[string]bool) error {
	if len(validKeys) == 0 {
		return errors.New("no API keys configured")
	}
	if !validKeys[apiKey] {
		return errors.New("invalid API key")
	}
	return nil
}
