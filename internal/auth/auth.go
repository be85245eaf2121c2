package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const identityContextKey contextKey = "identity"

const (
	issuer    = "event-radar"
	RoleAdmin = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotConfigured      = errors.New("admin login not configured")
)

// Config holds authentication configuration
type Config struct {
	JWTSecret         string
	AdminEmail        string
	AdminPasswordHash string
	TokenDuration     time.Duration
}

// Identity is the authenticated principal carried in tokens and request contexts.
type Identity struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Claims represents the JWT claims
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed token for the identity.
func GenerateToken(id Identity, secret string, duration time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNotConfigured
	}
	now := time.Now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns its identity.
func ValidateToken(tokenString string, secret string) (Identity, error) {
	if secret == "" {
		return Identity{}, ErrNotConfigured
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{Email: claims.Subject, Role: claims.Role}, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Login checks admin credentials and issues a token.
func Login(config Config, email, password string) (string, Identity, error) {
	if config.JWTSecret == "" || config.AdminPasswordHash == "" {
		return "", Identity{}, ErrNotConfigured
	}
	if !strings.EqualFold(strings.TrimSpace(email), config.AdminEmail) || !CheckPassword(password, config.AdminPasswordHash) {
		return "", Identity{}, ErrInvalidCredentials
	}

	id := Identity{Email: config.AdminEmail, Role: RoleAdmin}
	token, err := GenerateToken(id, config.JWTSecret, config.TokenDuration)
	if err != nil {
		return "", Identity{}, fmt.Errorf("generate token: %w", err)
	}
	return token, id, nil
}

// AdminMiddleware rejects requests without a valid admin bearer token.
func AdminMiddleware(config Config, unauthorized func(http.ResponseWriter, string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid authorization header format")
				return
			}

			id, err := ValidateToken(parts[1], config.JWTSecret)
			if err != nil || id.Role != RoleAdmin {
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext extracts the identity from the request context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}
