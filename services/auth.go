package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidWebhookToken = errors.New("invalid webhook token")

const webhookAudience = "vapi-webhook"

type contextKey string

// PrincipalKey holds the verified *Principal on authenticated requests.
const PrincipalKey contextKey = "principal"

// CookieClaims are the access-token claims issued by the account service.
type CookieClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// WebhookClaims scope a provider callback URL to one session.
type WebhookClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Principal is the caller identified by a verified access token.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// TokenService signs per-session webhook tokens and verifies API access
// tokens. Issuing access tokens belongs to the account service.
type TokenService struct {
	webhookSecret []byte
	apiSecret     []byte
	webhookTTL    time.Duration
}

func NewTokenService(webhookSecret, apiSecret string, webhookTTL time.Duration) *TokenService {
	if webhookTTL <= 0 {
		webhookTTL = 24 * time.Hour
	}
	return &TokenService{
		webhookSecret: []byte(webhookSecret),
		apiSecret:     []byte(apiSecret),
		webhookTTL:    webhookTTL,
	}
}

// SignWebhookToken creates the token embedded in a session's callback URL.
func (s *TokenService) SignWebhookToken(sessionID string) (string, error) {
	if len(s.webhookSecret) == 0 {
		return "", fmt.Errorf("webhook secret not configured")
	}
	now := time.Now()
	claims := &WebhookClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Audience:  jwt.ClaimStrings{webhookAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.webhookTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.webhookSecret)
}

// VerifyWebhookToken checks that token was issued for sessionID.
func (s *TokenService) VerifyWebhookToken(token, sessionID string) error {
	if len(s.webhookSecret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", ErrInvalidWebhookToken)
	}
	claims := &WebhookClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc(s.webhookSecret), jwt.WithAudience(webhookAudience))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookToken, err)
	}
	if !parsed.Valid || claims.SessionID != sessionID {
		return ErrInvalidWebhookToken
	}
	return nil
}

// VerifyAccessToken validates an access token and returns its principal.
func (s *TokenService) VerifyAccessToken(token string) (*Principal, error) {
	claims := &CookieClaims{}

	parsedToken, err := jwt.ParseWithClaims(token, claims, s.keyFunc(s.apiSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsedToken.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token")
	}

	return &Principal{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

func (s *TokenService) keyFunc(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}
}

// Middleware accepts a bearer token or the account service's access_token cookie.
func (s *TokenService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if cookie, err := r.Cookie("access_token"); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		principal, err := s.VerifyAccessToken(token)
		if err != nil {
			slog.Warn("Rejected access token", "error", err, "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
