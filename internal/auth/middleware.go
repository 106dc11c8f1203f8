package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// DevUsername is the user attributed to requests when authentication is skipped
const DevUsername = "dev"

// Claims identifies the console user behind a request
type Claims struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Groups   []string `json:"groups"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

// Config controls token verification
type Config struct {
	// SkipAuth attributes every request to DevUsername
	SkipAuth bool
	// IssuerURL enables signature verification against the issuer's JWKS.
	// Without it tokens are parsed unverified.
	IssuerURL string
}

// Verifier authenticates requests with bearer tokens issued elsewhere
type Verifier struct {
	cfg    Config
	logger zerolog.Logger

	mu   sync.Mutex
	jwks keyfunc.Keyfunc
	now  func() time.Time
}

// NewVerifier creates a Verifier. JWKS are fetched on first use.
func NewVerifier(cfg Config, logger zerolog.Logger) *Verifier {
	return &Verifier{
		cfg:    cfg,
		logger: logger.With().Str("component", "auth").Logger(),
		now:    time.Now,
	}
}

// keyfunc returns the JWKS keyfunc, fetching the key set on first use
func (v *Verifier) keyfunc() (jwt.Keyfunc, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks == nil {
		// Keycloak layout
		jwksURL := strings.TrimSuffix(v.cfg.IssuerURL, "/") + "/protocol/openid-connect/certs"
		v.logger.Info().Str("url", jwksURL).Msg("fetching JWKS")

		k, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create keyfunc: %w", err)
		}
		v.jwks = k
	}
	return v.jwks.Keyfunc, nil
}

// Middleware validates bearer tokens and stores the Claims in the request
// context. /health is always public.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if v.cfg.SkipAuth {
			ctx := context.WithValue(r.Context(), UserContextKey, &Claims{
				Username: DevUsername,
				Name:     "Dev User",
				Role:     "admin",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			v.logger.Debug().Str("path", r.URL.Path).Msg("missing authorization token")
			writeUnauthorized(w, "missing token")
			return
		}

		claims, err := v.Validate(tokenString)
		if err != nil {
			v.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
			writeUnauthorized(w, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized: " + msg})
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// WebSocket connections cannot set headers from the browser
	return r.URL.Query().Get("token")
}

// Validate parses a token and extracts the console claims
func (v *Verifier) Validate(tokenString string) (*Claims, error) {
	verify := v.cfg.IssuerURL != ""

	var token *jwt.Token
	var err error
	if verify {
		kf, kerr := v.keyfunc()
		if kerr != nil {
			return nil, kerr
		}
		token, err = jwt.Parse(tokenString, kf,
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
			jwt.WithTimeFunc(v.now))
		if err != nil {
			return nil, fmt.Errorf("token verification failed: %w", err)
		}
	} else {
		token, _, err = jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	claims := &Claims{
		Email:  stringClaim(mapClaims, "email"),
		Name:   stringClaim(mapClaims, "name"),
		Role:   extractRole(mapClaims),
		Groups: stringsClaim(mapClaims, "groups"),
	}
	claims.Subject = stringClaim(mapClaims, "sub")
	claims.Username = firstNonEmpty(
		stringClaim(mapClaims, "preferred_username"),
		stringClaim(mapClaims, "username"),
		claims.Email,
		claims.Subject,
	)
	if claims.Username == "" {
		return nil, errors.New("token has no username")
	}
	if claims.Name == "" {
		claims.Name = claims.Username
	}

	// verified tokens have exp checked by the parser
	if !verify {
		if exp, ok := mapClaims["exp"].(float64); ok {
			expTime := time.Unix(int64(exp), 0)
			claims.ExpiresAt = jwt.NewNumericDate(expTime)
			if expTime.Before(v.now()) {
				return nil, errors.New("token expired")
			}
		}
	}

	return claims, nil
}

// extractRole reads Keycloak realm roles, highest privilege first
func extractRole(mapClaims jwt.MapClaims) string {
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		roles := stringsClaim(realmAccess, "roles")
		for _, priority := range []string{"admin", "supervisor", "operator", "viewer"} {
			for _, role := range roles {
				if role == priority {
					return role
				}
			}
		}
	}
	return "viewer"
}

func stringClaim(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringsClaim(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// Username returns the authenticated username, or "" when the request is
// anonymous
func Username(ctx context.Context) string {
	if claims, ok := GetUserFromContext(ctx); ok {
		return claims.Username
	}
	return ""
}
