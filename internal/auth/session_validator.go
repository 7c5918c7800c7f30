package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSessionIssuer = "civic-api"
	bearerPrefix         = "Bearer "
)

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
	ErrInvalidSessionToken      = errors.New("session validator: invalid token")
	ErrExpiredSessionToken      = errors.New("session validator: token expired")
	ErrMissingSessionSubject    = errors.New("session validator: subject required")
)

// SessionClaims identify the resident behind a request. UserID is the
// stable users-table id stamped on proposals, comments and ballots; the
// display fields are copied onto new comments. Roles carry "admin" for
// residents allowed to seed proposals.
type SessionClaims struct {
	UserID          string   `json:"user_id"`
	UserEmail       string   `json:"user_email"`
	UserDisplayName string   `json:"user_display_name"`
	UserAvatarURL   string   `json:"user_avatar_url"`
	UserRoles       []string `json:"user_roles"`
	jwt.RegisteredClaims
}

// HasRole matches role names case-insensitively.
func (c SessionClaims) HasRole(role string) bool {
	for _, granted := range c.UserRoles {
		if strings.EqualFold(granted, role) {
			return true
		}
	}
	return false
}

// SessionValidatorConfig configures NewSessionValidator. Issuer defaults
// to "civic-api" and Clock to time.Now.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator turns a resident's session token back into claims.
type SessionValidator struct {
	secret     []byte
	issuer     string
	cookieName string
	now        func() time.Time
}

func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	validator := &SessionValidator{
		secret:     append([]byte(nil), cfg.SigningSecret...),
		issuer:     strings.TrimSpace(cfg.Issuer),
		cookieName: cookieName,
		now:        cfg.Clock,
	}
	if validator.issuer == "" {
		validator.issuer = defaultSessionIssuer
	}
	if validator.now == nil {
		validator.now = time.Now
	}
	return validator, nil
}

func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken accepts only HS256 tokens minted by this deployment's issuer
// that name a resident in both sub and user_id.
func (v *SessionValidator) ValidateToken(raw string) (SessionClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, v.signingKey,
		jwt.WithTimeFunc(v.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, ErrExpiredSessionToken
	case err != nil:
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !namesResident(claims) {
		return SessionClaims{}, ErrMissingSessionSubject
	}
	return claims, nil
}

// ValidateRequest reads an Authorization bearer token when present and the
// session cookie otherwise. A malformed bearer token is not retried against
// the cookie.
func (v *SessionValidator) ValidateRequest(r *http.Request) (SessionClaims, error) {
	raw, ok := v.sessionToken(r)
	if !ok {
		return SessionClaims{}, ErrMissingSessionToken
	}
	return v.ValidateToken(raw)
}

func (v *SessionValidator) sessionToken(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix), true
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

func (v *SessionValidator) signingKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, token.Method.Alg())
	}
	return v.secret, nil
}

func namesResident(claims SessionClaims) bool {
	return strings.TrimSpace(claims.Subject) != "" && strings.TrimSpace(claims.UserID) != ""
}
