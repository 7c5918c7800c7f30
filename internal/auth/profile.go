package auth

import (
	"net/url"
	"strings"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg"
)

// RolesForEmail grants the admin role when the email contains the marker.
// This mirrors the demo login and is not an authorization scheme.
func RolesForEmail(email, adminMarker string) []string {
	marker := strings.ToLower(strings.TrimSpace(adminMarker))
	if marker != "" && strings.Contains(strings.ToLower(email), marker) {
		return []string{RoleAdmin}
	}
	return []string{RoleUser}
}

// DefaultAvatarURL derives a generated avatar seeded by the email.
func DefaultAvatarURL(email string) string {
	return avatarBaseURL + "?seed=" + url.QueryEscape(strings.TrimSpace(email))
}

// DisplayNameFromEmail returns the local part of the email.
func DisplayNameFromEmail(email string) string {
	trimmed := strings.TrimSpace(email)
	if at := strings.Index(trimmed, "@"); at > 0 {
		return trimmed[:at]
	}
	return trimmed
}
