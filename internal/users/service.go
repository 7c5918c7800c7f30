package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidIdentity indicates the profile did not contain a usable email.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for the user registry.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service keeps one stable user id per email and counts known users.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the registry. The schema is expected to be migrated.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:  cfg.Database,
		now: clock,
	}, nil
}

// Resolve returns the identity for the profile's email, creating it on first sight
// and refreshing profile fields and last-seen time afterwards.
func (s *Service) Resolve(ctx context.Context, profile Profile) (Identity, error) {
	email := normalizeEmail(profile.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, ErrInvalidIdentity
	}

	var identity Identity
	err := s.db.WithContext(ctx).
		Where("user_email = ?", email).
		First(&identity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		userID, idErr := uuid.NewV7()
		if idErr != nil {
			return Identity{}, idErr
		}
		return s.insertIdentity(ctx, Identity{
			UserID:      userID.String(),
			Email:       email,
			DisplayName: strings.TrimSpace(profile.DisplayName),
			AvatarURL:   strings.TrimSpace(profile.AvatarURL),
			Role:        strings.TrimSpace(profile.Role),
			LastSeenAt:  s.now().UTC(),
		})
	}
	if err != nil {
		return Identity{}, err
	}

	updates := map[string]interface{}{}
	if display := strings.TrimSpace(profile.DisplayName); display != "" && display != identity.DisplayName {
		updates["user_display_name"] = display
		identity.DisplayName = display
	}
	if avatar := strings.TrimSpace(profile.AvatarURL); avatar != "" && avatar != identity.AvatarURL {
		updates["user_avatar_url"] = avatar
		identity.AvatarURL = avatar
	}
	if role := strings.TrimSpace(profile.Role); role != "" && role != identity.Role {
		updates["user_role"] = role
		identity.Role = role
	}
	identity.LastSeenAt = s.now().UTC()
	updates["last_seen_at"] = identity.LastSeenAt
	if err := s.db.WithContext(ctx).Model(&Identity{}).
		Where("user_id = ?", identity.UserID).
		Updates(updates).
		Error; err != nil {
		return Identity{}, err
	}

	return identity, nil
}

// insertIdentity creates the identity unless another sign-in for the same email
// got there first, and returns whichever row is stored.
func (s *Service) insertIdentity(ctx context.Context, candidate Identity) (Identity, error) {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_email"}},
			DoNothing: true,
		}).
		Create(&candidate).
		Error
	if err != nil {
		return Identity{}, err
	}

	var stored Identity
	if err := s.db.WithContext(ctx).
		Where("user_email = ?", candidate.Email).
		First(&stored).
		Error; err != nil {
		return Identity{}, err
	}
	return stored, nil
}

// CountUsers reports how many distinct identities are registered.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Identity{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
