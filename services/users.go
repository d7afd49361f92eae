package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"activity-reward-system/models"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	minDisplayNameRunes = 3
	maxDisplayNameRunes = 32
)

type UserService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db, Now: time.Now}
}

// NormalizeDisplayName returns the NFC form of raw and its uniqueness key.
// Two names with the same slug collide ("Ana Ng" and "ana-ng").
func NormalizeDisplayName(raw string) (name, key string, err error) {
	name = strings.TrimSpace(norm.NFC.String(raw))
	name = strings.Join(strings.Fields(name), " ")

	n := utf8.RuneCountInString(name)
	if n < minDisplayNameRunes || n > maxDisplayNameRunes {
		return "", "", fmt.Errorf("%w: must be %d to %d characters", ErrInvalidName, minDisplayNameRunes, maxDisplayNameRunes)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", "", fmt.Errorf("%w: control characters are not allowed", ErrInvalidName)
		}
	}
	key = slug.Make(name)
	if key == "" {
		return "", "", fmt.Errorf("%w: needs at least one letter or digit", ErrInvalidName)
	}
	return name, key, nil
}

// SetDisplayName creates the user if needed and claims the name.
func (s *UserService) SetDisplayName(ctx context.Context, address, raw string) (*models.User, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}
	name, key, err := NormalizeDisplayName(raw)
	if err != nil {
		return nil, err
	}
	now := s.Now().UTC()

	var user models.User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var holder models.User
		err := tx.Where("name_key = ? AND address <> ?", key, address).Take(&holder).Error
		if err == nil {
			return ErrNameTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row := models.User{Address: address, DisplayName: &name, NameKey: &key, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "name_key", "updated_at"}),
		}).Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrNameTaken
			}
			return err
		}
		return tx.Where("address = ?", address).Take(&user).Error
	})
	if err != nil {
		if !errors.Is(err, ErrNameTaken) {
			zap.L().Error("[USERS] set display name failed", zap.String("address", address), zap.Error(err))
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetUser(ctx context.Context, address string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("address = ?", strings.TrimSpace(address)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsers matches display names case-insensitively.
func (s *UserService) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.User{}).Limit(limit).Order("reward_total DESC")
	if query = strings.TrimSpace(query); query != "" {
		db = db.Where("LOWER(display_name) LIKE ?", "%"+strings.ToLower(query)+"%")
	} else {
		db = db.Where("display_name IS NOT NULL")
	}
	var users []models.User
	if err := db.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
