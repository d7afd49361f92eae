package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"activity-reward-system/metrics"
	"activity-reward-system/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NoncePlaceholder in a stored message is replaced by the issued nonce.
const NoncePlaceholder = "{nonce}"

const maxNonceTTL = 30 * time.Minute

// NonceStore keeps pending sign-in challenges in the database so every
// instance behind the gateway sees the same state.
type NonceStore struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewNonceStore(db *gorm.DB) *NonceStore {
	return &NonceStore{DB: db, Now: time.Now}
}

type IssuedNonce struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store issues a fresh nonce for address, replacing any pending one.
func (s *NonceStore) Store(ctx context.Context, address, message string, ttl time.Duration) (*IssuedNonce, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}
	if ttl <= 0 || ttl > maxNonceTTL {
		return nil, fmt.Errorf("%w: ttl must be within (0, %s]", ErrValidation, maxNonceTTL)
	}

	now := s.Now().UTC()
	nonce := uuid.NewString()
	if message == "" {
		message = "Sign in with nonce " + NoncePlaceholder
	}
	row := models.AuthNonce{
		Address:   address,
		Nonce:     nonce,
		Message:   strings.ReplaceAll(message, NoncePlaceholder, nonce),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "message", "expires_at", "created_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}
	return &IssuedNonce{Address: address, Nonce: nonce, Message: row.Message, ExpiresAt: row.ExpiresAt}, nil
}

// ConsumeOnce returns the pending challenge for address and deletes it. An
// expired challenge is deleted too and reported as ErrNonceExpired.
func (s *NonceStore) ConsumeOnce(ctx context.Context, address string) (*IssuedNonce, error) {
	address = strings.TrimSpace(address)
	now := s.Now().UTC()

	var row models.AuthNonce
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("address = ?", address).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNonceNotFound
		}
		if err != nil {
			return err
		}
		res := tx.Where("address = ? AND nonce = ?", address, row.Nonce).Delete(&models.AuthNonce{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNonceNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !row.ExpiresAt.After(now) {
		return nil, ErrNonceExpired
	}
	return &IssuedNonce{Address: row.Address, Nonce: row.Nonce, Message: row.Message, ExpiresAt: row.ExpiresAt}, nil
}

// PurgeExpired deletes challenges that expired before now.
func (s *NonceStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", s.Now().UTC()).Delete(&models.AuthNonce{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		metrics.NoncesPurgedTotal.Add(float64(res.RowsAffected))
		zap.L().Info("[NONCES] purged expired challenges", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
