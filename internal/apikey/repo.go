package apikey

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("api key not found")

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Upsert writes the key for (user, provider), replacing any previous value.
func (r *Repo) Upsert(ctx context.Context, userID uint64, provider, encrypted string) error {
	row := &UserAPIKey{UserID: userID, Provider: provider, EncryptedKey: encrypted}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_key", "updated_at"}),
	}).Create(row).Error
}

func (r *Repo) Get(ctx context.Context, userID uint64, provider string) (*UserAPIKey, error) {
	var k UserAPIKey
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&k).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

// ListProviders returns the providers the user has stored a key for.
func (r *Repo) ListProviders(ctx context.Context, userID uint64) ([]string, error) {
	var out []string
	if err := r.db.WithContext(ctx).Model(&UserAPIKey{}).
		Where("user_id = ?", userID).
		Order("provider ASC").
		Pluck("provider", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, userID uint64, provider string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&UserAPIKey{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
