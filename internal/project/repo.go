package project

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func withFilesAndMessages(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("path ASC") }).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") })
}

// ListByOwner returns projects newest first.
func (r *Repo) ListByOwner(ctx context.Context, userID uint64) ([]models.Project, error) {
	var out []models.Project
	if err := withFilesAndMessages(r.db.WithContext(ctx)).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetOwned collapses missing and not-owned into ErrNotFound.
func (r *Repo) GetOwned(ctx context.Context, userID uint64, id string, preload bool) (*models.Project, error) {
	q := r.db.WithContext(ctx)
	if preload {
		q = withFilesAndMessages(q)
	}
	var p models.Project
	if err := q.Where("id = ? AND user_id = ?", id, userID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repo) Create(ctx context.Context, p *models.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) Update(ctx context.Context, p *models.Project, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(p).Updates(updates).Error
}

// Delete removes the project with its messages and files in one transaction.
func (r *Repo) Delete(ctx context.Context, userID uint64, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Project
		if err := tx.Select("id").Where("id = ? AND user_id = ?", id, userID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return errors.Wrap(err, "delete messages")
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.File{}).Error; err != nil {
			return errors.Wrap(err, "delete files")
		}
		return tx.Where("id = ?", id).Delete(&models.Project{}).Error
	})
}

func (r *Repo) GetFile(ctx context.Context, id string) (*models.File, error) {
	var f models.File
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *Repo) PathExists(ctx context.Context, projectID, path string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.File{}).
		Where("project_id = ? AND path = ?", projectID, path).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repo) CreateFile(ctx context.Context, f *models.File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *Repo) UpdateFile(ctx context.Context, f *models.File, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(f).Updates(updates).Error
}

func (r *Repo) DeleteFile(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.File{}).Error
}

// UpsertFiles writes files keyed by (project_id, path); existing rows keep
// their id and get new content.
func (r *Repo) UpsertFiles(ctx context.Context, files []models.File) error {
	if len(files) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "language", "updated_at"}),
	}).Create(&files).Error
}

func (r *Repo) FilesByPaths(ctx context.Context, projectID string, paths []string) ([]models.File, error) {
	var out []models.File
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND path IN ?", projectID, paths).
		Order("path ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
