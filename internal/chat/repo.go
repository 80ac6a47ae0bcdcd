package chat

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/models"
	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// OwnedProject does not distinguish "missing" from "not yours".
func (r *Repo) OwnedProject(ctx context.Context, userID uint64, projectID string) (*models.Project, error) {
	var p models.Project
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", projectID, userID).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// RecentMessages returns up to limit of the newest messages, oldest first.
// beforeOrAt > 0 bounds the window to messages with id <= beforeOrAt.
func (r *Repo) RecentMessages(ctx context.Context, projectID string, limit int, beforeOrAt uint64) ([]models.ChatMessage, error) {
	q := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if beforeOrAt > 0 {
		q = q.Where("id <= ?", beforeOrAt)
	}

	var desc []models.ChatMessage
	if err := q.Find(&desc).Error; err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	for i, j := 0, len(desc)-1; i < j; i, j = i+1, j-1 {
		desc[i], desc[j] = desc[j], desc[i]
	}
	return desc, nil
}

// Files returns the project's files in insertion order.
func (r *Repo) Files(ctx context.Context, projectID string) ([]models.File, error) {
	var out []models.File
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) ListMessages(ctx context.Context, projectID string) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) InsertMessage(ctx context.Context, m *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) GetMessage(ctx context.Context, projectID string, id uint64) (*models.ChatMessage, error) {
	var m models.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

// DeleteMessagesFrom removes the message with id fromID and every later one.
func (r *Repo) DeleteMessagesFrom(ctx context.Context, projectID string, fromID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND id >= ?", projectID, fromID).
		Delete(&models.ChatMessage{})
	return res.RowsAffected, res.Error
}

// Job CRUD

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID uint64) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// CreateJobWithMessage stores the user message and its job together. If the
// (user_id, idempotency_key) pair already exists nothing is written and the
// existing job is returned with created=false.
func (r *Repo) CreateJobWithMessage(ctx context.Context, msg *models.ChatMessage, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey != nil && *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return errors.Wrap(err, "insert user message")
		}
		job.UserMessageID = msg.ID
		return tx.Create(job).Error
	})
	if err == nil {
		return job, true, nil
	}
	if job.IdempotencyKey == nil {
		return nil, false, err
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, ErrJobNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
