package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a queued, non-streaming generation for an already persisted user message.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length

	UserID        uint64 `gorm:"not null;index;index:uniq_job_user_idempo,unique,priority:1" json:"-"`
	ProjectID     string `gorm:"type:varchar(26);index;not null" json:"project_id"`
	UserMessageID uint64 `gorm:"not null" json:"user_message_id"`
	Model         string `gorm:"type:varchar(64);not null" json:"model"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_job_user_idempo,unique,priority:2" json:"idempotency_key,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultMessageID *uint64 `json:"result_message_id,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "chat_jobs" }
