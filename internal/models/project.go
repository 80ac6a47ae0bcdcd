package models

import "time"

type Project struct {
	ID          string        `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID      uint64        `gorm:"index;not null" json:"-"`
	Name        string        `gorm:"type:varchar(255);not null" json:"name"`
	Description *string       `gorm:"type:text" json:"description"`
	RepoURL     *string       `gorm:"type:varchar(512)" json:"repo_url"`
	Files       []File        `gorm:"foreignKey:ProjectID" json:"files,omitempty"`
	Messages    []ChatMessage `gorm:"foreignKey:ProjectID" json:"messages,omitempty"`
	CreatedAt   time.Time     `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// File paths are unique per project and otherwise unvalidated.
type File struct {
	ID        string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	ProjectID string    `gorm:"type:varchar(26);not null;uniqueIndex:uniq_file_project_path,priority:1" json:"project_id"`
	Path      string    `gorm:"type:varchar(512);not null;uniqueIndex:uniq_file_project_path,priority:2" json:"path"`
	Content   string    `json:"content"`
	Language  string    `gorm:"type:varchar(32)" json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (File) TableName() string { return "files" }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is immutable once written.
type ChatMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID string    `gorm:"type:varchar(26);not null;index:idx_chat_msg_project_id,priority:1" json:"project_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"not null" json:"content"`
	Model     *string   `gorm:"type:varchar(64)" json:"model,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_chat_msg_project_id,priority:2" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
