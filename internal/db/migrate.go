package db

import (
	errors "github.com/Laisky/errors/v2"
	"github.com/suPer8Hu/ai-studio/internal/apikey"
	"github.com/suPer8Hu/ai-studio/internal/chat"
	"github.com/suPer8Hu/ai-studio/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the studio owns.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.File{},
		&models.ChatMessage{},
		&apikey.UserAPIKey{},
		&chat.Job{},
	); err != nil {
		return errors.Wrap(err, "automigrate")
	}
	return nil
}
