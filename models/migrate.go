package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate runs schema migrations for every model.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Plan{},
		&Membership{},
		&Payment{},
		&MemberRecord{},
		&Notification{},
		&MessageLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
