package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is an in-app message shown on the member portal.
type Notification struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID `gorm:"type:uuid;index;not null" json:"userId"`
	Type    string    `gorm:"type:varchar(30);not null" json:"type"`
	Title   string    `gorm:"not null" json:"title"`
	Message string    `gorm:"type:text;not null" json:"message"`
	IsRead  bool      `gorm:"default:false" json:"isRead"`

	CreatedAt time.Time `json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	n.ID = uuid.New()
	return
}
