// models/message_log.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageLog struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	MemberRecordID *uuid.UUID `gorm:"type:uuid;index"`
	UserID         *uuid.UUID `gorm:"type:uuid;index"`
	Kind           string     `gorm:"type:varchar(20)"` // receipt, expiry
	Message        string     `gorm:"type:text"`
	Status         string     `gorm:"type:varchar(20)"` // sent, failed
	ErrorMessage   string     `gorm:"type:text"`
	Channel        string     `gorm:"type:varchar(20)"` // whatsapp, sms
	SentAt         time.Time
	CreatedAt      time.Time
}

func (m *MessageLog) BeforeCreate(tx *gorm.DB) (err error) {
	m.ID = uuid.New()
	return
}
