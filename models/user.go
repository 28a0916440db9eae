package models

import (
	"time"

	"fitsense-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleMember  Role = "member"
	RoleAdmin   Role = "admin"
	RoleTrainer Role = "trainer"
)

// User is a live account. Members sign up online; admins and trainers operate the gym.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string    `gorm:"uniqueIndex;not null" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Name     string    `gorm:"not null" json:"name"`
	Phone    *string   `gorm:"index" json:"phone"`

	Role Role `gorm:"type:varchar(20);not null;default:'member'" json:"role"`

	Memberships []Membership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`

	LastLogin *time.Time `json:"lastLogin,omitempty"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Initialize UUID and hash the password before creating
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	return
}

func (u *User) IsPrivileged() bool {
	return u.Role == RoleAdmin
}
