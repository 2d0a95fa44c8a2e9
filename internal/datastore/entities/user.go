package entities

import "time"

// UserEntity is the GORM model for the 'users' table. The legacy boolean
// role columns are kept alongside the explicit role string because existing
// documents carry either representation; resolution to a canonical role
// happens once at the datastore boundary.
type UserEntity struct {
	ID              string `gorm:"primaryKey;size:36"`
	Role            string `gorm:"type:varchar(20)"`
	IsAdmin         bool   // legacy flag
	IsExpert        bool   // legacy flag
	IsPendingExpert bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName ensures GORM uses the expected table name.
func (UserEntity) TableName() string {
	return "users"
}
