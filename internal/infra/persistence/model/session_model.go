package model

import "time"

// SessionModel mirrors the 'user_sessions' table. A user holds at most one row per device.
type SessionModel struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	UserID           string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_sessions_user_device,priority:1"`
	DeviceID         string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_user_sessions_user_device,priority:2"`
	RefreshTokenHash string    `gorm:"type:char(64);not null;uniqueIndex"`
	DeviceType       string    `gorm:"type:varchar(50)"`
	UserAgent        string    `gorm:"type:text"`
	IPAddress        string    `gorm:"type:varchar(64)"`
	Location         string    `gorm:"type:varchar(100)"`
	KeepLogin        bool      `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
	LastAccessedAt   time.Time `gorm:"not null;index"`
}

// TableName explicitly sets the table name for GORM.
func (SessionModel) TableName() string {
	return "user_sessions"
}
