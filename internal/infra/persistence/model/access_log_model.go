package model

import "time"

// AccessLogModel mirrors the 'access_logs' table. Rows outlive the sessions they mention.
type AccessLogModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"type:varchar(64);not null;index:idx_access_logs_user_created,priority:1"`
	SessionID int64     `gorm:"index"`
	Type      string    `gorm:"type:varchar(20);not null"`
	IPAddress string    `gorm:"type:varchar(64)"`
	UserAgent string    `gorm:"type:text"`
	Browser   string    `gorm:"type:varchar(50)"`
	OS        string    `gorm:"type:varchar(50)"`
	Location  string    `gorm:"type:varchar(100)"`
	Endpoint  string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null;index:idx_access_logs_user_created,priority:2"`
}

// TableName explicitly sets the table name for GORM.
func (AccessLogModel) TableName() string {
	return "access_logs"
}

// All lists every persistence model in migration order.
func All() []any {
	return []any{&UserModel{}, &SessionModel{}, &AccessLogModel{}}
}
