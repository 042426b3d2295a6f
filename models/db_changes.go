package models

import "time"

// DBChange is an outbox row written next to order/session writes. The
// change monitor polls unprocessed rows and turns them into realtime
// events scoped to the owning restaurant.
type DBChange struct {
	ID           uint      `gorm:"primaryKey"`
	TableName    string    `gorm:"type:varchar(50);not null;index:idx_table_action"`
	RecordID     int64     `gorm:"not null"`
	RecordKey    string    `gorm:"type:varchar(64)"` // for tables with string primary keys (sessions)
	RestaurantID uint      `gorm:"not null;index"`
	ActionType   string    `gorm:"type:varchar(10);not null;index:idx_table_action"` // INSERT, UPDATE, DELETE
	ChangedAt    time.Time `gorm:"not null"`
	Processed    bool      `gorm:"default:false;index:idx_processed"`
}
