package models

import "time"

// Session statuses
const (
	SessionActive = "active"
	SessionEnded  = "ended"
)

// TableSession binds an anonymous device to a physical table for the
// duration of a visit. A changed table always produces a new session;
// rows only ever transition active -> ended.
type TableSession struct {
	ID           string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;index" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID" json:"-"`
	TableID      *uint      `gorm:"index" json:"table_id,omitempty"` // nil for walk-ins
	// ActiveTableID mirrors TableID while the session is active and is
	// nulled on end. The unique index makes a second concurrent claim of
	// the same table fail at the database instead of racing.
	ActiveTableID *uint      `gorm:"uniqueIndex" json:"-"`
	Label         string     `gorm:"type:varchar(50);not null" json:"label"`
	Status        string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	QRToken       string     `gorm:"type:varchar(64);index" json:"qr_token"` // empty for walk-ins
	SessionToken  string     `gorm:"type:varchar(64)" json:"session_token"`
	Theme         string     `gorm:"type:text" json:"theme"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

// Token correlates submitted orders to this session, falling back to
// the session ID when no explicit token was issued.
func (s *TableSession) Token() string {
	if s.SessionToken != "" {
		return s.SessionToken
	}
	return s.ID
}
