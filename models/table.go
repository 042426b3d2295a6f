package models

import "time"

type Table struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	RestaurantID uint       `gorm:"not null;index" json:"restaurant_id"`
	Restaurant   Restaurant `gorm:"foreignKey:RestaurantID" json:"-"`
	Label        string     `gorm:"type:varchar(50);not null" json:"label"`
	QRToken      string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"qr_token"`
	PIN          string     `gorm:"type:varchar(8)" json:"-"`
	PinRequired  bool       `gorm:"not null;default:false" json:"pin_required"`
	Status       string     `gorm:"type:varchar(50);not null;default:'available'" json:"status"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}
