package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/utils"
)

// RecordChange appends an outbox row for the change monitor to pick up.
// Written in the same transaction as the data change wherever the caller
// has one, so a broadcast never precedes its row.
func RecordChange(db *gorm.DB, tableName string, recordID int64, restaurantID uint, action string) {
	change := models.DBChange{
		TableName:    tableName,
		RecordID:     recordID,
		RestaurantID: restaurantID,
		ActionType:   action,
		ChangedAt:    time.Now(),
	}
	if err := db.Create(&change).Error; err != nil {
		utils.ErrorLogger.Printf("outbox: record change for %s/%d: %v", tableName, recordID, err)
	}
}

// RecordSessionChange is RecordChange for rows keyed by a string ID.
func RecordSessionChange(db *gorm.DB, sessionID string, restaurantID uint, action string) {
	change := models.DBChange{
		TableName:    "table_sessions",
		RecordKey:    sessionID,
		RestaurantID: restaurantID,
		ActionType:   action,
		ChangedAt:    time.Now(),
	}
	if err := db.Create(&change).Error; err != nil {
		utils.ErrorLogger.Printf("outbox: record session change for %s: %v", sessionID, err)
	}
}
