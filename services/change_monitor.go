package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/realtime"
	"github.com/tabletap/tabletap/utils"
)

// ChangeMonitor polls the DBChange outbox and turns unprocessed rows
// into restaurant-scoped realtime events. Polling keeps the feed driver
// agnostic; sqlite in tests behaves the same as mysql in production.
type ChangeMonitor struct {
	DB       *gorm.DB
	StopChan chan struct{}
	Interval time.Duration
}

func NewChangeMonitor(db *gorm.DB) *ChangeMonitor {
	return &ChangeMonitor{
		DB:       db,
		StopChan: make(chan struct{}),
		Interval: 500 * time.Millisecond,
	}
}

func (cm *ChangeMonitor) Start() {
	go func() {
		ticker := time.NewTicker(cm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.checkChanges()
			case <-cm.StopChan:
				return
			}
		}
	}()
}

func (cm *ChangeMonitor) Stop() {
	close(cm.StopChan)
}

func (cm *ChangeMonitor) checkChanges() {
	var changes []models.DBChange

	tx := cm.DB.Begin()

	if err := tx.Where("processed = ?", false).
		Order("changed_at ASC").
		Limit(100).
		Find(&changes).Error; err != nil {
		tx.Rollback()
		utils.ErrorLogger.Printf("change monitor: fetch changes: %v", err)
		return
	}

	for _, change := range changes {
		switch change.TableName {
		case "order_records":
			cm.processOrderChange(change)
		case "table_sessions":
			cm.processSessionChange(change)
		case "tables":
			cm.processTableChange(change)
		}

		if err := tx.Model(&models.DBChange{}).
			Where("id = ?", change.ID).
			Update("processed", true).Error; err != nil {
			tx.Rollback()
			utils.ErrorLogger.Printf("change monitor: mark processed: %v", err)
			return
		}
	}

	if err := tx.Commit().Error; err != nil {
		utils.ErrorLogger.Printf("change monitor: commit: %v", err)
		tx.Rollback()
	}
}

func (cm *ChangeMonitor) processOrderChange(change models.DBChange) {
	var order models.OrderRecord
	if err := cm.DB.First(&order, change.RecordID).Error; err != nil {
		utils.ErrorLogger.Printf("change monitor: fetch order %d: %v", change.RecordID, err)
		return
	}

	switch change.ActionType {
	case "INSERT":
		realtime.BroadcastOrderInsert(order)
	case "UPDATE":
		realtime.BroadcastOrderUpdate(order)
	}
}

func (cm *ChangeMonitor) processSessionChange(change models.DBChange) {
	var session models.TableSession
	if err := cm.DB.First(&session, "id = ?", change.RecordKey).Error; err != nil {
		utils.ErrorLogger.Printf("change monitor: fetch session %s: %v", change.RecordKey, err)
		return
	}
	realtime.BroadcastSessionUpdate(session)
}

func (cm *ChangeMonitor) processTableChange(change models.DBChange) {
	var table models.Table
	if err := cm.DB.First(&table, change.RecordID).Error; err != nil {
		return
	}
	realtime.BroadcastTableUpdate(table)
}
