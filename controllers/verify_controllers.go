package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/services"
	"github.com/tabletap/tabletap/utils"
)

type VerifyController struct {
	DB *gorm.DB
}

func NewVerifyController(db *gorm.DB) *VerifyController {
	return &VerifyController{DB: db}
}

// TableLookup is the scan-resolution payload handed back to a device.
type TableLookup struct {
	TableID        uint   `json:"table_id"`
	RestaurantID   uint   `json:"restaurant_id"`
	Label          string `json:"label"`
	RestaurantName string `json:"restaurant_name"`
	Theme          string `json:"theme"`
	PinRequired    bool   `json:"pin_required"`
}

// LookupTableByCode resolves a scanned QR token to its table.
func (vc *VerifyController) LookupTableByCode(c *gin.Context) {
	code := c.Param("code")

	var table models.Table
	if err := vc.DB.Preload("Restaurant").Where("qr_token = ?", code).First(&table).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Table resolved", TableLookup{
		TableID:        table.ID,
		RestaurantID:   table.RestaurantID,
		Label:          table.Label,
		RestaurantName: table.Restaurant.Name,
		Theme:          table.Restaurant.Theme,
		PinRequired:    table.PinRequired,
	})
}

// GetActiveSessionForTable returns the table's active session, or null
// data when the table is free.
func (vc *VerifyController) GetActiveSessionForTable(c *gin.Context) {
	tableID := c.Param("table_id")

	var session models.TableSession
	err := vc.DB.Where("table_id = ? AND status = ?", tableID, models.SessionActive).
		Order("created_at DESC").First(&session).Error
	if err != nil {
		utils.RespondJSON(c, http.StatusOK, "No active session", nil)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Active session", session)
}

// ClaimTable opens a session on a table that does not gate access
// behind a PIN. Tables with a PIN must go through VerifyPin.
func (vc *VerifyController) ClaimTable(c *gin.Context) {
	tableID := c.Param("table_id")

	var table models.Table
	if err := vc.DB.Preload("Restaurant").First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	if table.PinRequired {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("table requires a PIN"))
		return
	}

	session, created, err := vc.activeOrNewSession(&table)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if created {
		utils.InfoLogger.Printf("Session %s opened on table %s (restaurant %d)", session.ID, table.Label, table.RestaurantID)
	}
	utils.RespondJSON(c, http.StatusOK, "Session ready", session)
}

// VerifyPin checks a staff-issued PIN and opens (or returns) the
// table's session. Mismatches are Unauthorized with no lockout here;
// staff login throttling is a separate concern.
func (vc *VerifyController) VerifyPin(c *gin.Context) {
	tableID := c.Param("table_id")

	var body struct {
		PIN string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.Table
	if err := vc.DB.Preload("Restaurant").First(&table, tableID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	if !table.PinRequired || table.PIN != body.PIN {
		utils.RespondError(c, http.StatusUnauthorized, utils.ErrUnauthorized)
		return
	}

	session, created, err := vc.activeOrNewSession(&table)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if created {
		utils.InfoLogger.Printf("Session %s opened via PIN on table %s", session.ID, table.Label)
	}
	utils.RespondJSON(c, http.StatusOK, "PIN verified", session)
}

// GetSessionStatus reports active/ended for a stored session. Unknown
// IDs read as ended so stale client state always re-verifies.
func (vc *VerifyController) GetSessionStatus(c *gin.Context) {
	sessionID := c.Param("session_id")

	var session models.TableSession
	if err := vc.DB.First(&session, "id = ?", sessionID).Error; err != nil {
		utils.RespondJSON(c, http.StatusOK, "Session status", gin.H{"status": models.SessionEnded})
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session status", gin.H{"status": session.Status})
}

// CreateWalkInSession opens a session with no table attached, for
// counter orders and takeaway. Registering it server-side keeps the
// device's stored session restorable across restarts.
func (vc *VerifyController) CreateWalkInSession(c *gin.Context) {
	restaurantID := c.Param("restaurant_id")

	var restaurant models.Restaurant
	if err := vc.DB.First(&restaurant, restaurantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	var body struct {
		Label string `json:"label"`
	}
	_ = c.ShouldBindJSON(&body) // label is optional
	if body.Label == "" {
		body.Label = restaurant.Name + " walk-in"
	}

	session := models.TableSession{
		ID:           uuid.NewString(),
		RestaurantID: restaurant.ID,
		Label:        body.Label,
		Status:       models.SessionActive,
		SessionToken: uuid.NewString(),
		Theme:        restaurant.Theme,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := vc.DB.Create(&session).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	services.RecordSessionChange(vc.DB, session.ID, session.RestaurantID, "INSERT")
	utils.InfoLogger.Printf("Walk-in session %s opened (restaurant %d)", session.ID, restaurant.ID)
	utils.RespondJSON(c, http.StatusCreated, "Walk-in session opened", session)
}

// EndSession marks a session ended and frees its table. Staff only,
// scoped to the caller's restaurant.
func (vc *VerifyController) EndSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	restaurantID, _ := c.Get("restaurant_id")

	var session models.TableSession
	if err := vc.DB.First(&session, "id = ? AND restaurant_id = ?", sessionID, restaurantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	if session.Status == models.SessionEnded {
		utils.RespondJSON(c, http.StatusOK, "Session already ended", session)
		return
	}

	session.Status = models.SessionEnded
	session.ActiveTableID = nil
	session.UpdatedAt = time.Now()
	if err := vc.DB.Save(&session).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	if session.TableID != nil {
		var table models.Table
		if err := vc.DB.First(&table, *session.TableID).Error; err == nil {
			table.Status = "dirty"
			vc.DB.Save(&table)
			services.RecordChange(vc.DB, "tables", int64(table.ID), table.RestaurantID, "UPDATE")
		}
	}

	services.RecordSessionChange(vc.DB, session.ID, session.RestaurantID, "UPDATE")
	utils.InfoLogger.Printf("Session %s ended", session.ID)
	utils.RespondJSON(c, http.StatusOK, "Session ended", session)
}

// activeOrNewSession returns the table's active session, creating one
// when the table is free. At most one active session per table.
func (vc *VerifyController) activeOrNewSession(table *models.Table) (*models.TableSession, bool, error) {
	var existing models.TableSession
	err := vc.DB.Where("table_id = ? AND status = ?", table.ID, models.SessionActive).
		Order("created_at DESC").First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}

	tableID := table.ID
	session := models.TableSession{
		ID:            uuid.NewString(),
		RestaurantID:  table.RestaurantID,
		TableID:       &tableID,
		ActiveTableID: &tableID,
		Label:         table.Label,
		Status:        models.SessionActive,
		QRToken:       table.QRToken,
		SessionToken:  uuid.NewString(),
		Theme:         table.Restaurant.Theme,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := vc.DB.Create(&session).Error; err != nil {
		// Lost a concurrent claim: the unique index on active_table_id
		// rejected our row. The winner's session is the one to join.
		lerr := vc.DB.Where("table_id = ? AND status = ?", table.ID, models.SessionActive).
			Order("created_at DESC").First(&existing).Error
		if lerr == nil {
			return &existing, false, nil
		}
		return nil, false, err
	}

	table.Status = "occupied"
	vc.DB.Save(table)

	services.RecordSessionChange(vc.DB, session.ID, session.RestaurantID, "INSERT")
	services.RecordChange(vc.DB, "tables", int64(table.ID), table.RestaurantID, "UPDATE")
	return &session, true, nil
}
