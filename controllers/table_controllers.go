package controllers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeqown/go-qrcode"
	"gorm.io/gorm"

	"github.com/tabletap/tabletap/codes"
	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/services"
	"github.com/tabletap/tabletap/utils"
)

type TableController struct {
	DB    *gorm.DB
	Codes codes.Generator
}

func NewTableController(db *gorm.DB) *TableController {
	return &TableController{DB: db, Codes: codes.NewGenerator()}
}

// CreateTable registers a table and mints its QR token. A PIN makes the
// table gated: guests scanning it must type the PIN before a session
// opens.
func (tc *TableController) CreateTable(c *gin.Context) {
	restaurantID, _ := c.Get("restaurant_id")

	var req struct {
		Label string `json:"label" binding:"required"`
		PIN   string `json:"pin"` // 4 digits, optional
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if req.PIN != "" && len(req.PIN) != 4 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("pin must be 4 digits"))
		return
	}

	table := models.Table{
		RestaurantID: restaurantID.(uint),
		Label:        req.Label,
		QRToken:      codes.QRToken(tc.Codes),
		PIN:          req.PIN,
		PinRequired:  req.PIN != "",
		Status:       "available",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := tc.DB.Create(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	services.RecordChange(tc.DB, "tables", int64(table.ID), table.RestaurantID, "INSERT")
	utils.InfoLogger.Printf("Table %s created (token=%s, pin_required=%v)", table.Label, table.QRToken, table.PinRequired)
	utils.RespondJSON(c, http.StatusCreated, "Table created", table)
}

// GetAllTables lists the staff user's restaurant tables.
func (tc *TableController) GetAllTables(c *gin.Context) {
	restaurantID, _ := c.Get("restaurant_id")

	var tables []models.Table
	if err := tc.DB.Where("restaurant_id = ?", restaurantID).Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

// UpdateTableStatus sets a table's housekeeping status. Tables outside
// the caller's restaurant read as not found.
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	tableID := c.Param("table_id")
	restaurantID, _ := c.Get("restaurant_id")

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var table models.Table
	if err := tc.DB.First(&table, "id = ? AND restaurant_id = ?", tableID, restaurantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	table.Status = body.Status
	table.UpdatedAt = time.Now()
	if err := tc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	services.RecordChange(tc.DB, "tables", int64(table.ID), table.RestaurantID, "UPDATE")
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

// RotatePin issues a fresh 4-digit PIN for a gated table.
func (tc *TableController) RotatePin(c *gin.Context) {
	tableID := c.Param("table_id")
	restaurantID, _ := c.Get("restaurant_id")

	var table models.Table
	if err := tc.DB.First(&table, "id = ? AND restaurant_id = ?", tableID, restaurantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	table.PIN = numericPin()
	table.PinRequired = true
	table.UpdatedAt = time.Now()
	if err := tc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("PIN rotated for table %s", table.Label)
	utils.RespondJSON(c, http.StatusOK, "PIN rotated", gin.H{"pin": table.PIN})
}

// numericPin draws a 4-digit PIN.
func numericPin() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}

// GetTableQR renders the table's scan token as a PNG for printing.
func (tc *TableController) GetTableQR(c *gin.Context) {
	tableID := c.Param("table_id")
	restaurantID, _ := c.Get("restaurant_id")

	var table models.Table
	if err := tc.DB.First(&table, "id = ? AND restaurant_id = ?", tableID, restaurantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	base := c.Query("base_url")
	content := table.QRToken
	if base != "" {
		content = fmt.Sprintf("%s/scan/%s", base, table.QRToken)
	}

	qrc, err := qrcode.New(content, qrcode.WithBuiltinImageEncoder(qrcode.PNG_FORMAT))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := qrc.SaveTo(c.Writer); err != nil {
		utils.ErrorLogger.Printf("render QR for table %d: %v", table.ID, err)
	}
}

// GetDashboardStats counts tables per status for the staff dashboard.
func (tc *TableController) GetDashboardStats(c *gin.Context) {
	restaurantID, _ := c.Get("restaurant_id")

	var available, occupied, dirty int64
	tc.DB.Model(&models.Table{}).Where("restaurant_id = ? AND status = ?", restaurantID, "available").Count(&available)
	tc.DB.Model(&models.Table{}).Where("restaurant_id = ? AND status = ?", restaurantID, "occupied").Count(&occupied)
	tc.DB.Model(&models.Table{}).Where("restaurant_id = ? AND status = ?", restaurantID, "dirty").Count(&dirty)

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats", gin.H{
		"available": available,
		"occupied":  occupied,
		"dirty":     dirty,
		"total":     available + occupied + dirty,
	})
}
