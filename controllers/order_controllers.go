package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tabletap/tabletap/models"
	"github.com/tabletap/tabletap/services"
	"github.com/tabletap/tabletap/utils"
)

type OrderController struct {
	DB *gorm.DB
}

func NewOrderController(db *gorm.DB) *OrderController {
	return &OrderController{DB: db}
}

// OrderRecordReq is one compiled cart line as submitted by a device.
type OrderRecordReq struct {
	ClientRef        string  `json:"client_ref" binding:"required"`
	RestaurantID     uint    `json:"restaurant_id" binding:"required"`
	TableLabel       string  `json:"table_label" binding:"required"`
	ItemID           uint    `json:"item_id"`
	ItemName         string  `json:"item_name" binding:"required"`
	UnitPrice        float64 `json:"unit_price"`
	Quantity         int     `json:"quantity" binding:"required"`
	Amount           float64 `json:"amount"`
	CustomerName     string  `json:"customer_name"`
	Instructions     string  `json:"instructions"`
	QRCodeToken      string  `json:"qr_code_token"`
	PayAsYouOrder    bool    `json:"pay_as_you_order"`
	VerificationCode *string `json:"verification_code"`
}

// RowResult reports the fate of one submitted record so a device can
// retry a partially persisted batch without duplicating rows.
type RowResult struct {
	ClientRef string `json:"client_ref"`
	OrderID   uint   `json:"order_id,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// InsertOrders persists a compiled batch. Rows are keyed by client_ref:
// a ref that already exists returns the stored row unchanged, so a full
// retry after partial failure converges instead of double-inserting.
func (oc *OrderController) InsertOrders(c *gin.Context) {
	var body struct {
		Records []OrderRecordReq `json:"records" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if len(body.Records) == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("empty batch"))
		return
	}

	results := make([]RowResult, 0, len(body.Records))
	persisted := make([]models.OrderRecord, 0, len(body.Records))
	failed := false

	for _, req := range body.Records {
		var existing models.OrderRecord
		if err := oc.DB.Where("client_ref = ?", req.ClientRef).First(&existing).Error; err == nil {
			results = append(results, RowResult{ClientRef: req.ClientRef, OrderID: existing.ID, OK: true})
			persisted = append(persisted, existing)
			continue
		}

		record := models.OrderRecord{
			ClientRef:        req.ClientRef,
			RestaurantID:     req.RestaurantID,
			TableLabel:       req.TableLabel,
			ItemID:           req.ItemID,
			ItemName:         req.ItemName,
			UnitPrice:        req.UnitPrice,
			Quantity:         req.Quantity,
			Amount:           req.Amount,
			CustomerName:     req.CustomerName,
			Instructions:     req.Instructions,
			OrderStatus:      models.OrderPending,
			PaymentStatus:    models.PaymentUnpaid,
			QRCodeToken:      req.QRCodeToken,
			PayAsYouOrder:    req.PayAsYouOrder,
			VerificationCode: req.VerificationCode,
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}
		if record.CustomerName == "" {
			record.CustomerName = "Guest"
		}
		if record.Amount == 0 {
			record.Amount = record.UnitPrice * float64(record.Quantity)
		}

		if err := oc.DB.Create(&record).Error; err != nil {
			failed = true
			results = append(results, RowResult{ClientRef: req.ClientRef, OK: false, Error: err.Error()})
			continue
		}

		services.RecordChange(oc.DB, "order_records", int64(record.ID), record.RestaurantID, "INSERT")
		results = append(results, RowResult{ClientRef: req.ClientRef, OrderID: record.ID, OK: true})
		persisted = append(persisted, record)
	}

	if failed {
		utils.RespondJSON(c, http.StatusInternalServerError, "Batch partially failed", gin.H{
			"results": results,
		})
		return
	}

	utils.InfoLogger.Printf("Batch of %d orders persisted for restaurant %d", len(persisted), persisted[0].RestaurantID)
	utils.RespondJSON(c, http.StatusCreated, "Orders created", gin.H{
		"results": results,
		"orders":  persisted,
	})
}

// GetOrdersForRestaurant lists a restaurant's orders, optionally scoped
// to one table via qr_token or table_label. Any device at the table may
// read the whole feed; "mine vs group" is client-side presentation.
func (oc *OrderController) GetOrdersForRestaurant(c *gin.Context) {
	restaurantID := c.Param("restaurant_id")

	q := oc.DB.Where("restaurant_id = ?", restaurantID)
	if token := c.Query("qr_token"); token != "" {
		q = q.Where("qr_code_token = ?", token)
	}
	if label := c.Query("table_label"); label != "" {
		q = q.Where("table_label = ?", label)
	}

	var orders []models.OrderRecord
	if err := q.Order("created_at ASC").Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// UpdateOrderStatus moves an order along the kitchen lifecycle. Status
// only ever advances; a regression is rejected. Orders outside the
// caller's restaurant read as not found.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("order_id")
	restaurantID, _ := c.Get("restaurant_id")

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	newRank, ok := models.OrderStatusRank[body.Status]
	if !ok {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unknown status %q", body.Status))
		return
	}

	var order models.OrderRecord
	if err := oc.DB.First(&order, "id = ? AND restaurant_id = ?", orderID, restaurantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	if newRank < models.OrderStatusRank[order.OrderStatus] {
		utils.RespondError(c, http.StatusBadRequest,
			fmt.Errorf("cannot move order back from %s to %s", order.OrderStatus, body.Status))
		return
	}

	order.OrderStatus = body.Status
	order.UpdatedAt = time.Now()
	if err := oc.DB.Save(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	services.RecordChange(oc.DB, "order_records", int64(order.ID), order.RestaurantID, "UPDATE")
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// MarkPaid settles a single order in the caller's restaurant.
func (oc *OrderController) MarkPaid(c *gin.Context) {
	orderID := c.Param("order_id")
	restaurantID, _ := c.Get("restaurant_id")

	var order models.OrderRecord
	if err := oc.DB.First(&order, "id = ? AND restaurant_id = ?", orderID, restaurantID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	if order.PaymentStatus != models.PaymentPaid {
		order.PaymentStatus = models.PaymentPaid
		order.UpdatedAt = time.Now()
		if err := oc.DB.Save(&order).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		services.RecordChange(oc.DB, "order_records", int64(order.ID), order.RestaurantID, "UPDATE")
	}

	utils.RespondJSON(c, http.StatusOK, "Order marked paid", order)
}

// SettleByCode settles every order sharing one verification code: the
// staff flow after scanning a guest's pay-first code.
func (oc *OrderController) SettleByCode(c *gin.Context) {
	restaurantID, _ := c.Get("restaurant_id")

	var body struct {
		VerificationCode string `json:"verification_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var orders []models.OrderRecord
	if err := oc.DB.Where("verification_code = ? AND restaurant_id = ?", body.VerificationCode, restaurantID).Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if len(orders) == 0 {
		utils.RespondError(c, http.StatusNotFound, utils.ErrNotFound)
		return
	}

	for i := range orders {
		if orders[i].PaymentStatus == models.PaymentPaid {
			continue
		}
		orders[i].PaymentStatus = models.PaymentPaid
		orders[i].UpdatedAt = time.Now()
		if err := oc.DB.Save(&orders[i]).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		services.RecordChange(oc.DB, "order_records", int64(orders[i].ID), orders[i].RestaurantID, "UPDATE")
	}

	utils.InfoLogger.Printf("Settled %d orders under code %s", len(orders), body.VerificationCode)
	utils.RespondJSON(c, http.StatusOK, "Orders settled", orders)
}

// GetKitchenDisplay lists unserved orders for the kitchen, oldest first.
func (oc *OrderController) GetKitchenDisplay(c *gin.Context) {
	restaurantID, _ := c.Get("restaurant_id")

	var orders []models.OrderRecord
	if err := oc.DB.Where("restaurant_id = ? AND order_status != ?", restaurantID, models.OrderServed).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Kitchen display orders", orders)
}
