package models

import "time"

// Kitchen-facing order statuses, in lifecycle order.
const (
	OrderPending   = "Pending"
	OrderPreparing = "Preparing"
	OrderCooking   = "Cooking"
	OrderServing   = "Serving"
	OrderServed    = "Served"
)

// Payment statuses
const (
	PaymentUnpaid = "Unpaid"
	PaymentPaid   = "Paid"
)

// OrderStatusRank gives each status its position in the lifecycle so
// transitions can be checked as monotonically non-decreasing.
var OrderStatusRank = map[string]int{
	OrderPending:   0,
	OrderPreparing: 1,
	OrderCooking:   2,
	OrderServing:   3,
	OrderServed:    4,
}

// OrderRecord is the durable, kitchen-bound unit compiled from one cart
// line. Records created in the same submission batch that contains at
// least one pay-as-you-order line share a single verification code on
// the pay-first rows; pay-later rows keep a NULL code even then.
type OrderRecord struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ClientRef        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"client_ref"`
	RestaurantID     uint      `gorm:"not null;index" json:"restaurant_id"`
	TableLabel       string    `gorm:"type:varchar(50);not null" json:"table_label"`
	ItemID           uint      `gorm:"not null" json:"item_id"`
	ItemName         string    `gorm:"type:varchar(100);not null" json:"item_name"`
	UnitPrice        float64   `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	Amount           float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	CustomerName     string    `gorm:"type:varchar(100);not null;default:'Guest'" json:"customer_name"`
	Instructions     string    `gorm:"type:text" json:"instructions"`
	OrderStatus      string    `gorm:"type:varchar(20);not null;default:'Pending'" json:"order_status"`
	PaymentStatus    string    `gorm:"type:varchar(20);not null;default:'Unpaid'" json:"payment_status"`
	QRCodeToken      string    `gorm:"type:varchar(64);index" json:"qr_code_token"`
	PayAsYouOrder    bool      `gorm:"not null;default:false" json:"pay_as_you_order"`
	VerificationCode *string   `gorm:"type:varchar(12);index" json:"verification_code,omitempty"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}
