package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tabletap/tabletap/codes"
	"github.com/tabletap/tabletap/models"
)

// ModifierChoice is a snapshot of one selected variation at the moment
// the line was added; price changes later never touch the cart.
type ModifierChoice struct {
	Group  string  `json:"group"`
	Option string  `json:"option"`
	Delta  float64 `json:"delta"`
}

// CartLine is one pending selection. UnitPrice is the price after
// modifiers are applied.
type CartLine struct {
	ItemID        uint             `json:"item_id"`
	ItemName      string           `json:"item_name"`
	Quantity      int              `json:"quantity"`
	UnitPrice     float64          `json:"unit_price"`
	Instructions  string           `json:"instructions"`
	OrderTo       string           `json:"order_to"`
	PayAsYouOrder bool             `json:"pay_as_you_order"`
	Modifiers     []ModifierChoice `json:"modifiers,omitempty"`
}

// Cart holds a guest's pending lines. It is cleared only after a
// dispatch actually succeeds, never on submit intent.
type Cart struct {
	mu    sync.Mutex
	lines []CartLine
}

func NewCart() *Cart {
	return &Cart{}
}

func (c *Cart) Add(line CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *Cart) Remove(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.lines) {
		return
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
}

func (c *Cart) Lines() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
}

// Compiler turns cart lines into kitchen-bound order records. The code
// generator is injected so tests can pin the verification code format.
type Compiler struct {
	Codes codes.Generator
}

func NewCompiler() *Compiler {
	return &Compiler{Codes: codes.NewGenerator()}
}

// Compile maps each line to an OrderRecord. When any line in the batch
// is pay-as-you-order, one shared verification code is generated for
// the whole batch and stamped on the pay-first lines only; pay-later
// lines in the same batch keep a nil code. The code identifies which
// items were pre-paid, not the batch.
func (cp *Compiler) Compile(session *models.TableSession, lines []CartLine) ([]models.OrderRecord, error) {
	if session == nil {
		return nil, ErrNoSession
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	hasPayFirst := false
	for _, line := range lines {
		if line.PayAsYouOrder {
			hasPayFirst = true
			break
		}
	}

	var shared *string
	if hasPayFirst {
		code := codes.VerificationCode(cp.Codes)
		shared = &code
	}

	records := make([]models.OrderRecord, 0, len(lines))
	for _, line := range lines {
		record := models.OrderRecord{
			ClientRef:     uuid.NewString(),
			RestaurantID:  session.RestaurantID,
			TableLabel:    session.Label,
			ItemID:        line.ItemID,
			ItemName:      line.ItemName,
			UnitPrice:     line.UnitPrice,
			Quantity:      line.Quantity,
			Amount:        line.UnitPrice * float64(line.Quantity),
			CustomerName:  line.OrderTo,
			Instructions:  line.Instructions,
			OrderStatus:   models.OrderPending,
			PaymentStatus: models.PaymentUnpaid,
			QRCodeToken:   session.Token(),
			PayAsYouOrder: line.PayAsYouOrder,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if record.CustomerName == "" {
			record.CustomerName = "Guest"
		}
		if line.PayAsYouOrder {
			record.VerificationCode = shared
		}
		records = append(records, record)
	}

	return records, nil
}
